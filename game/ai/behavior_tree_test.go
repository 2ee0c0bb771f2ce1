package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// countingNode returns a fixed status and counts its ticks.
type countingNode struct {
	status Status
	calls  int
}

func (n *countingNode) Tick(*DecisionContext) Status {
	n.calls++
	return n.status
}

func stubs(statuses ...Status) ([]Node, []*countingNode) {
	nodes := make([]Node, len(statuses))
	counters := make([]*countingNode, len(statuses))
	for i, s := range statuses {
		counters[i] = &countingNode{status: s}
		nodes[i] = counters[i]
	}
	return nodes, counters
}

func TestSelector_StopsAtFirstSuccess(t *testing.T) {
	nodes, c := stubs(StatusFailure, StatusSuccess, StatusSuccess)
	assert.Equal(t, StatusSuccess, Evaluate(NewSelector(nodes...), nil))
	assert.Equal(t, 1, c[0].calls)
	assert.Equal(t, 1, c[1].calls)
	assert.Equal(t, 0, c[2].calls)
}

func TestSelector_AllFail(t *testing.T) {
	nodes, c := stubs(StatusFailure, StatusFailure)
	assert.Equal(t, StatusFailure, NewSelector(nodes...).Tick(nil))
	assert.Equal(t, 1, c[1].calls)
}

func TestSequence_ShortCircuitsOnFailure(t *testing.T) {
	nodes, c := stubs(StatusSuccess, StatusFailure, StatusSuccess)
	assert.Equal(t, StatusFailure, Evaluate(NewSequence(nodes...), nil))
	assert.Equal(t, 1, c[1].calls)
	assert.Equal(t, 0, c[2].calls)
}

func TestSequence_AllSucceed(t *testing.T) {
	nodes, _ := stubs(StatusSuccess, StatusSuccess)
	assert.Equal(t, StatusSuccess, NewSequence(nodes...).Tick(nil))
}

func TestRunning_Propagates(t *testing.T) {
	nodes, c := stubs(StatusRunning, StatusSuccess)
	assert.Equal(t, StatusRunning, NewSequence(nodes...).Tick(nil))
	assert.Equal(t, 0, c[1].calls)

	nodes, c = stubs(StatusRunning, StatusSuccess)
	assert.Equal(t, StatusRunning, NewSelector(nodes...).Tick(nil))
	assert.Equal(t, 0, c[1].calls)
}

func TestComposites_EmptyPanics(t *testing.T) {
	assert.Panics(t, func() { NewSelector() })
	assert.Panics(t, func() { NewSequence() })
	assert.Panics(t, func() { (&Selector{}).Tick(nil) })
	assert.Panics(t, func() { (&Sequence{}).Tick(nil) })
}

func TestInverter(t *testing.T) {
	nodes, _ := stubs(StatusSuccess, StatusFailure, StatusRunning)
	assert.Equal(t, StatusFailure, Not(nodes[0]).Tick(nil))
	assert.Equal(t, StatusSuccess, Not(nodes[1]).Tick(nil))
	assert.Equal(t, StatusRunning, Not(nodes[2]).Tick(nil))
}

func TestEvaluate_NilRoot(t *testing.T) {
	assert.Equal(t, StatusFailure, Evaluate(nil, nil))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "failure", StatusFailure.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "unknown", Status(9).String())
}
