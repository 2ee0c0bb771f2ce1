package ai

// Status is the result of a behavior tree node tick.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Node is a single node in a behavior tree. Nodes keep no state between
// ticks; anything that must persist lives on the companion.
type Node interface {
	Tick(ctx *DecisionContext) Status
}

// Evaluate runs one pass of the tree rooted at node.
func Evaluate(node Node, ctx *DecisionContext) Status {
	if node == nil {
		return StatusFailure
	}
	return node.Tick(ctx)
}

// ---- Composite nodes ----

// Selector returns the first child outcome that is not Failure (logical OR).
// Running stops the scan just like Success.
type Selector struct {
	Children []Node
}

// NewSelector panics on an empty child list.
func NewSelector(children ...Node) *Selector {
	if len(children) == 0 {
		panic("ai: selector with no children")
	}
	return &Selector{Children: children}
}

func (s *Selector) Tick(ctx *DecisionContext) Status {
	if len(s.Children) == 0 {
		panic("ai: selector with no children")
	}
	for _, c := range s.Children {
		switch c.Tick(ctx) {
		case StatusSuccess:
			return StatusSuccess
		case StatusRunning:
			return StatusRunning
		}
	}
	return StatusFailure
}

// Sequence succeeds only when all children succeed (logical AND).
type Sequence struct {
	Children []Node
}

// NewSequence panics on an empty child list.
func NewSequence(children ...Node) *Sequence {
	if len(children) == 0 {
		panic("ai: sequence with no children")
	}
	return &Sequence{Children: children}
}

func (s *Sequence) Tick(ctx *DecisionContext) Status {
	if len(s.Children) == 0 {
		panic("ai: sequence with no children")
	}
	for _, c := range s.Children {
		switch c.Tick(ctx) {
		case StatusFailure:
			return StatusFailure
		case StatusRunning:
			return StatusRunning
		}
	}
	return StatusSuccess
}

// ---- Decorator nodes ----

// Inverter negates the result of its child.
type Inverter struct {
	Child Node
}

func (i *Inverter) Tick(ctx *DecisionContext) Status {
	switch i.Child.Tick(ctx) {
	case StatusSuccess:
		return StatusFailure
	case StatusFailure:
		return StatusSuccess
	default:
		return StatusRunning
	}
}

// Not wraps a node in an Inverter.
func Not(n Node) *Inverter { return &Inverter{Child: n} }
