package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kasuganosora/allyai/game/arena"
	"github.com/kasuganosora/allyai/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *TestServer) state(t *testing.T, token string) arena.State {
	t.Helper()
	resp := ts.Do(t, http.MethodGet, "/api/arena", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st arena.State
	ReadJSON(t, resp, &st)
	return st
}

func TestControllerTokenLifecycle(t *testing.T) {
	ts := NewTestServer(t)

	// 1. Health is public.
	resp := ts.Do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	ReadJSON(t, resp, &health)
	assert.Equal(t, ts.Arena.SessionID(), health["session"])

	// 2. Arena routes need a token.
	resp = ts.Do(t, http.MethodGet, "/api/arena", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// 3. Issued token reads the shipped roster.
	resp = ts.Admin(t, http.MethodPost, "/api/admin/tokens", map[string]string{"controller": "ops"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var issued struct {
		Token string `json:"token"`
		JTI   string `json:"jti"`
	}
	ReadJSON(t, resp, &issued)
	st := ts.state(t, issued.Token)
	require.Len(t, st.Allies, 4)
	assert.Equal(t, "Aldric", st.Allies[0].Name)

	// 4. Revoked token is refused.
	resp = ts.Admin(t, http.MethodDelete, "/api/admin/tokens/"+issued.JTI, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = ts.Do(t, http.MethodGet, "/api/arena", nil, issued.Token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestDecisionStream(t *testing.T) {
	ts := NewTestServer(t)
	token := ts.ControllerToken(t, "viewer")
	target := ts.state(t, token).Allies[0].ID

	stream := ts.OpenStream(t, token, fmt.Sprintf("ally=%d", target))

	// Only the filtered ally's decisions arrive.
	for i := 0; i < 3; i++ {
		ev := stream.RecvEvent("decision", 5*time.Second)
		var d struct {
			CompanionID int64  `json:"companion_id"`
			Outcome     string `json:"outcome"`
		}
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &d))
		assert.Equal(t, int64(target), d.CompanionID)
		assert.NotEmpty(t, d.Outcome)
	}

	// Unknown formations are refused.
	resp := ts.Do(t, http.MethodPost, "/api/arena/formation", map[string]string{"formation": "defensive"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Formation changes reach every stream as arena events.
	resp = ts.Do(t, http.MethodPost, "/api/arena/formation", map[string]string{"formation": "protect"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	ev := stream.RecvMatch("arena", 5*time.Second, func(ev Event) bool {
		var body struct {
			Kind string `json:"kind"`
		}
		return json.Unmarshal([]byte(ev.Data), &body) == nil && body.Kind == "formation"
	})
	assert.Contains(t, ev.Data, "protect")
	assert.Equal(t, "protect", ts.state(t, token).Formation)
}

func TestCombatProgress(t *testing.T) {
	ts := NewTestServer(t)
	token := ts.ControllerToken(t, "ops")

	// The party engages the enemy and uses abilities without any orders.
	Eventually(t, 10*time.Second, func() bool {
		resp := ts.Do(t, http.MethodGet, "/api/arena/leaderboard", nil, token)
		defer resp.Body.Close()
		var body struct {
			Leaderboard []struct {
				Abilities int64 `json:"abilities"`
			} `json:"leaderboard"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) != nil || len(body.Leaderboard) == 0 {
			return false
		}
		return body.Leaderboard[0].Abilities > 0
	}, "no ability use recorded")

	// Sampled passes reach the DB.
	Eventually(t, 5*time.Second, func() bool {
		var n int64
		ts.DB.Model(&model.DecisionLog{}).Where("session_id = ?", ts.Arena.SessionID()).Count(&n)
		return n > 0
	}, "no decisions persisted")

	// Every ally has a decision to show.
	for _, a := range ts.state(t, token).Allies {
		resp := ts.Do(t, http.MethodGet, fmt.Sprintf("/api/allies/%d/decision", a.ID), nil, token)
		assert.Equal(t, http.StatusOK, resp.StatusCode, a.Name)
		resp.Body.Close()
	}
}

func TestCommandOverridesDecision(t *testing.T) {
	ts := NewTestServer(t)
	token := ts.ControllerToken(t, "ops")
	id := ts.state(t, token).Allies[0].ID

	resp := ts.Do(t, http.MethodPost, fmt.Sprintf("/api/allies/%d/command", id), map[string]string{"command": "hold"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	Eventually(t, 5*time.Second, func() bool {
		d, ok := ts.Arena.LastDecision(id)
		return ok && d.Command == "hold"
	}, "hold never reached the decision")
}

func TestPausedSchedulerFreezesArena(t *testing.T) {
	ts := NewTestServer(t)
	token := ts.ControllerToken(t, "ops")

	Eventually(t, 5*time.Second, func() bool { return ts.state(t, token).Time > 0 }, "arena never ticked")

	resp := ts.Admin(t, http.MethodPost, "/api/admin/scheduler/arena/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// A tick already in flight may still land.
	time.Sleep(100 * time.Millisecond)
	frozen := ts.state(t, token).Time
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, frozen, ts.state(t, token).Time)

	resp = ts.Admin(t, http.MethodPost, "/api/admin/scheduler/arena/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	Eventually(t, 5*time.Second, func() bool { return ts.state(t, token).Time > frozen }, "arena did not resume")
}

func TestResetStartsNewSession(t *testing.T) {
	ts := NewTestServer(t)
	token := ts.ControllerToken(t, "ops")
	before := ts.Arena.SessionID()

	resp := ts.Admin(t, http.MethodPost, "/api/admin/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	st := ts.state(t, token)
	assert.NotEqual(t, before, st.Session)
	assert.Zero(t, st.Kills)
}
