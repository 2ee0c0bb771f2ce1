package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/arena"
	"github.com/kasuganosora/allyai/game/strategy"
	"github.com/kasuganosora/allyai/game/tactics"
	"github.com/kasuganosora/allyai/plugin/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonID(id int64) string { return strconv.FormatInt(id, 10) }

// ctl returns a request helper carrying a fresh controller token.
func (f *fixture) ctl(t *testing.T) func(method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, _ := f.token(t)
	return func(method, path, body string) *httptest.ResponseRecorder {
		return f.do(method, path, body, map[string]string{"Authorization": "Bearer " + token})
	}
}

func TestArenaRoutes_RequireToken(t *testing.T) {
	f := newFixture(t, "test-key")
	w := f.do(http.MethodGet, "/api/arena", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = f.do(http.MethodGet, "/api/arena", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestState(t *testing.T) {
	f := newFixture(t, "test-key")
	call := f.ctl(t)
	f.arena.Step(0.1)

	w := call(http.MethodGet, "/api/arena", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "scattered", resp["formation"])
	allies := resp["allies"].([]any)
	require.Len(t, allies, 2)
	first := allies[0].(map[string]any)
	assert.Equal(t, "Aldric", first["name"])
	assert.Equal(t, "sword", first["ability"])
	assert.Contains(t, first, "tactical")
}

func TestStrategies(t *testing.T) {
	f := newFixture(t, "test-key")
	w := f.ctl(t)(http.MethodGet, "/api/arena/strategies", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Len(t, resp["strategies"].([]any), 5)
	assert.Contains(t, resp, "abilities")
}

func TestSetFormation(t *testing.T) {
	f := newFixture(t, "test-key")
	call := f.ctl(t)

	w := call(http.MethodPost, "/api/arena/formation", `{"formation":"Wedge"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, tactics.Wedge.String(), f.arena.State().Formation)
	assert.Contains(t, f.events.seen(), "formation")

	w = call(http.MethodPost, "/api/arena/formation", `{"formation":"blob"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = call(http.MethodPost, "/api/arena/formation", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMovePlayer(t *testing.T) {
	f := newFixture(t, "test-key")
	w := f.ctl(t)(http.MethodPost, "/api/arena/player", `{"position":{"x":4,"y":0,"z":-2},"facing":450}`)
	require.Equal(t, http.StatusOK, w.Code)
	p := f.arena.State().Player
	assert.Equal(t, 4.0, p.Position.X)
	assert.Equal(t, -2.0, p.Position.Z)
	assert.InDelta(t, 90.0, p.Facing, 1e-9)
}

func TestCommand_Toggles(t *testing.T) {
	f := newFixture(t, "test-key")
	call := f.ctl(t)
	path := "/api/allies/" + jsonID(int64(f.allies[0].ID)) + "/command"

	w := call(http.MethodPost, path, `{"command":"hold"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hold", decode(t, w)["command"])

	w = call(http.MethodPost, path, `{"command":"hold"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "none", decode(t, w)["command"])
	assert.Equal(t, ally.CommandNone, f.allies[0].Command)
}

func TestCommand_Errors(t *testing.T) {
	f := newFixture(t, "test-key")
	call := f.ctl(t)
	id := jsonID(int64(f.allies[0].ID))

	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/api/allies/abc/command", `{"command":"hold"}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, "/api/allies/"+id+"/command", `{"command":"dance"}`).Code)
	assert.Equal(t, http.StatusNotFound, call(http.MethodPost, "/api/allies/999999/command", `{"command":"hold"}`).Code)
}

func TestCommand_RejectedByHook(t *testing.T) {
	f := newFixture(t, "test-key")
	hc := hook.NewCenter()
	arena.RejectCommands(hc, ally.CommandAttack)
	f.arena.SetHooks(hc)

	path := "/api/allies/" + jsonID(int64(f.allies[0].ID)) + "/command"
	w := f.ctl(t)(http.MethodPost, path, `{"command":"attack"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, ally.CommandNone, f.allies[0].Command)
}

func TestSetStrategy(t *testing.T) {
	f := newFixture(t, "test-key")
	call := f.ctl(t)
	path := "/api/allies/" + jsonID(int64(f.allies[0].ID)) + "/strategy"

	w := call(http.MethodPost, path, `{"strategy":"berserker"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, strategy.Berserker, f.allies[0].Strategy)

	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, path, `{"strategy":"coward"}`).Code)
	assert.Equal(t, http.StatusNotFound, call(http.MethodPost, "/api/allies/999999/strategy", `{"strategy":"support"}`).Code)
}

func TestSetLoadout(t *testing.T) {
	f := newFixture(t, "test-key")
	call := f.ctl(t)
	path := "/api/allies/" + jsonID(int64(f.allies[0].ID)) + "/loadout"

	w := call(http.MethodPost, path, `{"slot":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "heal", decode(t, w)["ability"])
	assert.Equal(t, ally.SlotHeal, f.allies[0].AbilitySlot)

	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, path, `{"slot":9}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(http.MethodPost, path, `{}`).Code)
}

func TestDecision_TracedAndFallback(t *testing.T) {
	f := newFixture(t, "test-key")
	call := f.ctl(t)
	id := f.allies[0].ID
	path := "/api/allies/" + jsonID(int64(id)) + "/decision"

	assert.Equal(t, http.StatusNotFound, call(http.MethodGet, path, "").Code)

	f.arena.Step(0.1)
	f.trace.Stop(context.Background())
	w := call(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, float64(id), resp["companion_id"])
	assert.Equal(t, f.arena.SessionID(), resp["session_id"])

	// Without a cached copy the arena's own record is served.
	f.trace.Forget(context.Background(), id)
	w = call(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(id), decode(t, w)["companion_id"])
}

func TestHistoryAndStats(t *testing.T) {
	f := newFixture(t, "test-key")
	call := f.ctl(t)
	id := jsonID(int64(f.allies[0].ID))
	for i := 0; i < 3; i++ {
		f.arena.Step(0.1)
	}
	f.trace.Stop(context.Background())

	w := call(http.MethodGet, "/api/allies/"+id+"/history?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode(t, w)["decisions"].([]any)
	if len(rows) == 2 {
		newest := rows[0].(map[string]any)
		assert.Greater(t, newest["tick"], rows[1].(map[string]any)["tick"])
	}

	w = call(http.MethodGet, "/api/allies/"+id+"/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, f.arena.SessionID(), resp["session"])
	assert.Contains(t, resp, "actions")
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t, "test-key")
	w := f.ctl(t)(http.MethodGet, "/api/arena/leaderboard", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, f.arena.SessionID(), resp["session"])
}
