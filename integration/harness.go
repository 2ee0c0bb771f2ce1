package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/allyai/api/rest"
	"github.com/kasuganosora/allyai/api/sse"
	"github.com/kasuganosora/allyai/cache"
	"github.com/kasuganosora/allyai/config"
	"github.com/kasuganosora/allyai/game/arena"
	"github.com/kasuganosora/allyai/game/director"
	"github.com/kasuganosora/allyai/game/tactics"
	mw "github.com/kasuganosora/allyai/middleware"
	"github.com/kasuganosora/allyai/plugin/hook"
	"github.com/kasuganosora/allyai/resource"
	"github.com/kasuganosora/allyai/scheduler"
	"github.com/kasuganosora/allyai/testutil"
	"github.com/kasuganosora/allyai/trace"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// AdminKey is the admin key of every TestServer.
const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with the arena, trace and scheduler
// wired together and ticking.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Arena  *arena.Arena
	Trace  *trace.Service
	Sched  *scheduler.Scheduler
	Hooks  *hook.Center
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	Sec    config.SecurityConfig
}

// rosterPath locates the shipped roster relative to this file.
func rosterPath(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	return filepath.Join(filepath.Dir(filepath.Dir(thisFile)), "data", "roster.yaml")
}

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go, with a fast tick.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
	traceSvc := trace.New(db, c, pubsub, config.TraceConfig{
		Enabled:       true,
		SampleEvery:   1,
		BatchSize:     50,
		FlushInterval: 50 * time.Millisecond,
		Buffer:        4096,
		Channel:       "it:decisions",
		LatestTTL:     time.Minute,
		HistoryLen:    20,
	}, logger)

	// ---- Arena ----
	roster, err := resource.LoadRoster(rosterPath(t), "balanced")
	require.NoError(t, err)
	arenaCfg := arena.DefaultConfig()
	roster.Apply(&arenaCfg)
	a := arena.New(arenaCfg, roster.Allies, director.Options{
		Profiles:    roster.Profiles,
		Catalog:     roster.Catalog,
		Formation:   tactics.Scattered,
		PositionTTL: 100 * time.Millisecond,
		Recorder:    traceSvc,
		Logger:      logger,
	}, logger)

	hooks := hook.NewCenter()
	sseH := sse.NewHandler(pubsub, traceSvc.Channel(), logger)
	sseH.Forward(hooks)
	a.SetHooks(hooks)

	sched := scheduler.New(logger)
	sched.AddTicker("arena", 20*time.Millisecond, func(dt time.Duration) {
		a.Step(dt.Seconds())
	})

	// ---- Gin HTTP Server ----
	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "session": a.SessionID()})
	})

	// ---- REST API routes (mirrors main.go) ----
	arenaH := apirest.NewArenaHandler(a, traceSvc, sseH, logger)
	adminH := apirest.NewAdminHandler(a, traceSvc, sched, c, sec, sseH, logger)
	controller := mw.ControllerAuth(sec, c)

	api := r.Group("/api")
	{
		arenaG := api.Group("/arena")
		arenaG.Use(controller)
		arenaG.GET("", arenaH.State)
		arenaG.GET("/strategies", arenaH.Strategies)
		arenaG.GET("/leaderboard", arenaH.Leaderboard)
		arenaG.POST("/formation", arenaH.SetFormation)
		arenaG.POST("/player", arenaH.MovePlayer)

		alliesG := api.Group("/allies")
		alliesG.Use(controller)
		alliesG.POST("/:id/command", arenaH.Command)
		alliesG.POST("/:id/strategy", arenaH.SetStrategy)
		alliesG.POST("/:id/loadout", arenaH.SetLoadout)
		alliesG.GET("/:id/decision", arenaH.Decision)
		alliesG.GET("/:id/history", arenaH.History)
		alliesG.GET("/:id/stats", arenaH.Stats)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(AdminKey))
		adminG.POST("/tokens", adminH.IssueToken)
		adminG.DELETE("/tokens/:jti", adminH.RevokeToken)
		adminG.POST("/reset", adminH.Reset)
		adminG.POST("/allies", adminH.AddAlly)
		adminG.DELETE("/allies/:id", adminH.RemoveAlly)
		adminG.GET("/decisions", adminH.Decisions)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.POST("/scheduler/:name/pause", adminH.PauseTask)
		adminG.POST("/scheduler/:name/resume", adminH.ResumeTask)
	}
	r.GET("/sse/decisions", controller, sseH.ServeDecisions)

	// ---- Start server ----
	server := httptest.NewUnstartedServer(r)
	server.Config.BaseContext = func(net.Listener) context.Context { return ctx }
	server.Start()

	ts := &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Arena:  a,
		Trace:  traceSvc,
		Sched:  sched,
		Hooks:  hooks,
		Server: server,
		URL:    server.URL,
		Sec:    sec,
	}
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return ts
}

// Close stops the tick, drains the trace and shuts the server down. It is
// safe to call more than once.
func (ts *TestServer) Close() {
	ts.Sched.Stop()
	ts.Trace.Stop(context.Background())
	ts.Server.Close()
}

// --- HTTP helpers ---

// Do sends a request with an optional JSON body and Bearer token.
func (ts *TestServer) Do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Admin sends a request carrying the admin key.
func (ts *TestServer) Admin(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", AdminKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// ControllerToken issues a controller token through the admin API.
func (ts *TestServer) ControllerToken(t *testing.T, controller string) string {
	t.Helper()
	resp := ts.Admin(t, http.MethodPost, "/api/admin/tokens", map[string]string{"controller": controller})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token string `json:"token"`
	}
	ReadJSON(t, resp, &result)
	require.NotEmpty(t, result.Token)
	return result.Token
}

// --- SSE client ---

// Event is one received server-sent event.
type Event struct {
	Name string
	Data string
}

// StreamClient reads a decision stream on a dedicated goroutine.
type StreamClient struct {
	t      *testing.T
	cancel context.CancelFunc
	events chan Event
}

// OpenStream connects to /sse/decisions and waits for the connected event.
func (ts *TestServer) OpenStream(t *testing.T, token, query string) *StreamClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	url := ts.URL + "/sse/decisions?token=" + token
	if query != "" {
		url += "&" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc := &StreamClient{t: t, cancel: cancel, events: make(chan Event, 1024)}
	go sc.readLoop(resp.Body)
	t.Cleanup(sc.Close)

	sc.RecvEvent("connected", 5*time.Second)
	return sc
}

func (sc *StreamClient) readLoop(body io.ReadCloser) {
	defer body.Close()
	defer close(sc.events)
	br := bufio.NewReader(body)
	var ev Event
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && ev.Name != "":
			select {
			case sc.events <- ev:
			default:
			}
			ev = Event{}
		}
	}
}

// RecvEvent reads events until one with the given name arrives.
func (sc *StreamClient) RecvEvent(name string, timeout time.Duration) Event {
	sc.t.Helper()
	return sc.RecvMatch(name, timeout, func(Event) bool { return true })
}

// RecvMatch reads events until one with the given name satisfies match.
func (sc *StreamClient) RecvMatch(name string, timeout time.Duration, match func(Event) bool) Event {
	sc.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sc.events:
			if !ok {
				sc.t.Fatalf("stream closed while waiting for %q", name)
			}
			if ev.Name == name && match(ev) {
				return ev
			}
		case <-deadline:
			sc.t.Fatalf("timed out waiting for event %q", name)
			return Event{}
		}
	}
}

// Close disconnects the stream.
func (sc *StreamClient) Close() {
	sc.cancel()
}

// Eventually polls cond every 20ms until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, timeout, 20*time.Millisecond, msg)
}
