package rest

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/allyai/cache"
	"github.com/kasuganosora/allyai/config"
	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/arena"
	"github.com/kasuganosora/allyai/game/geom"
	mw "github.com/kasuganosora/allyai/middleware"
	"github.com/kasuganosora/allyai/scheduler"
	"github.com/kasuganosora/allyai/trace"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	arena  *arena.Arena
	trace  *trace.Service
	sched  *scheduler.Scheduler
	cache  cache.Cache
	sec    config.SecurityConfig
	events Announcer
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler. events may be nil.
func NewAdminHandler(
	a *arena.Arena,
	tr *trace.Service,
	sched *scheduler.Scheduler,
	c cache.Cache,
	sec config.SecurityConfig,
	events Announcer,
	logger *zap.Logger,
) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{arena: a, trace: tr, sched: sched, cache: c, sec: sec, events: events, logger: logger}
}

func (h *AdminHandler) announce(c *gin.Context, kind string, data any) {
	if h.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()
	if err := h.events.Announce(ctx, kind, data); err != nil {
		h.logger.Warn("announce failed", zap.String("kind", kind), zap.Error(err))
	}
}

type tokenRequest struct {
	Controller string `json:"controller" binding:"required,min=1,max=64"`
}

// IssueToken mints a controller JWT and marks it live in the cache.
// POST /api/admin/tokens
func (h *AdminHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, jti, err := mw.GenerateToken(req.Controller, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	if err := h.cache.Set(c.Request.Context(), mw.TokenKey(jti), req.Controller, h.sec.JWTTTLH); err != nil {
		h.logger.Error("token store failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	h.logger.Info("controller token issued", zap.String("controller", req.Controller), zap.String("jti", jti))
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"jti":        jti,
		"controller": req.Controller,
		"expires_in": int64(h.sec.JWTTTLH.Seconds()),
	})
}

// RevokeToken ends a controller session.
// DELETE /api/admin/tokens/:jti
func (h *AdminHandler) RevokeToken(c *gin.Context) {
	jti := c.Param("jti")
	live, err := h.cache.Exists(c.Request.Context(), mw.TokenKey(jti))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	if !live {
		c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
		return
	}
	if err := h.cache.Del(c.Request.Context(), mw.TokenKey(jti)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	h.logger.Info("controller token revoked", zap.String("jti", jti))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Reset restores every unit and starts a new decision session.
// POST /api/admin/reset
func (h *AdminHandler) Reset(c *gin.Context) {
	session := h.arena.Reset()
	h.trace.Forget(c.Request.Context(), h.arena.AllyIDs()...)
	h.logger.Info("arena reset", zap.String("session", session))
	h.announce(c, "reset", gin.H{"session": session})
	c.JSON(http.StatusOK, gin.H{"session": session})
}

type addAllyRequest struct {
	Name      string    `json:"name" binding:"required,max=32"`
	Slot      int       `json:"slot"`
	MaxHealth float64   `json:"max_health"`
	Strategy  string    `json:"strategy"`
	Position  geom.Vec3 `json:"position"`
}

// AddAlly joins a new companion to the roster.
// POST /api/admin/allies
func (h *AdminHandler) AddAlly(c *gin.Context) {
	var req addAllyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	catalog := h.arena.Catalog()
	if _, ok := catalog[req.Slot]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": arena.ErrUnknownAbility.Error()})
		return
	}
	name := req.Strategy
	if name == "" {
		name = "balanced"
	}
	st, err := h.arena.Strategy(name)
	if err != nil {
		arenaError(c, err)
		return
	}
	if req.MaxHealth <= 0 {
		req.MaxHealth = 100
	}
	comp := ally.New(req.Name, req.Slot, req.MaxHealth, st, catalog)
	comp.Position = req.Position
	h.arena.AddAlly(comp)
	h.logger.Info("ally joined", zap.Int64("ally", int64(comp.ID)), zap.String("name", comp.Name))
	h.announce(c, "roster", gin.H{"joined": comp.ID})
	c.JSON(http.StatusCreated, gin.H{"id": comp.ID, "name": comp.Name})
}

// RemoveAlly drops a companion and its cached trace.
// DELETE /api/admin/allies/:id
func (h *AdminHandler) RemoveAlly(c *gin.Context) {
	id, ok := allyID(c)
	if !ok {
		return
	}
	if err := h.arena.RemoveAlly(id); err != nil {
		arenaError(c, err)
		return
	}
	h.trace.Forget(c.Request.Context(), id)
	h.logger.Info("ally left", zap.Int64("ally", int64(id)))
	h.announce(c, "roster", gin.H{"left": id})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Decisions returns persisted decisions of a session.
// GET /api/admin/decisions?session=&ally=&limit=
func (h *AdminHandler) Decisions(c *gin.Context) {
	session := c.DefaultQuery("session", h.arena.SessionID())
	var id int64
	if raw := c.Query("ally"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ally id"})
			return
		}
		id = v
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.trace.Query(c.Request.Context(), session, ally.ID(id), limit)
	if err != nil {
		h.logger.Error("decision query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "decisions": logs, "count": len(logs)})
}

// ListSchedulerTasks returns every registered ticker task.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// PauseTask suspends a ticker task, freezing the simulation when it is the
// arena task.
// POST /api/admin/scheduler/:name/pause
func (h *AdminHandler) PauseTask(c *gin.Context) {
	h.setPaused(c, true)
}

// ResumeTask continues a paused ticker task.
// POST /api/admin/scheduler/:name/resume
func (h *AdminHandler) ResumeTask(c *gin.Context) {
	h.setPaused(c, false)
}

func (h *AdminHandler) setPaused(c *gin.Context, paused bool) {
	name := c.Param("name")
	var ok bool
	if paused {
		ok = h.sched.Pause(name)
	} else {
		ok = h.sched.Resume(name)
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	h.announce(c, "scheduler", gin.H{"task": name, "paused": paused})
	c.JSON(http.StatusOK, gin.H{"task": name, "paused": paused})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
