package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/arena"
	"github.com/kasuganosora/allyai/game/geom"
	"github.com/kasuganosora/allyai/game/tactics"
	mw "github.com/kasuganosora/allyai/middleware"
	"github.com/kasuganosora/allyai/trace"
	"go.uber.org/zap"
)

// Announcer pushes arena events to connected streams.
type Announcer interface {
	Announce(ctx context.Context, kind string, data any) error
}

// ArenaHandler is the controller surface: formation, per-ally orders and
// decision read-outs. Routes are protected by ControllerAuth.
type ArenaHandler struct {
	arena  *arena.Arena
	trace  *trace.Service
	events Announcer
	logger *zap.Logger
}

// NewArenaHandler creates an ArenaHandler. events may be nil.
func NewArenaHandler(a *arena.Arena, tr *trace.Service, events Announcer, logger *zap.Logger) *ArenaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArenaHandler{arena: a, trace: tr, events: events, logger: logger}
}

func (h *ArenaHandler) announce(c *gin.Context, kind string, data any) {
	if h.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()
	if err := h.events.Announce(ctx, kind, data); err != nil {
		h.logger.Warn("announce failed", zap.String("kind", kind), zap.Error(err))
	}
}

// allyID parses the :id path parameter.
func allyID(c *gin.Context) (ally.ID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ally id"})
		return 0, false
	}
	return ally.ID(id), true
}

// arenaError maps arena errors onto HTTP statuses.
func arenaError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, arena.ErrUnknownAlly):
		c.JSON(http.StatusNotFound, gin.H{"error": "ally not found"})
	case errors.Is(err, arena.ErrCommandRejected):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, arena.ErrUnknownAbility), errors.Is(err, arena.ErrUnknownStrategy):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// State handles GET /api/arena.
func (h *ArenaHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.arena.State())
}

// Strategies handles GET /api/arena/strategies.
func (h *ArenaHandler) Strategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": h.arena.Strategies(), "abilities": h.arena.Catalog()})
}

type formationRequest struct {
	Formation string `json:"formation" binding:"required"`
}

// SetFormation handles POST /api/arena/formation.
func (h *ArenaHandler) SetFormation(c *gin.Context) {
	var req formationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := tactics.ParseFormation(req.Formation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.arena.SetFormation(f)
	h.logger.Info("formation changed",
		zap.String("formation", f.String()),
		zap.String("controller", mw.GetController(c)))
	h.announce(c, "formation", gin.H{"formation": f.String()})
	c.JSON(http.StatusOK, gin.H{"formation": f.String()})
}

type playerRequest struct {
	Position geom.Vec3 `json:"position"`
	Facing   float64   `json:"facing"`
}

// MovePlayer handles POST /api/arena/player.
func (h *ArenaHandler) MovePlayer(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.arena.MovePlayer(req.Position, req.Facing)
	c.JSON(http.StatusOK, h.arena.State().Player)
}

// Leaderboard handles GET /api/arena/leaderboard?limit=.
func (h *ArenaHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	session := h.arena.SessionID()
	rows, err := h.trace.Leaderboard(c.Request.Context(), session, limit)
	if err != nil {
		h.logger.Error("leaderboard read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "leaderboard": rows})
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
}

// Command handles POST /api/allies/:id/command. Repeating the active order
// clears it.
func (h *ArenaHandler) Command(c *gin.Context) {
	id, ok := allyID(c)
	if !ok {
		return
	}
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd, err := ally.ParseCommand(req.Command)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	active, err := h.arena.Command(id, cmd)
	if err != nil {
		arenaError(c, err)
		return
	}
	h.logger.Info("ally command",
		zap.Int64("ally", int64(id)),
		zap.String("command", active.String()),
		zap.String("controller", mw.GetController(c)))
	c.JSON(http.StatusOK, gin.H{"id": id, "command": active.String()})
}

type strategyRequest struct {
	Strategy string `json:"strategy" binding:"required"`
}

// SetStrategy handles POST /api/allies/:id/strategy.
func (h *ArenaHandler) SetStrategy(c *gin.Context) {
	id, ok := allyID(c)
	if !ok {
		return
	}
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.arena.Strategy(req.Strategy)
	if err != nil {
		arenaError(c, err)
		return
	}
	if err := h.arena.SetStrategy(id, st); err != nil {
		arenaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "strategy": req.Strategy})
}

type loadoutRequest struct {
	Slot *int `json:"slot" binding:"required"`
}

// SetLoadout handles POST /api/allies/:id/loadout.
func (h *ArenaHandler) SetLoadout(c *gin.Context) {
	id, ok := allyID(c)
	if !ok {
		return
	}
	var req loadoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.arena.SetLoadout(id, *req.Slot); err != nil {
		arenaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "slot": *req.Slot, "ability": h.arena.Catalog().Ability(*req.Slot).Name})
}

// Decision handles GET /api/allies/:id/decision. The traced copy is served
// when present, otherwise the arena's in-memory one.
func (h *ArenaHandler) Decision(c *gin.Context) {
	id, ok := allyID(c)
	if !ok {
		return
	}
	d, err := h.trace.Latest(c.Request.Context(), id)
	if err == nil {
		c.JSON(http.StatusOK, d)
		return
	}
	if !errors.Is(err, trace.ErrNoDecision) {
		h.logger.Warn("trace latest read failed", zap.Int64("ally", int64(id)), zap.Error(err))
	}
	if d, ok := h.arena.LastDecision(id); ok {
		c.JSON(http.StatusOK, d)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "no decision yet"})
}

// History handles GET /api/allies/:id/history?limit=.
func (h *ArenaHandler) History(c *gin.Context) {
	id, ok := allyID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, err := h.trace.History(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("history read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "decisions": rows})
}

// Stats handles GET /api/allies/:id/stats: action counts for the current
// session.
func (h *ArenaHandler) Stats(c *gin.Context) {
	id, ok := allyID(c)
	if !ok {
		return
	}
	session := h.arena.SessionID()
	tally, err := h.trace.Tally(c.Request.Context(), session, id)
	if err != nil {
		h.logger.Error("tally read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "session": session, "actions": tally})
}
