package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/allyai/cache"
	"github.com/kasuganosora/allyai/plugin/hook"
	"go.uber.org/zap"
)

const keepalive = 30 * time.Second

// Handler streams traced decisions and arena events as server-sent events.
// Authentication is done by the route's middleware (controller token via
// ?token= since EventSource cannot set headers).
type Handler struct {
	pubsub    cache.PubSub
	decisions string
	events    string
	logger    *zap.Logger
}

// NewHandler creates a Handler reading decisions from channel. Arena events
// travel on channel + ":events".
func NewHandler(pubsub cache.PubSub, channel string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pubsub: pubsub, decisions: channel, events: channel + ":events", logger: logger}
}

// ServeDecisions handles GET /sse/decisions?token=<jwt>[&ally=<id>].
func (h *Handler) ServeDecisions(c *gin.Context) {
	var only int64
	if raw := c.Query("ally"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ally id"})
			return
		}
		only = id
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, h.decisions, h.events)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream unavailable"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"channel\":%q}\n\n", h.decisions)
	c.Writer.Flush()

	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			event := "decision"
			if msg.Channel == h.events {
				event = "arena"
			} else if only != 0 && companionOf(msg.Payload) != only {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

func companionOf(payload string) int64 {
	var head struct {
		CompanionID int64 `json:"companion_id"`
	}
	if err := json.Unmarshal([]byte(payload), &head); err != nil {
		return 0
	}
	return head.CompanionID
}

// Announce publishes an arena event (formation change, reset, roster change)
// to every stream.
func (h *Handler) Announce(ctx context.Context, kind string, data any) error {
	payload, err := json.Marshal(gin.H{"kind": kind, "data": data})
	if err != nil {
		return fmt.Errorf("sse: encode %s: %w", kind, err)
	}
	return h.pubsub.Publish(ctx, h.events, string(payload))
}

var forwarded = map[string]string{
	hook.AfterEnemyDefeated: "enemy_defeated",
	hook.AfterAllyDown:      "ally_down",
	hook.AfterPlayerDown:    "player_down",
}

// Forward registers hooks that announce arena combat events to every stream.
func (h *Handler) Forward(hc *hook.Center) {
	for event, kind := range forwarded {
		hc.Register(event, 100, "sse", func(ctx context.Context, _ string, data any) (any, error) {
			pubCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			if err := h.Announce(pubCtx, kind, data); err != nil {
				h.logger.Warn("sse forward failed", zap.String("kind", kind), zap.Error(err))
			}
			return data, nil
		})
	}
}
