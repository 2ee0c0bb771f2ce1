package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kasuganosora/allyai/cache"
	"github.com/kasuganosora/allyai/config"
	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/director"
	"github.com/kasuganosora/allyai/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNoDecision is returned when no decision is cached for a companion.
var ErrNoDecision = errors.New("trace: no decision recorded")

const abilityActionPrefix = "use_ability"

// LatestKey holds the JSON of a companion's most recent decision.
func LatestKey(id ally.ID) string { return fmt.Sprintf("allyai:decision:%d", id) }

// HistoryKey is the capped list of a companion's recent decisions, newest first.
func HistoryKey(id ally.ID) string { return fmt.Sprintf("allyai:history:%d", id) }

// TallyKey counts actions per companion within a session.
func TallyKey(session string, id ally.ID) string {
	return fmt.Sprintf("allyai:%s:actions:%d", session, id)
}

// LeaderboardKey ranks companions by abilities used within a session.
func LeaderboardKey(session string) string { return fmt.Sprintf("allyai:%s:abilities", session) }

// Standing is one row of the ability leaderboard.
type Standing struct {
	CompanionID ally.ID `json:"companion_id"`
	Abilities   int64   `json:"abilities"`
}

// Service records director decisions asynchronously: every decision updates
// the cache and is published, and sampled passes are written to the DB in
// batches.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	pubsub cache.PubSub
	cfg    config.TraceConfig
	ch     chan director.Decision
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a trace Service and starts its background worker. Any of db,
// c and ps may be nil to skip that sink.
func New(db *gorm.DB, c cache.Cache, ps cache.PubSub, cfg config.TraceConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = 1
	}
	if cfg.HistoryLen <= 0 {
		cfg.HistoryLen = 20
	}
	svc := &Service{
		db:     db,
		cache:  c,
		pubsub: ps,
		cfg:    cfg,
		ch:     make(chan director.Decision, cfg.Buffer),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues a decision. It never blocks the tick; when the buffer is
// full the decision is dropped.
func (svc *Service) Record(d director.Decision) {
	if !svc.cfg.Enabled {
		return
	}
	select {
	case <-svc.stopCh:
		return
	default:
	}
	select {
	case svc.ch <- d:
	default:
		svc.logger.Warn("trace channel full, dropping decision",
			zap.Int64("ally_id", int64(d.CompanionID)),
			zap.Int64("tick", d.Tick))
	}
}

// Channel is the pub/sub channel decisions are published on.
func (svc *Service) Channel() string { return svc.cfg.Channel }

// Stop drains queued decisions, flushes the batch and stops the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*model.DecisionLog, 0, svc.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 || svc.db == nil {
			batch = batch[:0]
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("trace batch write failed", zap.Int("rows", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	handle := func(d director.Decision) {
		svc.publish(d)
		if svc.sampled(d) {
			batch = append(batch, toLog(d))
			if len(batch) >= svc.cfg.BatchSize {
				flush()
			}
		}
	}

	for {
		select {
		case d := <-svc.ch:
			handle(d)
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case d := <-svc.ch:
					handle(d)
				default:
					flush()
					return
				}
			}
		}
	}
}

// sampled persists every Nth pass plus every ability use.
func (svc *Service) sampled(d director.Decision) bool {
	return d.Tick%int64(svc.cfg.SampleEvery) == 0 || isAbility(d.Action)
}

func isAbility(action string) bool {
	return strings.HasPrefix(action, abilityActionPrefix)
}

func (svc *Service) publish(d director.Decision) {
	payload, err := json.Marshal(d)
	if err != nil {
		svc.logger.Error("trace marshal failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if svc.cache != nil {
		if err := svc.cache.Set(ctx, LatestKey(d.CompanionID), string(payload), svc.cfg.LatestTTL); err != nil {
			svc.logger.Warn("trace cache write failed", zap.Error(err))
		}
		if d.Action != "" {
			histKey := HistoryKey(d.CompanionID)
			if err := svc.cache.LPush(ctx, histKey, string(payload)); err != nil {
				svc.logger.Warn("trace history write failed", zap.Int64("ally_id", int64(d.CompanionID)), zap.Error(err))
			} else if err := svc.cache.LTrim(ctx, histKey, 0, int64(svc.cfg.HistoryLen-1)); err != nil {
				svc.logger.Warn("trace history trim failed", zap.Int64("ally_id", int64(d.CompanionID)), zap.Error(err))
			}
			if _, err := svc.cache.HIncrBy(ctx, TallyKey(d.SessionID, d.CompanionID), d.Action, 1); err != nil {
				svc.logger.Warn("trace tally write failed", zap.Int64("ally_id", int64(d.CompanionID)), zap.Error(err))
			}
		}
		if isAbility(d.Action) {
			member := strconv.FormatInt(int64(d.CompanionID), 10)
			if _, err := svc.cache.ZIncrBy(ctx, LeaderboardKey(d.SessionID), member, 1); err != nil {
				svc.logger.Warn("trace leaderboard write failed", zap.Int64("ally_id", int64(d.CompanionID)), zap.Error(err))
			}
		}
	}
	if svc.pubsub != nil && svc.cfg.Channel != "" {
		if err := svc.pubsub.Publish(ctx, svc.cfg.Channel, string(payload)); err != nil {
			svc.logger.Warn("trace publish failed", zap.Error(err))
		}
	}
}

func toLog(d director.Decision) *model.DecisionLog {
	intent, _ := json.Marshal(d.Intent)
	return &model.DecisionLog{
		SessionID:   d.SessionID,
		CompanionID: int64(d.CompanionID),
		Name:        d.Name,
		Tick:        d.Tick,
		SimTime:     d.Time,
		Outcome:     d.Outcome,
		Action:      d.Action,
		Role:        d.Role,
		Strategy:    d.Strategy,
		Command:     d.Command,
		Formation:   d.Formation,
		Health:      d.Health,
		Intent:      datatypes.JSON(intent),
	}
}

// Latest returns the most recent cached decision of a companion.
func (svc *Service) Latest(ctx context.Context, id ally.ID) (director.Decision, error) {
	var d director.Decision
	if svc.cache == nil {
		return d, ErrNoDecision
	}
	raw, err := svc.cache.Get(ctx, LatestKey(id))
	if cache.IsNotFound(err) {
		return d, ErrNoDecision
	}
	if err != nil {
		return d, fmt.Errorf("trace: latest: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return d, fmt.Errorf("trace: decode latest: %w", err)
	}
	return d, nil
}

// History returns up to n recent decisions of a companion, newest first.
func (svc *Service) History(ctx context.Context, id ally.ID, n int) ([]director.Decision, error) {
	if svc.cache == nil || n <= 0 {
		return nil, nil
	}
	raws, err := svc.cache.LRange(ctx, HistoryKey(id), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("trace: history: %w", err)
	}
	out := make([]director.Decision, 0, len(raws))
	for _, raw := range raws {
		var d director.Decision
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Tally returns per-action counts of a companion within a session.
func (svc *Service) Tally(ctx context.Context, session string, id ally.ID) (map[string]int64, error) {
	out := make(map[string]int64)
	if svc.cache == nil {
		return out, nil
	}
	raw, err := svc.cache.HGetAll(ctx, TallyKey(session, id))
	if err != nil {
		return nil, fmt.Errorf("trace: tally: %w", err)
	}
	for action, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[action] = n
	}
	return out, nil
}

// Leaderboard returns the top n companions by abilities used in a session.
func (svc *Service) Leaderboard(ctx context.Context, session string, n int) ([]Standing, error) {
	if svc.cache == nil || n <= 0 {
		return nil, nil
	}
	key := LeaderboardKey(session)
	members, err := svc.cache.ZRevRange(ctx, key, 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("trace: leaderboard: %w", err)
	}
	out := make([]Standing, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		score, err := svc.cache.ZScore(ctx, key, m)
		if err != nil {
			continue
		}
		out = append(out, Standing{CompanionID: ally.ID(id), Abilities: int64(score)})
	}
	return out, nil
}

// Query reads persisted decisions of a session, newest first. A zero id
// selects every companion.
func (svc *Service) Query(ctx context.Context, session string, id ally.ID, limit int) ([]model.DecisionLog, error) {
	if svc.db == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := svc.db.WithContext(ctx).Where("session_id = ?", session)
	if id != 0 {
		q = q.Where("companion_id = ?", int64(id))
	}
	var logs []model.DecisionLog
	if err := q.Order("tick DESC, companion_id ASC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("trace: query: %w", err)
	}
	return logs, nil
}

// Forget drops the cached state of companions, used when the arena resets
// or a companion leaves.
func (svc *Service) Forget(ctx context.Context, ids ...ally.ID) {
	if svc.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, LatestKey(id), HistoryKey(id))
	}
	if err := svc.cache.Del(ctx, keys...); err != nil {
		svc.logger.Warn("trace forget failed", zap.Error(err))
	}
}
