package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/allyai/api/rest"
	"github.com/kasuganosora/allyai/api/sse"
	"github.com/kasuganosora/allyai/cache"
	"github.com/kasuganosora/allyai/config"
	dbadapter "github.com/kasuganosora/allyai/db"
	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/game/arena"
	"github.com/kasuganosora/allyai/game/director"
	"github.com/kasuganosora/allyai/game/tactics"
	"github.com/kasuganosora/allyai/game/world"
	mw "github.com/kasuganosora/allyai/middleware"
	"github.com/kasuganosora/allyai/model"
	"github.com/kasuganosora/allyai/plugin/hook"
	"github.com/kasuganosora/allyai/resource"
	"github.com/kasuganosora/allyai/scheduler"
	"github.com/kasuganosora/allyai/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.JWTSecret == "" {
		logger.Warn("security.jwt_secret is not set; controller tokens cannot be issued")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Decision trace ----
	traceSvc := trace.New(db, c, pubsub, cfg.Trace, logger)

	// ---- Roster ----
	roster, err := resource.LoadRoster(cfg.Arena.RosterPath, cfg.AI.DefaultStrategy)
	if err != nil {
		log.Fatalf("roster: %v", err)
	}
	logger.Info("roster loaded",
		zap.String("path", cfg.Arena.RosterPath),
		zap.Int("allies", len(roster.Allies)),
		zap.Int("profiles", len(roster.Profiles.Types())))

	formation, err := tactics.ParseFormation(cfg.AI.DefaultFormation)
	if err != nil {
		log.Fatalf("ai.default_formation: %v", err)
	}
	terrain, err := world.ParseTerrain(cfg.Arena.Terrain)
	if err != nil {
		log.Fatalf("arena.terrain: %v", err)
	}

	// ---- Arena ----
	arenaCfg := arena.DefaultConfig()
	arenaCfg.MoveSpeed = cfg.Arena.MoveSpeed
	arenaCfg.PlayerMaxHealth = cfg.Arena.PlayerMaxHealth
	arenaCfg.PlayerRegen = cfg.Arena.PlayerRegen
	arenaCfg.EnemyMaxHealth = cfg.Arena.EnemyMaxHealth
	arenaCfg.EnemySpeed = cfg.Arena.EnemySpeed
	arenaCfg.EnemyDamage = cfg.Arena.EnemyDamage
	arenaCfg.EnemyReach = cfg.Arena.EnemyReach
	arenaCfg.EnemyCooldown = cfg.Arena.EnemyCooldown
	arenaCfg.EnemyRespawn = cfg.Arena.EnemyRespawn
	roster.Apply(&arenaCfg)

	a := arena.New(arenaCfg, roster.Allies, director.Options{
		Profiles:    roster.Profiles,
		Catalog:     roster.Catalog,
		Terrain:     terrain,
		Formation:   formation,
		PositionTTL: cfg.AI.PositionTTL,
		Recorder:    traceSvc,
		Logger:      logger,
	}, logger)
	// ---- Hooks ----
	hooks := hook.NewCenter()
	disabled := make([]ally.Command, 0, len(cfg.AI.DisabledCommands))
	for _, name := range cfg.AI.DisabledCommands {
		cmd, err := ally.ParseCommand(name)
		if err != nil {
			log.Fatalf("ai.disabled_commands: %v", err)
		}
		disabled = append(disabled, cmd)
	}
	arena.RejectCommands(hooks, disabled...)
	sseH := sse.NewHandler(pubsub, traceSvc.Channel(), logger)
	sseH.Forward(hooks)
	a.SetHooks(hooks)

	logger.Info("arena ready",
		zap.String("session", a.SessionID()),
		zap.String("formation", formation.String()))

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	sched.AddTicker("arena", cfg.AI.TickInterval, func(dt time.Duration) {
		a.Step(dt.Seconds())
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "session": a.SessionID()})
	})

	arenaH := apirest.NewArenaHandler(a, traceSvc, sseH, logger)
	adminH := apirest.NewAdminHandler(a, traceSvc, sched, c, cfg.Security, sseH, logger)
	controller := mw.ControllerAuth(cfg.Security, c)

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
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
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

	// ---- SSE ----
	r.GET("/sse/decisions", controller, sseH.ServeDecisions)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	// Streams end with the base context, so Shutdown does not wait on them.
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()
	traceSvc.Stop(shutdownCtx)
	if err := pubsub.Close(); err != nil {
		logger.Warn("pubsub close", zap.Error(err))
	}
	if err := c.Close(); err != nil {
		logger.Warn("cache close", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
