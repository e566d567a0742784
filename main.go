package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/nexuswars/server/api/rest"
	"github.com/nexuswars/server/audit"
	"github.com/nexuswars/server/cache"
	"github.com/nexuswars/server/config"
	dbadapter "github.com/nexuswars/server/db"
	"github.com/nexuswars/server/game/guild"
	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/game/market"
	"github.com/nexuswars/server/game/nexus"
	"github.com/nexuswars/server/game/objective"
	"github.com/nexuswars/server/game/panel"
	"github.com/nexuswars/server/game/player"
	"github.com/nexuswars/server/game/shield"
	"github.com/nexuswars/server/model"
	"github.com/nexuswars/server/scheduler"
	"go.uber.org/zap"
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

	if cfg.Security.AdminKey == "" {
		logger.Warn("security.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.ServerKey == "" {
		logger.Warn("security.server_key is not set; internal endpoints are disabled")
	}

	// ---- Database ----
	gw, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer gw.Close()
	if err := model.AutoMigrate(gw.DB()); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	if err := model.SeedTeams(gw.DB()); err != nil {
		log.Fatalf("db seed: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", gw.Mode()))

	// ---- Audit ----
	auditSvc := audit.New(gw.DB(), logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Services ----
	ledgerSvc := ledger.NewService(gw, auditSvc, cfg.Economy, logger)
	playerSvc := player.NewService(gw, ledgerSvc, auditSvc, cfg.Economy, cfg.Team, logger)
	guildSvc := guild.NewService(gw, ledgerSvc, auditSvc, cfg.Guild, logger)
	shieldSvc := shield.NewService(gw, ledgerSvc, auditSvc, cfg.Shield, logger)
	nexusSvc := nexus.NewService(gw, ledgerSvc, shieldSvc, auditSvc, cfg.Nexus, logger)
	objectiveSvc := objective.NewService(gw, ledgerSvc, auditSvc, cfg.Objective, logger)
	marketSvc := market.NewService(gw, ledgerSvc, c, auditSvc, cfg.Market, logger)
	panelSvc := panel.NewService(gw, c, logger)

	// ---- Periodic Scheduler Tasks ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	tick := cfg.Server.TickInterval
	sched.AddTicker("shield_tick", tick, func() {
		ctx, cancel := context.WithTimeout(context.Background(), tick)
		defer cancel()
		if err := shieldSvc.Tick(ctx, time.Now()); err != nil {
			logger.Warn("shield tick failed", zap.Error(err))
		}
	})
	sched.AddTicker("nexus_tick", tick, func() {
		ctx, cancel := context.WithTimeout(context.Background(), tick)
		defer cancel()
		if err := nexusSvc.Tick(ctx, time.Now()); err != nil {
			logger.Warn("nexus tick failed", zap.Error(err))
		}
	})
	sched.AddTicker("objective_expiry", time.Minute, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if n, err := objectiveSvc.ExpireStale(ctx, time.Now()); err != nil {
			logger.Warn("objective expiry failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("objectives expired", zap.Int64("count", n))
		}
	})
	sched.AddTicker("market_expiry", 5*time.Minute, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if n, err := marketSvc.ExpireStale(ctx, time.Now()); err != nil {
			logger.Warn("market expiry failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("listings expired", zap.Int64("count", n))
		}
	})
	sched.AddTicker("leaderboard_refresh", time.Minute, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := panelSvc.RefreshLeaderboard(ctx); err != nil {
			logger.Warn("leaderboard refresh failed", zap.Error(err))
		}
	})
	sched.AddTicker("panel_snapshot", time.Minute, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := panelSvc.SnapshotAll(ctx, time.Now()); err != nil {
			logger.Warn("panel snapshot failed", zap.Error(err))
		}
	})

	// ---- HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := apirest.NewRouter(apirest.Deps{
		Gateway:   gw,
		Cache:     c,
		Ledger:    ledgerSvc,
		Player:    playerSvc,
		Guild:     guildSvc,
		Nexus:     nexusSvc,
		Shield:    shieldSvc,
		Objective: objectiveSvc,
		Market:    marketSvc,
		Panel:     panelSvc,
		Security:  cfg.Security,
		Logger:    logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
