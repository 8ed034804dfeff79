package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gmnlabs/gmn-shop/internal/api"
	"github.com/gmnlabs/gmn-shop/internal/auth"
	"github.com/gmnlabs/gmn-shop/internal/authority"
	"github.com/gmnlabs/gmn-shop/internal/config"
	"github.com/gmnlabs/gmn-shop/internal/receipts"
	"github.com/gmnlabs/gmn-shop/internal/registry"
	"github.com/gmnlabs/gmn-shop/internal/replay"
	"github.com/gmnlabs/gmn-shop/internal/shop"
	"github.com/gmnlabs/gmn-shop/internal/token"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	shopAddr := common.HexToAddress(cfg.Shop.Address)
	treasury := common.HexToAddress(cfg.Shop.Treasury)

	// ── Authority registry (admin seeded once) ────────────────────────────────
	issuers := authority.New(rdb)
	if err := issuers.Init(ctx, common.HexToAddress(cfg.Shop.Admin)); err != nil {
		log.Fatal("authority init failed", zap.Error(err))
	}

	// ── Redemption engine ─────────────────────────────────────────────────────
	engine := shop.NewEngine(
		issuers,
		replay.New(rdb),
		token.NewLedger(rdb, shopAddr),
		registry.New(rdb),
		shopAddr,
		treasury,
		shop.NewQueueSink(rdb, log),
		log,
	)

	// ── Receipts consumer ─────────────────────────────────────────────────────
	go receipts.Run(ctx, rdb, log)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	apiGroup := r.Group("/api", auth.Middleware(rdb))
	api.NewHandler(engine, issuers, rdb, log).Register(apiGroup)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("shop", shopAddr.Hex()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
