package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gin-gonic/gin"

	"medtrack/internal/api"
	"medtrack/internal/auth"
	"medtrack/internal/config"
	"medtrack/internal/logger"
	"medtrack/internal/redis"
	"medtrack/internal/service/assistant"
	"medtrack/internal/service/tracker"
	"medtrack/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("MEDTRACK_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("resolve time zone", "error", err)
	}

	clk := clock.New()
	store, err := openStore(cfg, clk)
	if err != nil {
		log.Fatal("open store", "store", cfg.BasicConfig.Store, "error", err)
	}
	defer store.Close()
	log.Info("record store ready", "store", cfg.BasicConfig.Store)

	tokens, closeTokens, err := openTokenStore(cfg, clk)
	if err != nil {
		log.Fatal("open token store", "error", err)
	}
	defer closeTokens()

	authService := auth.NewService(tokens, clk, time.Duration(cfg.BasicConfig.TokenTTLHours)*time.Hour)
	assistantService := assistant.NewService(store, clk, log.With("component", "assistant"))
	trackerService := tracker.NewService(store, clk, log.With("component", "tracker"))
	trackerService.SetLocation(loc)
	handlers := api.NewHandler(assistantService, trackerService, authService, log.With("component", "api"))

	if strings.EqualFold(cfg.Log.Mode, "prod") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestID(), api.RequestLogger(log), api.CORS(cfg.BasicConfig.AllowOrigins))
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", "error", err)
	}
}

// openStore builds the configured record store: "memory" or one of the SQL dialects.
func openStore(cfg *config.Config, clk clock.Clock) (storage.Store, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.BasicConfig.Store))
	if kind == "" || kind == "memory" {
		return storage.NewMemoryStore(clk), nil
	}
	driver, err := storage.NormalizeDriver(kind)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(kind, cfg)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return storage.NewSQLStore(db, clk), nil
}

// openTokenStore uses redis when enabled so sessions survive restarts and
// are shared between instances.
func openTokenStore(cfg *config.Config, clk clock.Clock) (auth.TokenStore, func(), error) {
	if !cfg.Redis.Enabled {
		return auth.NewMemoryTokens(), func() {}, nil
	}
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewRedisTokens(rdb, clk), func() { rdb.Close() }, nil
}
