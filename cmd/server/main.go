// @title           Session Gate API
// @version         1.0
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sessiongate/internal/api"
	"sessiongate/internal/audit"
	"sessiongate/internal/config"
	"sessiongate/internal/database"
	"sessiongate/internal/jobs/cleanup"
	"sessiongate/internal/logger"
	"sessiongate/internal/sessions"
	"sessiongate/internal/telemetry"
	"sessiongate/internal/websocket"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const serviceName = "sessiongate"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("could not create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewProvider(ctx, cfg.OTel.Endpoint, serviceName, cfg.OTel.Insecure)
	if err != nil {
		zl.Fatal("could not init tracing", zap.Error(err))
	}
	tp.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	dbpool, err := database.NewPool(ctx, cfg.DB.Source, cfg.DB.MaxConns)
	if err != nil {
		zl.Fatal("could not connect to database", zap.Error(err))
	}
	defer dbpool.Close()
	zl.Info("connected to database")

	wsHub := websocket.NewHub(zl.Named("ws"))
	go wsHub.Run()

	store := database.NewStore(dbpool)
	engine, err := sessions.NewEngine(store, sessions.Options{
		Lifetime: cfg.Session.Lifetime,
		Recorder: audit.NewRecorder(zl.Named("audit")),
		Notifier: wsHub,
		Logger:   zl.Named("sessions"),
	})
	if err != nil {
		zl.Fatal("could not create session engine", zap.Error(err))
	}

	go cleanup.New(engine, cfg.Session.CleanupInterval, zl.Named("cleanup")).Start(ctx)

	server := api.NewServer(cfg, store, engine, wsHub, zl)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Warn("http shutdown", zap.Error(err))
		}
	}()

	zl.Info("starting server", zap.String("addr", cfg.HTTP.Addr), zap.String("env", cfg.Env))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Fatal("server stopped", zap.Error(err))
	}
	zl.Info("server stopped")
}
