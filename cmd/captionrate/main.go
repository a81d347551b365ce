package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"captionrate/internal/auth"
	"captionrate/internal/caption"
	"captionrate/internal/config"
	"captionrate/internal/db"
	httpx "captionrate/internal/http"
	"captionrate/internal/logging"
	"captionrate/internal/metrics"
	"captionrate/internal/objstore"
	"captionrate/internal/rating"
	"captionrate/internal/view"
	"captionrate/internal/vote"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text", os.Stderr).Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	logger.Info("connecting database", "driver", cfg.DatabaseDriver, "dsn", db.Describe(cfg.DatabaseDriver, cfg.DatabaseURL))
	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		fatal("database connect failed", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		fatal("database migrate failed", err)
	}

	bucket, err := objstore.Open(cfg.Storage)
	if err != nil {
		fatal("object storage open failed", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		fatal("metrics setup failed", err)
	}

	renderer, err := view.New()
	if err != nil {
		fatal("templates failed to parse", err)
	}

	var google *auth.Google
	if cfg.GoogleEnabled() {
		google = auth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.PublicBaseURL+"/auth/callback")
	} else {
		logger.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, sign-in disabled")
	}

	// vote writer
	writer := vote.NewWriter(&caption.Service{DB: gdb, Logger: logger, Metrics: m}, cfg.VoteQueueSize)
	writer.Logger = logger
	writer.Metrics = m

	ctx, cancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		writer.Run(ctx)
	}()

	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:      gdb,
		JWT:     auth.NewJWT(cfg.JWTSecret, cfg.SessionTTL),
		Google:  google,
		Hub:     auth.NewHub(),
		Decks:   rating.NewRegistry(rating.DefaultDeckTTL),
		Bucket:  bucket,
		Votes:   writer,
		View:    renderer,
		Metrics: m,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("http server failed", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}

	cancel()
	workers.Wait()
}
