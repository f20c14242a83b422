package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/patgest/internal/api"
	"github.com/dgallion1/patgest/internal/config"
	"github.com/dgallion1/patgest/internal/extract"
	"github.com/dgallion1/patgest/internal/metrics"
	"github.com/dgallion1/patgest/internal/pathstore"
	"github.com/dgallion1/patgest/internal/pipeline"
	"github.com/dgallion1/patgest/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	ext, err := extract.New(cfg.ModelProvider, cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LocalModelURL)
	if err != nil {
		log.Error("model client", "error", err)
		os.Exit(1)
	}

	var ps *pathstore.Client
	if cfg.PathstoreURL != "" {
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
	}

	var (
		st *store.Store
		rs pipeline.RunStore
	)
	if cfg.DBPath != "" {
		st, err = store.Open(cfg.DBPath)
		if err != nil {
			log.Error("open run store", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		rs = st
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, ext, ps, rs, m, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, st, m, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		ext.Close()
		if ps != nil {
			ps.Close()
		}
		if st != nil {
			st.Close()
		}
	}()

	log.Info("starting patgest",
		"port", cfg.Port,
		"model", ext.Model(),
		"data_section", cfg.DataSection,
		"pathstore", cfg.PathstoreURL != "",
		"db", cfg.DBPath,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
