package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/csg33k/mirecurso/internal/adapters/pdf"
	sqliteadapter "github.com/csg33k/mirecurso/internal/adapters/sqlite"
	"github.com/csg33k/mirecurso/internal/adapters/transcribe"
	"github.com/csg33k/mirecurso/internal/config"
	"github.com/csg33k/mirecurso/internal/handlers"
	"github.com/csg33k/mirecurso/internal/logger"
	"github.com/csg33k/mirecurso/internal/ports"
	"github.com/csg33k/mirecurso/internal/reference"
	"github.com/csg33k/mirecurso/internal/wizard"
)

const (
	sweepEvery  = 10 * time.Minute
	sessionIdle = 30 * time.Minute
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, "mirecurso")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ref := reference.Default()
	if cfg.ReferenceData != "" {
		var err error
		if ref, err = reference.Load(cfg.ReferenceData); err != nil {
			return err
		}
		lg.Info("reference data loaded", zap.String("path", cfg.ReferenceData))
	}

	repo, err := sqliteadapter.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	if n, err := repo.PurgeOlderThan(ctx, cfg.StateMaxAge); err != nil {
		lg.Warn("purge stale state", zap.Error(err))
	} else if n > 0 {
		lg.Info("purged stale state", zap.Int64("rows", n))
	}

	var stt ports.Transcriber
	if cfg.TranscriptionEnabled() {
		stt = transcribe.New(transcribe.Config{
			BaseURL: cfg.TranscribeURL,
			APIKey:  cfg.TranscribeAPIKey,
			Timeout: cfg.TranscribeTimeout,
		}, lg)
	} else {
		lg.Info("voice input disabled, TRANSCRIBE_URL not set")
	}

	sessions := handlers.NewSessions(repo, ref, cfg.SessionCookie, lg, wizard.WithDebounce(cfg.SaveDebounce))
	h := handlers.New(sessions, pdf.New(), stt, lg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := sessions.Sweep(ctx, sessionIdle); n > 0 {
					lg.Debug("idle sessions swept", zap.Int("count", n))
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		lg.Info("Mi Recurso running",
			zap.String("addr", "http://localhost:"+cfg.Port),
			zap.String("database", cfg.DBPath),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	sessions.Close(shutdownCtx)
	return err
}
