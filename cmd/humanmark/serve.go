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

	"github.com/spf13/cobra"

	"github.com/humanmark/forensics/internal/config"
	"github.com/humanmark/forensics/internal/handler"
	"github.com/humanmark/forensics/internal/middleware"
	"github.com/humanmark/forensics/internal/repository"
	"github.com/humanmark/forensics/internal/service"
	"github.com/humanmark/forensics/internal/signals"
	"github.com/humanmark/forensics/pkg/logger"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.log

	engine, err := a.newEngine()
	if err != nil {
		return err
	}

	repo, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	if a.loader.Path() != "" {
		a.loader.OnChange(func(next *config.Config) {
			applyReload(engine, log, next)
		})
		if err := a.loader.Watch(); err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			defer a.loader.Close()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case err := <-a.loader.Errors():
						log.Warn("config reload rejected", "error", err)
					}
				}
			}()
		}
	}

	h := handler.New(handler.Config{
		Detector:      engine,
		Repository:    repo,
		Logger:        log,
		Catalogue:     engine.Catalogue,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		FetchTimeout:  time.Duration(cfg.Server.FetchTimeoutSec) * time.Second,

		AllowPrivateFetch: cfg.Server.AllowPrivateFetch,
	})

	router := h.Routes(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logging(log),
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.RateLimit(cfg.Server.RateLimitPerMinute, cfg.Server.TrustProxy),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"storage", cfg.Storage.Backend,
			"config", a.loader.Path(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.Error("server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return runErr
}

// applyReload pushes the parts of a reloaded config that can change at
// runtime into the engine. Everything else needs a restart.
func applyReload(engine *service.Engine, log *logger.Logger, next *config.Config) {
	if err := engine.SetWeights(signals.Weights(next.Engine.Weights)); err != nil {
		log.Warn("reloaded weights rejected", "error", err)
		return
	}
	log.Info("config reloaded")
}
