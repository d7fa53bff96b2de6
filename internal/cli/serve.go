package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/discover/internal/auth"
	"github.com/lazypower/discover/internal/engine"
	"github.com/lazypower/discover/internal/logger"
	"github.com/lazypower/discover/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	authn, err := auth.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("auth: %w (set auth.jwt_secret or DISCOVER_JWT_SECRET)", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []engine.Option{engine.WithFeedLimits(cfg.Feed.DefaultLimit, cfg.Feed.MaxLimit)}
	if cfg.Decay.Seed != 0 {
		opts = append(opts, engine.WithRandom(engine.NewSeededRandom(cfg.Decay.Seed)))
	}
	eng := engine.New(db, log, opts...)
	defer eng.Stop()

	sweep, _ := cfg.SweepInterval()
	eng.StartDecaySweep(sweep)

	srv := server.New(eng, authn, log, VersionString(), server.WithRecalculateOnFeed(cfg.Decay.RecalculateOnFeed))
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("discover serving", "addr", addr, "db", db.Path, "sweep_interval", sweep.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
