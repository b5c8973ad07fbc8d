package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/natours/tours-api/internal/api"
	"github.com/natours/tours-api/internal/api/handler"
	"github.com/natours/tours-api/internal/infrastructure/db/mongo"
	"github.com/natours/tours-api/internal/infrastructure/db/redis"
	"github.com/natours/tours-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, log, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	a.redis = rdb

	proxies, err := cfg.ProxyRanges()
	if err != nil {
		return err
	}

	e := api.NewRouter(api.Dependencies{
		Accounts:       a.accounts,
		RateCounter:    redis.NewWindowCounter(rdb, cfg.RateLimit.Window),
		RateLimitMax:   cfg.RateLimit.Max,
		TrustedProxies: proxies,
		CookieTTL:      cfg.Auth.CookieLifetime(),
		Health: map[string]handler.Pinger{
			"mongodb": mongo.Pinger{Client: a.mongo},
			"redis":   redis.Pinger{Client: rdb},
		},
		Log: logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return oops.In("http").Wrapf(err, "serve")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return oops.In("http").Wrapf(err, "shutdown")
	}
	return nil
}
