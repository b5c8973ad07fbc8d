package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/natours/tours-api/internal/core/ports"
	"github.com/natours/tours-api/internal/core/security"
	"github.com/natours/tours-api/internal/core/service"
	"github.com/natours/tours-api/internal/infrastructure/config"
	"github.com/natours/tours-api/internal/infrastructure/db/mongo"
	"github.com/natours/tours-api/internal/infrastructure/mail"
	"github.com/natours/tours-api/internal/infrastructure/workerpool"
	"github.com/natours/tours-api/internal/metrics"
	"github.com/natours/tours-api/pkg/logger"
)

// app holds the long-lived dependencies shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	mongo    *mongodriver.Client
	redis    *redis.Client
	pool     *workerpool.Pool
	accounts *service.AccountService
}

func loadConfig(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "natours",
		Env:     cfg.Env,
	})
	return cfg, log, nil
}

// newApp connects to MongoDB and assembles the account service.
func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}

	store := mongo.NewAccountStore(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, oops.In("mongo").Wrapf(err, "ensure indexes")
	}

	pool := workerpool.New(workerpool.Options{
		Workers:  cfg.Auth.HashWorkers,
		Depth:    metrics.WorkerPoolQueueDepth,
		Rejected: metrics.WorkerPoolRejectedTotal,
		Log:      logger.Component("workerpool"),
	})

	a := &app{cfg: cfg, log: log, mongo: client, pool: pool}
	accounts, err := a.buildAccounts(store)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.accounts = accounts
	return a, nil
}

func (a *app) buildAccounts(store ports.CredentialStore) (*service.AccountService, error) {
	hasher, err := security.NewBcryptHasher(a.cfg.Auth.BcryptCost, a.pool, a.cfg.Auth.HashBudget)
	if err != nil {
		return nil, err
	}
	tokens, err := security.NewJWTIssuer(a.cfg.Auth.JWTSecret, a.cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, err
	}
	notifier, err := a.notifier()
	if err != nil {
		return nil, err
	}

	return service.NewAccountService(
		store,
		hasher,
		tokens,
		security.NewResetTokenManager(a.cfg.Auth.ResetTokenTTL),
		notifier,
		logger.Component("accounts"),
	), nil
}

func (a *app) notifier() (ports.Notifier, error) {
	smtp := a.cfg.SMTP
	if smtp.Host == "" {
		a.log.Warn().Msg("SMTP_HOST not set, reset emails will only be logged")
		return mail.NewLogNotifier(logger.Component("mail")), nil
	}
	return mail.NewSMTPNotifier(mail.Config{
		Host:     smtp.Host,
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     smtp.From,
	})
}

func (a *app) close(ctx context.Context) {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("redis close")
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.log.Warn().Err(err).Msg("mongo disconnect")
		}
	}
}
