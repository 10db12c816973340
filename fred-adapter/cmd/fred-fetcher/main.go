package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/plumbing-feed/fred-adapter/internal/fred"
	"github.com/Checker-Finance/plumbing-feed/fred-adapter/internal/metrics"
	"github.com/Checker-Finance/plumbing-feed/fred-adapter/internal/publisher"
	"github.com/Checker-Finance/plumbing-feed/fred-adapter/pkg/config"
	"github.com/Checker-Finance/plumbing-feed/internal/rate"
	internalsecrets "github.com/Checker-Finance/plumbing-feed/internal/secrets"
	"github.com/Checker-Finance/plumbing-feed/internal/store"
	"github.com/Checker-Finance/plumbing-feed/pkg/logger"
	"github.com/Checker-Finance/plumbing-feed/pkg/secrets"
	"github.com/Checker-Finance/plumbing-feed/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cfg := config.Load()
	cfg.ServiceName = "fred-fetcher"

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)

	err := run(ctx, cfg)
	stop()
	if err != nil {
		logger.S().Errorw("fred-fetcher failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(ctx context.Context, cfg *config.Config) error {
	logg := logger.S()

	// --- Validate before touching the network ---
	if err := cfg.Validate(); err != nil {
		return err
	}
	jobs, err := fred.SelectJobs(cfg.Jobs)
	if err != nil {
		return err
	}

	// --- Credential (env first, then AWS Secrets Manager) ---
	var provider secrets.Provider
	if cfg.APIKey == "" {
		provider, err = secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			return err
		}
	}
	resolver := internalsecrets.NewCredentialResolver(logger.L(), provider)
	apiKey, err := resolver.Resolve(ctx, cfg.APIKey, cfg.APIKeySecretID)
	if errors.Is(err, internalsecrets.ErrNoCredential) {
		return &config.ConfigurationError{Key: "FRED_API_KEY", Reason: "not set"}
	} else if err != nil {
		return err
	}

	// --- FRED client ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateRPS,
		Burst:             cfg.RateBurst,
	})
	client := fred.NewClient(logger.L(), rateMgr, fred.ClientOptions{
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.RequestTimeout,
		RetryMax: cfg.RetryMax,
	})

	opts := fred.ServiceOptions{
		OutputDir: cfg.OutputDir,
		APIKey:    apiKey,
		Jobs:      jobs,
		Stdout:    os.Stdout,
	}

	// --- Optional mirror (Redis + Postgres) ---
	if cfg.RedisAddr != "" || cfg.DatabaseURL != "" {
		logg.Infow("connecting store", "redis", cfg.RedisAddr, "dsn", utils.MaskDSN(cfg.DatabaseURL))
		st, err := store.NewHybrid(ctx, store.Options{
			RedisAddr: cfg.RedisAddr,
			RedisDB:   cfg.RedisDB,
			RedisPass: cfg.RedisPass,
			PGURL:     cfg.DatabaseURL,
			PG: store.PGPoolConfig{
				MaxConns:        int32(cfg.PGMaxConns),
				MinConns:        int32(cfg.PGMinConns),
				MaxConnLifetime: cfg.PGMaxConnLifetime,
			},
		}, logger.L())
		if err != nil {
			logg.Warnw("store unavailable; continuing without mirror", "error", err)
		} else {
			defer st.Close()
			opts.Store = st
		}
	}

	// --- Optional snapshot events (NATS JetStream) ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName), nats.Timeout(5*time.Second))
		if err != nil {
			logg.Warnw("nats unavailable; snapshot events disabled", "error", err)
		} else if pub, err := publisher.New(nc, cfg.NATSStream, cfg.ServiceName, logger.L()); err != nil {
			logg.Warnw("failed to init publisher; snapshot events disabled", "error", err)
			nc.Close()
		} else {
			defer pub.Close()
			opts.Publisher = pub
		}
	}

	svc := fred.NewService(logger.L(), fred.NewAggregator(logger.L(), client), opts)
	logg.Infow("[fred-fetcher] running",
		"run_id", svc.RunID().String(),
		"jobs", cfg.Jobs,
		"output_dir", cfg.OutputDir,
		"env", cfg.Env)

	runErr := svc.Run(ctx)

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metrics.Push(pushCtx, cfg.PushgatewayURL, "fred_fetcher"); err != nil {
			logg.Warnw("metrics push failed", "error", err)
		}
		cancel()
	}

	return runErr
}
