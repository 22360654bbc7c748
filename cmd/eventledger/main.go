package main

import (
	"context"
	"os"
	"time"

	"eventledger/internal/amqp"
	"eventledger/internal/auth"
	"eventledger/internal/cache"
	"eventledger/internal/cli"
	apphttp "eventledger/internal/http"
	applog "eventledger/internal/log"
	"eventledger/internal/metrics"
	"eventledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, applog.ComponentApp)

	logger.Info("Starting eventledger",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"db_path", cfg.SQLiteDBPath)

	if cfg.SessionSecretGenerated {
		logger.Warn("SESSION_SECRET is not set; sessions will not survive a restart")
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	authn := auth.NewPasswordAuthenticator(repo)
	if cfg.SeedAdmin {
		created, err := authn.SeedAdmin(context.Background(), cfg.SeedAdminUsername, cfg.SeedAdminPassword)
		if err != nil {
			logger.Error("Failed to seed admin user",
				applog.FieldError, err.Error(),
				applog.FieldErrorType, applog.ErrorTypeDatabase)
			os.Exit(1)
		}
		if created {
			logger.Warn("Created default admin user; change its password",
				applog.FieldUsername, cfg.SeedAdminUsername)
		}
	}

	if n, err := repo.CountUsers(context.Background()); err != nil {
		logger.Warn("Failed to count users", applog.FieldError, err.Error())
	} else if n == 0 {
		logger.Warn("No users exist; create one with add-user or set SEED_ADMIN")
	}

	m := metrics.New()

	// Change notifications are optional.
	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable at startup; will retry on publish",
				applog.FieldError, err.Error(),
				applog.FieldErrorType, applog.ErrorTypeNetwork)
			client = amqp.NewLazyClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		}
		publisher = client
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ledger := services.NewLedgerService(repo, publisher, m, logger)
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Error("Failed to close ledger", applog.FieldError, err.Error())
		}
	}()

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	principals := cache.NewLRUCache[auth.Principal](cfg.PrincipalCacheSize, 5*time.Minute)
	caches.Register("principals", principals)
	caches.StartCleanup(10 * time.Minute)

	srv, err := apphttp.NewServer(cfg.Addr(), apphttp.Dependencies{
		Ledger:        ledger,
		Authenticator: authn,
		Sessions:      auth.NewSessionManager(repo, cfg.SessionSecret, cfg.SessionTTL, principals),
		Health:        repo,
		Metrics:       m,
		Caches:        caches,
		Logger:        logger,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		CookieSecure:       cfg.CookieSecure,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := cli.Serve(ctx, logger, srv, 30*time.Second); err != nil {
		logger.Error("Server error", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
