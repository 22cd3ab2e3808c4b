package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"edu-consult/internal/config"
	"edu-consult/internal/db"
	"edu-consult/internal/email"
	apihttp "edu-consult/internal/http"
	"edu-consult/internal/metrics"
	"edu-consult/internal/repository"
	"edu-consult/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	userRepo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	var (
		otpLimiter  service.OTPRateLimiter
		denylist    service.TokenDenylist
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory denylist and limiter", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisResetRequestLimiter(redisClient, cfg.OTPRateWindow, cfg.OTPRateMax)
			denylist = service.NewRedisTokenDenylist(redisClient)
		}
		cancel()
		defer redisClient.Close()
	}
	if otpLimiter == nil {
		otpLimiter = service.NewOTPRateLimiter(cfg.OTPRateWindow, cfg.OTPRateMax)
	}
	if denylist == nil {
		denylist = service.NewMemoryTokenDenylist()
	}

	var emailSender email.Sender = email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = email.NewBreakerSender(sender, cfg.SMTPBreakerMaxFailures, cfg.SMTPBreakerTimeout, logger)
		}
	}
	notifier := email.NewNotifier(emailSender, logger, 0)

	hasher, err := service.NewPasswordHasher(cfg.BcryptCost, cfg.HashWorkers)
	if err != nil {
		logger.Fatal("password hasher init", zap.Error(err))
	}
	jwtSvc := service.NewJWTServiceWithDenylist(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, denylist)

	m := metrics.New()
	authSvc := service.NewAuthService(logger, userRepo, jwtSvc, hasher, notifier, otpLimiter, service.AuthOptions{
		OTPLength:        cfg.OTPLength,
		OTPTTL:           cfg.OTPTTL,
		HideUnknownEmail: cfg.ForgotPasswordHideUnknown,
	})
	userSvc := service.NewUserService(logger, userRepo, hasher)

	router := apihttp.NewRouter(apihttp.RouterDeps{
		Logger: logger,
		Auth: apihttp.NewAuthHandler(logger, authSvc, jwtSvc, m, apihttp.CookieOptions{
			Enabled: cfg.CookieTransport,
			Secure:  cfg.CookieSecure,
			Domain:  cfg.CookieDomain,
		}),
		Users:          apihttp.NewUserHandler(logger, userSvc, m),
		JWT:            jwtSvc,
		Metrics:        m,
		RequestTimeout: cfg.RequestTimeout,
		AuthLimiter:    apihttp.NewIPRateLimiter(cfg.LoginRatePerMinute, 5, logger),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	notifier.Wait()
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore conecta el Credential Store elegido y devuelve su función de cierre.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.UserRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.Ping(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
		logger.Info("postgres store ready")
		return repository.NewPgUserRepository(pool), pool.Close, nil

	case config.StoreMongo:
		client, err := db.NewMongoClient(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn("mongo disconnect", zap.Error(err))
			}
		}
		repo := repository.NewMongoUserRepository(db.UsersCollectionOf(client, cfg))
		if err := repo.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		logger.Info("mongo store ready", zap.String("database", cfg.MongoDatabase))
		return repo, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
