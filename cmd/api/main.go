package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/go-contacts-api/docs" // Swagger docs
	"github.com/redmonkez12/go-contacts-api/internal/auth"
	"github.com/redmonkez12/go-contacts-api/internal/config"
	"github.com/redmonkez12/go-contacts-api/internal/contact"
	"github.com/redmonkez12/go-contacts-api/internal/database"
	"github.com/redmonkez12/go-contacts-api/internal/email"
	httpServer "github.com/redmonkez12/go-contacts-api/internal/http"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
	"github.com/redmonkez12/go-contacts-api/internal/password"
	"github.com/redmonkez12/go-contacts-api/internal/ratelimit"
	"github.com/redmonkez12/go-contacts-api/internal/storage"
	"github.com/redmonkez12/go-contacts-api/internal/token"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

// @title           Contacts API
// @version         1.0
// @description     Contacts management REST API with email-confirmed accounts, rotating refresh tokens and rate limiting.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_algorithm", cfg.Auth.Algorithm,
		"rate_limit_backend", cfg.RateLimit.Backend,
	)

	ctx := context.Background()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	limiterStore, closeStore, err := initRateLimitStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	defer closeStore()
	rateLimiter := ratelimit.NewLimiter(limiterStore)

	tokens, err := token.NewService(token.Config{
		Secret:          []byte(cfg.Auth.Secret),
		Algorithm:       cfg.Auth.Algorithm,
		AccessTTL:       cfg.Auth.AccessTokenTTL,
		RefreshTTL:      cfg.Auth.RefreshTokenTTL,
		ConfirmationTTL: cfg.Auth.ConfirmationTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Confirmation mail is handed to a bounded worker pool; requests never wait on SMTP
	mailer := email.NewDispatcher(email.NewService(cfg.Email), logger, cfg.Email.QueueSize, cfg.Email.Workers)

	var avatars user.AvatarUploader
	if cfg.Storage.Enabled() {
		store, err := storage.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize avatar storage: %w", err)
		}
		avatars = store
	} else {
		logger.Warn("S3 storage not configured, avatar uploads disabled")
	}

	userRepo := user.NewRepository(db)
	authService := auth.NewService(userRepo, password.NewHasher(), tokens, mailer, logger)

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth:           auth.NewHandler(authService, rateLimiter, cfg.Server.BaseURL),
		AuthMiddleware: auth.NewMiddleware(authService),
		Users:          user.NewHandler(userRepo, avatars),
		Contacts:       contact.NewHandler(contact.NewRepository(db)),
		Limiter:        rateLimiter,
		Health: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		// Drain queued confirmation emails within what is left of the timeout
		if err := mailer.Close(ctx); err != nil {
			logger.Warn("email queue not drained", "error", err.Error())
		}
	}

	return nil
}

// initRateLimitStore picks the counter backend. Redis is verified with a ping.
func initRateLimitStore(ctx context.Context, cfg *config.Config) (ratelimit.Store, func(), error) {
	if cfg.RateLimit.Backend == "memory" {
		return ratelimit.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return ratelimit.NewRedisStore(client), func() { client.Close() }, nil
}
