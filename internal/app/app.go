package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "classconnect-auth/docs"
	"classconnect-auth/internal/config"
	"classconnect-auth/internal/handlers"
	"classconnect-auth/internal/limiters"
	"classconnect-auth/internal/logger"
	"classconnect-auth/internal/middleware"
	"classconnect-auth/internal/repositories"
	"classconnect-auth/internal/routes"
	"classconnect-auth/internal/services"
	"classconnect-auth/internal/utils"
)

func Run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === DB ===
	db, err := repositories.Open(cfg.Database.DSN, repositories.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	store := repositories.NewPostgresStore(db)
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}()
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		log.Info("schema migrated")
	}

	// === Redis (optional) ===
	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		rdb = client
	}
	limiter := limiters.NewIssueLimiter(rdb, limiters.IssueConfig{
		MaxPerWindow: cfg.Notifications.IssueLimit.MaxPerWindow,
		Window:       cfg.Notifications.IssueLimit.Window,
	})

	// === Services ===
	hasher := services.NewBcryptHasher(cfg.Security.BcryptCost)
	tokens := services.NewTokenService(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	guard := services.LoginGuard{
		MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
		LockDuration:      cfg.Security.LockDuration,
	}

	var profiles services.ProfileClient
	if cfg.Profile.BaseURL != "" {
		profiles = services.NewProfileClient(cfg.Profile.BaseURL, &http.Client{Timeout: cfg.Profile.Timeout})
	} else {
		log.Warn("profile service URL not set, registrations will not create profiles")
	}

	credentials := services.NewCredentialService(store, hasher, tokens, guard, profiles, log,
		services.WithIdentityProvider(services.NewGoogleIdentity(cfg.Google.UserInfoURL, &http.Client{Timeout: cfg.Google.Timeout})),
	)
	verification := services.NewVerificationService(store, buildNotifier(cfg, log), hasher, limiter,
		services.VerificationConfig{
			PinTTL:              cfg.Security.PinTTL,
			MaxRecoveryAttempts: cfg.Security.MaxRecoveryAttempts,
			SendTimeout:         cfg.Notifications.Timeout,
		}, log)

	reaper := services.NewPinReaper(store.Pins(), cfg.PinReaper.Interval, cfg.PinReaper.Retention, log)
	go reaper.Run(ctx)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(credentials, log)
	verifyHandler := handlers.NewVerifyHandler(verification, log)
	deps := map[string]handlers.Pinger{"database": store}
	if rdb != nil {
		deps["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	healthHandler := handlers.NewHealthHandler(deps)

	// === Gin ===
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(corsMiddleware())

	routes.SetupRoutes(router, tokens, authHandler, verifyHandler, healthHandler)

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildNotifier picks the delivery path: the notification microservice, or
// direct SMTP/SMS/Telegram providers keyed by channel.
func buildNotifier(cfg *config.Config, log *zap.Logger) services.Notifier {
	if cfg.Notifications.Mode == "remote" {
		return services.NewRemoteNotifier(cfg.Notifications.ServiceURL, &http.Client{Timeout: cfg.Notifications.Timeout}, log)
	}

	senders := map[services.Channel]services.Notifier{
		services.ChannelEmail: services.NewEmailService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
			log,
		),
	}

	mobizon := utils.NewClientWithOptions(cfg.Mobizon.APIKey, cfg.Mobizon.SenderID, cfg.Mobizon.DryRun)
	mobizon.HTTP = &http.Client{Timeout: cfg.Notifications.Timeout}
	senders[services.ChannelSMS] = services.NewSMSService(mobizon, log)

	if cfg.Telegram.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Warn("telegram bot unavailable, channel disabled", zap.Error(err))
		} else {
			senders[services.ChannelTelegram] = services.NewTelegramService(bot, log)
		}
	}
	return services.NewChannelRouter(senders)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
