package main

import (
	"context"
	"log"
	"time"

	"pulse-chat/config"
	"pulse-chat/internal/events"
	"pulse-chat/internal/handler"
	"pulse-chat/internal/media"
	"pulse-chat/internal/redis"
	"pulse-chat/internal/repository"
	"pulse-chat/internal/server"
	"pulse-chat/internal/services"
	"pulse-chat/internal/websocket"
	"pulse-chat/pkg/database"
	"pulse-chat/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	presenceTTL  = 60 * time.Second
	profileTTL   = 10 * time.Minute
	limitsWindow = 60 * time.Second
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		l.Logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		l.Logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())

	var redisClient *goredis.Client
	client := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redis.Ping(ctx, client); err != nil {
		if cfg.BroadcastMode == config.BroadcastRedis {
			l.Logger.Fatal("redis is required in redis broadcast mode", zap.Error(err))
		}
		l.Logger.Warn("redis unavailable, running single instance without presence or rate limits", zap.Error(err))
		_ = client.Close()
	} else {
		redisClient = client
	}

	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	callRepo := repository.NewCallRepository(db)
	if redisClient != nil {
		userRepo = redis.NewCachedUserRepository(userRepo, redisClient, profileTTL, l)
	}

	var broadcaster events.Broadcaster = events.NewLocalBroadcaster()
	if cfg.BroadcastMode == config.BroadcastRedis {
		broadcaster = redis.NewPubSub(redisClient)
	}

	wsLogger := websocket.NewLogger(l)
	var (
		hooks    websocket.RegistryHooks
		presence handler.PresenceReader
		limiter  *redis.RateLimiter
	)
	if redisClient != nil {
		store := redis.NewPresenceStore(redisClient, cfg.InstanceID, presenceTTL)
		hooks = websocket.PresenceHooks(store, wsLogger)
		presence = store
		limiter = redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
			MessageLimit:  cfg.RateLimitMessages,
			MessageWindow: limitsWindow,
			CallLimit:     cfg.RateLimitCalls,
			CallWindow:    limitsWindow,
		})
	}

	registry := websocket.NewRegistry(hooks)
	dispatcher := websocket.NewDispatcher(registry, broadcaster, cfg.InstanceID, l)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			l.Logger.Error("dispatcher stopped", zap.Error(err))
		}
	}()

	tokens := media.NewJWTIssuer(cfg.MediaAPIKey, cfg.MediaAPISecret, cfg.MediaTokenTTL)

	authService := services.NewAuthService(cfg.JWTSecret)
	recipients := services.NewRecipientResolver(conversationRepo)
	deliveryService := services.NewDeliveryService(messageRepo, recipients, dispatcher, l)
	messageService := services.NewMessageService(messageRepo, conversationRepo, recipients, deliveryService, dispatcher, l)
	conversationService := services.NewConversationService(conversationRepo, dispatcher, l)
	callService := services.NewCallService(callRepo, userRepo, conversationRepo, tokens, dispatcher, l)

	ringWorker := services.NewRingTimeoutWorker(callRepo, callService, cfg.CallRingTimeout, l)
	ringWorker.Start()

	srv := server.New(cfg, l)
	srv.AddHealthCheck("database", database.HealthCheck)
	if redisClient != nil {
		srv.AddHealthCheck("redis", func(ctx context.Context) error {
			return redis.Ping(ctx, redisClient)
		})
	}

	srv.SetupRoutes(&server.Handlers{
		Messages:      handler.NewMessageHandler(messageService),
		Calls:         handler.NewCallHandler(callService),
		Conversations: handler.NewConversationHandler(conversationService),
		Presence:      handler.NewPresenceHandler(presence, registry, l),
		WebSocket: websocket.NewHandler(
			authService,
			registry,
			websocket.NewFrameRouter(messageService, callService),
			wsLogger,
			cfg.CORSOrigins,
		),
	}, authService, limiter)

	srv.OnShutdown(func(context.Context) {
		cancel()
		ringWorker.Stop()
		registry.CloseAll()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if err := database.Close(); err != nil {
			l.Logger.Warn("failed to close database", zap.Error(err))
		}
		l.Sync()
	})

	if err := srv.Start(); err != nil {
		l.Logger.Fatal("server exited", zap.Error(err))
	}
}
