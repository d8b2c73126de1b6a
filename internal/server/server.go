package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"pulse-chat/config"
	"pulse-chat/internal/handler"
	"pulse-chat/internal/middleware"
	"pulse-chat/internal/redis"
	"pulse-chat/internal/transport/httpdto"
	"pulse-chat/internal/websocket"
	"pulse-chat/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	checks     map[string]HealthCheck
	onShutdown []func(ctx context.Context)
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Messages      *handler.MessageHandler
	Calls         *handler.CallHandler
	Conversations *handler.ConversationHandler
	Presence      *handler.PresenceHandler
	WebSocket     *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
		checks: make(map[string]HealthCheck),
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// AddHealthCheck registers a dependency reported by GET /health.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// OnShutdown registers fn to run after the HTTP listener stops.
func (s *Server) OnShutdown(fn func(ctx context.Context)) {
	s.onShutdown = append(s.onShutdown, fn)
}

func (s *Server) SetupRoutes(handlers *Handlers, auth middleware.TokenParser, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(cors.New(corsConfig(s.config.CORSOrigins)))
	s.engine.Use(middleware.Metrics())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	v1.GET("/ws", handlers.WebSocket.Connect)

	api := v1.Group("", middleware.AuthMiddleware(auth))
	{
		api.POST("/messages", middleware.MessageRateLimitMiddleware(limiter), handlers.Messages.Send)
		api.GET("/messages/:id", handlers.Messages.GetByID)
		api.POST("/messages/:id/delivered", handlers.Messages.MarkDelivered)
		api.POST("/messages/:id/read", handlers.Messages.MarkRead)

		api.POST("/calls", middleware.CallRateLimitMiddleware(limiter), handlers.Calls.Initiate)
		api.GET("/calls", handlers.Calls.History)
		api.GET("/calls/:id", handlers.Calls.GetByID)
		api.POST("/calls/:id/ringing", handlers.Calls.Ringing)
		api.POST("/calls/:id/accept", handlers.Calls.Accept)
		api.POST("/calls/:id/end", handlers.Calls.End)

		api.POST("/conversations", handlers.Conversations.Create)
		api.GET("/conversations/:id", handlers.Conversations.GetByID)
		api.POST("/conversations/:id/members", handlers.Conversations.AddMember)

		api.GET("/users/:id/presence", handlers.Presence.Get)
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := gin.H{}
	healthy := true
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewFailureResponse(status, httpdto.CodeUnhealthy))
		return
	}
	status["status"] = "healthy"
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders: []string{"Content-Length", "X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil && s.logger != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
	}

	// hijacked websocket connections are not covered by Shutdown
	for _, fn := range s.onShutdown {
		fn(ctx)
	}

	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
