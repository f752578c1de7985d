package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"forumhub-backend/internal/database"
	chatHandler "forumhub-backend/internal/handler/http/chat"
	presenceHandler "forumhub-backend/internal/handler/http/presence"
	wsHandler "forumhub-backend/internal/handler/ws"
	"forumhub-backend/internal/middleware"
	"forumhub-backend/internal/presence"
	"forumhub-backend/internal/repository/cassandra"
	"forumhub-backend/internal/repository/cockroach"
	redisRepo "forumhub-backend/internal/repository/redis"
	callService "forumhub-backend/internal/service/call"
	chatService "forumhub-backend/internal/service/chat"
	"forumhub-backend/pkg/constants"
	"forumhub-backend/pkg/env"
	"forumhub-backend/pkg/jwt"
	"forumhub-backend/pkg/logger"
	"forumhub-backend/pkg/metrics"
	"forumhub-backend/pkg/rtctoken"
)

func main() {
	logger.InitDefault()
	defer logger.Sync()

	// 1. Setup JWT manager for handshake verification
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		logger.Fatal("JWT_SECRET must be at least 32 characters")
	}
	jwtManager := jwt.NewManager(jwtSecret)

	// 2. Setup media token issuer
	tokenIssuer, err := rtctoken.NewHMACIssuer(
		env.GetString("RTC_APP_ID", ""),
		env.GetStringFromFile("RTC_APP_CERTIFICATE", ""),
	)
	if err != nil {
		logger.Fatal("Failed to configure media token issuer", zap.Error(err))
	}

	// 3. Connect to Cassandra
	cassandraDB, err := database.NewCassandraDB(&database.CassandraConfig{
		Hosts:    []string{env.GetString("CASSANDRA_HOST", "localhost")},
		Keyspace: env.GetString("CASSANDRA_KEYSPACE", "forumhub_ks"),
		Username: env.GetStringFromFile("CASSANDRA_USER", ""),
		Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
		Timeout:  10 * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Cassandra", zap.Error(err))
	}
	defer cassandraDB.Close()
	logger.Info("Connected to Cassandra")

	// 4. Connect to Redis with degraded mode support
	redisDB, err := database.NewRedisDB(&database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()
	logger.Info("Connected to Redis")

	go redisDB.StartHealthCheck(context.Background(), 10*time.Second)

	// 5. Connect to CockroachDB
	cockroachDB, err := database.NewCockroachDB(context.Background(), &database.CockroachConfig{
		Host:     env.GetString("COCKROACH_HOST", "localhost"),
		Port:     env.GetInt("COCKROACH_PORT", 26257),
		User:     env.GetString("COCKROACH_USER", "root"),
		Password: env.GetStringFromFile("COCKROACH_PASSWORD", ""),
		Database: env.GetString("COCKROACH_DATABASE", "forumhub_db"),
		SSLMode:  env.GetString("COCKROACH_SSLMODE", "disable"),
	})
	if err != nil {
		logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
	}
	defer cockroachDB.Close()
	logger.Info("Connected to CockroachDB")

	// 6. Initialize repositories
	messageRepo := cassandra.NewMessageRepository(cassandraDB.Session)
	userRepo := cockroach.NewUserRepository(cockroachDB.Pool)
	chatIndexRepo := cockroach.NewChatIndexRepository(cockroachDB.Pool)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB)

	// 7. Initialize metrics
	appMetrics := metrics.NewMetrics("realtime-service")

	// 8. Wire the hub and services. The hub is the Emitter the services
	// push through, so it is built first and bound afterwards.
	directory := presence.NewDirectory()
	hub := wsHandler.NewHub(directory, presenceRepo, jwtManager, appMetrics)

	chatSvc := chatService.NewService(messageRepo, userRepo, chatIndexRepo, hub, appMetrics)
	callSvc := callService.NewService(hub, hub, tokenIssuer, appMetrics,
		callService.WithRingingTimeout(env.GetDuration("RINGING_TIMEOUT", constants.RingingTimeout)))
	defer callSvc.Close()

	hub.Bind(chatSvc, callSvc)

	// 9. Initialize HTTP handlers
	chatHdlr := chatHandler.NewHandler(chatSvc)
	presenceHdlr := presenceHandler.NewHandler(presenceRepo)

	// 10. Setup Gin router
	if env.GetString("ENV", "development") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.PrometheusMiddleware(appMetrics))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"service":        "realtime-service",
			"redis_degraded": redisDB.IsDegraded(),
			"time":           time.Now().UTC(),
		})
	})

	router.GET("/metrics", middleware.MetricsHandler())

	// WebSocket endpoint authenticates inside the handshake itself, since
	// browser WebSocket clients cannot set an Authorization header.
	router.GET("/ws", hub.ServeWS)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(jwtManager))
	{
		v1.GET("/chats", chatHdlr.ListChats)
		v1.GET("/chats/:user_id/messages", chatHdlr.GetMessages)
		v1.DELETE("/chats/:user_id/messages/:message_id", chatHdlr.DeleteMessage)
		v1.GET("/messages/unread", chatHdlr.GetUnreadMessages)
		v1.GET("/presence/online", presenceHdlr.ListOnline)
	}

	// 11. Start server
	port := env.GetString("PORT", "8083")
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		logger.Info("Realtime service starting", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 12. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
