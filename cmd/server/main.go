// Package main runs the co-viewing relay and session API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnhub/studyroom/config"
	"github.com/learnhub/studyroom/internal/auth"
	"github.com/learnhub/studyroom/internal/messages"
	"github.com/learnhub/studyroom/internal/middleware"
	"github.com/learnhub/studyroom/internal/presence"
	"github.com/learnhub/studyroom/internal/realtime"
	"github.com/learnhub/studyroom/internal/sessions"
	"github.com/learnhub/studyroom/pkg/database"
	"github.com/learnhub/studyroom/pkg/redis"
	"github.com/learnhub/studyroom/pkg/response"
	"github.com/learnhub/studyroom/pkg/storage"
)

const presenceWriteTimeout = 5 * time.Second

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is only needed when several instances share rooms.
	var (
		pub realtime.RedisPublisher
		sub realtime.RedisSubscriber
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		bridge := realtime.NewRedisPubSub(rdb.Client, logger)
		pub, sub = bridge, bridge
	} else {
		logger.Info("redis not configured, relaying within this instance only")
	}

	var links storage.LinkResolver = storage.StaticLinks{BaseURL: cfg.Assets.BaseURL}
	if cfg.Assets.Bucket != "" {
		s3Links, err := storage.NewS3Links(ctx, storage.S3Config{
			Region:               cfg.Assets.Region,
			AccessKeyID:          cfg.Assets.AccessKeyID,
			SecretAccessKey:      cfg.Assets.SecretAccessKey,
			Bucket:               cfg.Assets.Bucket,
			PresignExpireMinutes: cfg.Assets.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 links disabled, using static asset host", zap.Error(err))
		} else {
			links = s3Links
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	sessionRepo := sessions.NewRepository(pool)
	sessionHandler := sessions.NewHandler(sessionRepo, links, logger)

	messageRepo := messages.NewRepository(pool)
	messageHandler := messages.NewHandler(messageRepo, sessionRepo, logger)

	presenceRepo := presence.NewRepository(pool)
	presenceHandler := presence.NewHandler(presenceRepo, sessionRepo)

	hub := realtime.NewHub(logger, pub, sub)
	hub.SetPresenceHandlers(
		func(sessionID, userID uuid.UUID) {
			ctx, cancel := context.WithTimeout(context.Background(), presenceWriteTimeout)
			defer cancel()
			if err := presenceRepo.LogJoin(ctx, sessionID, userID); err != nil {
				logger.Warn("presence join", zap.String("session_id", sessionID.String()), zap.Error(err))
			}
		},
		func(sessionID, userID uuid.UUID, _ time.Time) {
			ctx, cancel := context.WithTimeout(context.Background(), presenceWriteTimeout)
			defer cancel()
			if err := presenceRepo.LogLeave(ctx, sessionID, userID); err != nil {
				logger.Warn("presence leave", zap.String("session_id", sessionID.String()), zap.Error(err))
			}
		},
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health", "/ws"))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/sessions", middleware.RequireRole(auth.RoleAdmin, auth.RoleTeacher), sessionHandler.Create)
		api.GET("/sessions/:id", sessionHandler.GetByID)
		api.GET("/sessions/:id/sections", sessionHandler.ListSections)

		api.GET("/sessions/:id/messages", messageHandler.List)
		api.POST("/sessions/:id/messages", messageHandler.Create)

		api.GET("/sessions/:id/presence", presenceHandler.List)
	}

	// WebSocket (token in query or Authorization header)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtService, sessionRepo))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
