package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fazil2161/pingme/internal/application/notification"
	"github.com/fazil2161/pingme/internal/application/session"
	"github.com/fazil2161/pingme/internal/config"
	"github.com/fazil2161/pingme/internal/infrastructure/dynamo"
	jwtinfra "github.com/fazil2161/pingme/internal/infrastructure/jwt"
	s3infra "github.com/fazil2161/pingme/internal/infrastructure/s3"
	"github.com/fazil2161/pingme/internal/infrastructure/smtp"
	"github.com/fazil2161/pingme/internal/infrastructure/sns"
	"github.com/fazil2161/pingme/internal/realtime"
	transporthttp "github.com/fazil2161/pingme/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider: %v", err)
	}

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	sessionRepo := dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)
	postRepo := dynamo.NewPostRepo(dynamoClient, cfg.DynamoTables.Posts)
	commentRepo := dynamo.NewCommentRepo(dynamoClient, cfg.DynamoTables.Comments)
	followRepo := dynamo.NewFollowRepo(dynamoClient, cfg.DynamoTables.Follows)

	sessionSvc := session.NewService(sessionRepo, userRepo, jwtProvider, cfg.RefreshTokenDur)

	// Realtime layer: one registry shared by the hub and the sweeper.
	registry := realtime.NewRegistry()
	hub := realtime.NewHub(registry, sessionSvc, cfg.AllowedOrigins)

	// Offline fallback channels. Each is optional; a missing ARN or bucket
	// simply disables that channel.
	var offlinePush notification.OfflinePusher
	if cfg.SNSTopicARN != "" {
		if sender, err := sns.NewSender(cfg); err == nil {
			offlinePush = sender
		} else {
			slog.Warn("SNS sender not available", "err", err)
		}
	}
	var archiver notification.Archiver
	if cfg.ArchiveBucket != "" {
		archiver = s3infra.NewArchiveStore(s3infra.NewClient(cfg), cfg.ArchiveBucket)
	}

	notificationSvc := notification.NewService(notification.ServiceDeps{
		Notifications: notificationRepo,
		Users:         userRepo,
		Posts:         postRepo,
		Pusher:        hub,
		OfflinePush:   offlinePush,
		Mailer:        smtp.NewMailer(cfg),
		Archiver:      archiver,
		DedupWindow:   cfg.DedupWindow,
		Retention:     cfg.NotificationRetention,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Liveness sweeper: evicts connections silent past the stale threshold.
	sweeper := realtime.NewSweeper(registry, hub, cfg.SweepInterval, cfg.StaleThreshold)
	go sweeper.Run(rootCtx)

	// Daily retention purge for read notifications.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				purged, err := notificationSvc.PurgeOld(rootCtx)
				if err != nil {
					slog.Error("notification retention purge failed", "err", err)
					continue
				}
				if purged > 0 {
					slog.Info("purged old notifications", "count", purged)
				}
			}
		}
	}()

	deps := &transporthttp.Deps{
		UserRepo:        userRepo,
		SessionRepo:     sessionRepo,
		PostRepo:        postRepo,
		CommentRepo:     commentRepo,
		FollowRepo:      followRepo,
		SessionSvc:      sessionSvc,
		NotificationSvc: notificationSvc,
		Hub:             hub,
		Registry:        registry,
		JWTProvider:     jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
