package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-notify-api/internal/config"
	"github.com/go-notify-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-notify-api/internal/infrastructure/jwt"
	"github.com/go-notify-api/internal/infrastructure/sqs"
	"github.com/go-notify-api/internal/logger"
	"github.com/go-notify-api/internal/realtime"
	transporthttp "github.com/go-notify-api/internal/transport/http"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()

	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, log)

	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)
	tenantRepo := dynamo.NewTenantRepo(dynamoClient, cfg.DynamoTables.Tenants)
	membershipRepo := dynamo.NewMembershipRepo(dynamoClient, cfg.DynamoTables.Memberships)

	verifier, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatal("failed to load JWT public key", zap.Error(err))
	}

	queue, err := sqs.NewClient(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create SQS client", zap.Error(err))
	}

	// A nil hub disables real-time entirely: producers keep calling it and
	// every call is a no-op, while the WebSocket endpoint answers 503.
	var hub *realtime.Hub
	if cfg.RealtimeEnabled {
		hub = realtime.NewHub(cfg.RealtimeSendBuffer, cfg.RealtimeMaxMsgBytes, log)
	} else {
		log.Warn("real-time bus disabled by configuration")
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		NotificationRepo: notificationRepo,
		TenantRepo:       tenantRepo,
		MembershipRepo:   membershipRepo,
		Verifier:         verifier,
		Queue:            queue,
		Hub:              hub,
		Log:              log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
