package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/go-notify-api/internal/config"
	"github.com/go-notify-api/internal/delivery"
	"github.com/go-notify-api/internal/infrastructure/dynamo"
	"github.com/go-notify-api/internal/infrastructure/slack"
	"github.com/go-notify-api/internal/infrastructure/smtp"
	snsinfra "github.com/go-notify-api/internal/infrastructure/sns"
	"github.com/go-notify-api/internal/infrastructure/sqs"
	"github.com/go-notify-api/internal/logger"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dynamoClient := dynamo.NewClient(cfg)

	queue, err := sqs.NewClient(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to create SQS client", zap.Error(err))
	}

	smsSender, err := snsinfra.NewSender(cfg)
	if err != nil {
		log.Fatal("failed to create SNS sender", zap.Error(err))
	}

	worker := delivery.NewWorker(delivery.Deps{
		Queue:       queue,
		Store:       dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		Memberships: dynamo.NewMembershipRepo(dynamoClient, cfg.DynamoTables.Memberships),
		Tenants:     dynamo.NewTenantRepo(dynamoClient, cfg.DynamoTables.Tenants),
		Mailer:      smtp.NewMailer(cfg),
		SMS:         smsSender,
		Slack:       slack.NewSender(),
		Log:         log,
	})

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("worker exited", zap.Error(err))
	}
	log.Info("worker stopped")
}
