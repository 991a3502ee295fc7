package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-notify-api/internal/domain"
	"github.com/go-notify-api/internal/infrastructure/sqs"
	"go.uber.org/zap"
)

// NotificationSource loads the notification a job refers to.
type NotificationSource interface {
	Get(ctx context.Context, tenantID, notificationID string) (*domain.Notification, error)
}

// RecipientSource resolves the contact details for a delivery.
type RecipientSource interface {
	Get(ctx context.Context, userID, tenantID string) (*domain.Membership, error)
}

// TenantSource resolves tenant-level delivery configuration (Slack webhook).
type TenantSource interface {
	Get(ctx context.Context, tenantID string) (*domain.Tenant, error)
}

// EmailSender matches the smtp mailer.
type EmailSender interface {
	SendEmail(to, subject, body string) error
}

// SMSSender matches the sns sender.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// SlackSender matches the slack webhook sender.
type SlackSender interface {
	SendWebhook(ctx context.Context, webhookURL, text string) error
}

// Queue is the consuming side of the delivery queue.
type Queue interface {
	Receive(ctx context.Context, max int32) ([]sqs.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Worker drains the delivery queue and routes each job to its channel sender.
// A failed delivery leaves the message unacknowledged so the queue redrives
// it; the worker itself never retries.
type Worker struct {
	queue       Queue
	store       NotificationSource
	memberships RecipientSource
	tenants     TenantSource
	mailer      EmailSender
	sms         SMSSender
	slack       SlackSender
	log         *zap.Logger
}

type Deps struct {
	Queue       Queue
	Store       NotificationSource
	Memberships RecipientSource
	Tenants     TenantSource
	Mailer      EmailSender
	SMS         SMSSender
	Slack       SlackSender
	Log         *zap.Logger
}

func NewWorker(d Deps) *Worker {
	return &Worker{
		queue:       d.Queue,
		store:       d.Store,
		memberships: d.Memberships,
		tenants:     d.Tenants,
		mailer:      d.Mailer,
		sms:         d.SMS,
		slack:       d.Slack,
		log:         d.Log,
	}
}

// Run long-polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("delivery worker started")
	for {
		if err := ctx.Err(); err != nil {
			w.log.Info("delivery worker stopping")
			return err
		}
		msgs, err := w.queue.Receive(ctx, 10)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.log.Error("receive failed", zap.Error(err))
			time.Sleep(5 * time.Second)
			continue
		}
		for _, m := range msgs {
			if err := w.Process(ctx, m.Job); err != nil {
				// Left on the queue for redrive.
				w.log.Error("delivery failed",
					zap.String("notification_id", m.Job.NotificationID),
					zap.String("channel", m.Job.Channel),
					zap.Error(err))
				continue
			}
			if err := w.queue.Delete(ctx, m.ReceiptHandle); err != nil {
				w.log.Warn("ack failed", zap.Error(err))
			}
		}
	}
}

// Process delivers one job. A notification that was deleted between enqueue
// and delivery is acknowledged without error — there is nothing left to send.
func (w *Worker) Process(ctx context.Context, job sqs.DeliveryJob) error {
	n, err := w.store.Get(ctx, job.TenantID, job.NotificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.log.Info("notification gone, skipping delivery",
				zap.String("notification_id", job.NotificationID))
			return nil
		}
		return fmt.Errorf("load notification: %w", err)
	}

	switch job.Channel {
	case "email":
		return w.deliverEmail(ctx, n)
	case "sms":
		return w.deliverSMS(ctx, n)
	case "slack":
		return w.deliverSlack(ctx, n)
	case "push":
		// No browser-push provider is configured in this deployment.
		w.log.Info("push delivery not configured, skipping",
			zap.String("notification_id", n.NotificationID))
		return nil
	default:
		w.log.Warn("unknown delivery channel, skipping",
			zap.String("channel", job.Channel),
			zap.String("notification_id", n.NotificationID))
		return nil
	}
}

func (w *Worker) deliverEmail(ctx context.Context, n *domain.Notification) error {
	m, err := w.memberships.Get(ctx, n.UserID, n.TenantID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if m.Email == "" {
		w.log.Warn("recipient has no email, skipping",
			zap.String("user_id", n.UserID), zap.String("tenant_id", n.TenantID))
		return nil
	}
	return w.mailer.SendEmail(m.Email, n.Title, n.Message)
}

func (w *Worker) deliverSMS(ctx context.Context, n *domain.Notification) error {
	m, err := w.memberships.Get(ctx, n.UserID, n.TenantID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if m.Phone == "" {
		w.log.Warn("recipient has no phone, skipping",
			zap.String("user_id", n.UserID), zap.String("tenant_id", n.TenantID))
		return nil
	}
	return w.sms.SendSMS(ctx, m.Phone, fmt.Sprintf("%s: %s", n.Title, n.Message))
}

func (w *Worker) deliverSlack(ctx context.Context, n *domain.Notification) error {
	t, err := w.tenants.Get(ctx, n.TenantID)
	if err != nil {
		return fmt.Errorf("resolve tenant: %w", err)
	}
	if t.SlackWebhookURL == "" {
		w.log.Warn("tenant has no slack webhook, skipping",
			zap.String("tenant_id", n.TenantID))
		return nil
	}
	return w.slack.SendWebhook(ctx, t.SlackWebhookURL, fmt.Sprintf("*%s*\n%s", n.Title, n.Message))
}
