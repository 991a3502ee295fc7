package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-notify-api/internal/domain"
	"github.com/go-notify-api/internal/infrastructure/sqs"
	"github.com/go-notify-api/internal/pkg/validate"
	"github.com/go-notify-api/internal/realtime"
	"go.uber.org/zap"
)

// Store is the slice of the notification service the dispatcher needs.
type Store interface {
	Create(ctx context.Context, req domain.CreateNotificationRequest, channels []domain.Channel) (*domain.Notification, error)
}

// Bus is the real-time send surface. Implementations never fail: sends to a
// disabled bus or an empty group are silent no-ops.
type Bus interface {
	EmitToTenantUser(tenantID, userID, event string, data interface{})
}

// Service turns "an event happened" into a persisted record, a real-time push
// and one delivery job per out-of-band channel.
type Service interface {
	Send(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error)

	NotifyDealAssigned(ctx context.Context, tenantID, userID, dealID, dealName, assignedBy string) (*domain.Notification, error)
	NotifyDealWon(ctx context.Context, tenantID, userID, dealID, dealName string, amount float64, currency string) (*domain.Notification, error)
	NotifyDealLost(ctx context.Context, tenantID, userID, dealID, dealName, reason string) (*domain.Notification, error)
	NotifyTaskOverdue(ctx context.Context, tenantID, userID, taskID, taskTitle string, dueDate time.Time) (*domain.Notification, error)
	NotifyAccountHealthDrop(ctx context.Context, tenantID, userID, accountID, accountName string, previousScore, newScore int) (*domain.Notification, error)
	NotifyUsageLimitWarning(ctx context.Context, tenantID, userID, feature string, usagePct int) (*domain.Notification, error)
	NotifyMention(ctx context.Context, tenantID, userID, mentionedBy, entityType, entityID, excerpt string) (*domain.Notification, error)
}

type service struct {
	store Store
	bus   Bus
	queue sqs.Enqueuer
	log   *zap.Logger
}

func NewService(store Store, bus Bus, queue sqs.Enqueuer, log *zap.Logger) Service {
	return &service{store: store, bus: bus, queue: queue, log: log}
}

// Send runs the fan-out sequence: persist, push, enqueue — strictly in that
// order, so a client can never see a real-time event for a record that is not
// yet queryable. A failed create aborts everything. Enqueue failures after
// the record exists are not rolled back: the row stays, the toast was shown,
// and the error is reported to the caller alongside the created record.
func (s *service) Send(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrBadRequest)
	}

	channels := resolveChannels(req.Type, req.Channels)

	n, err := s.store.Create(ctx, req, channels)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	// Always pushed, even when IN_APP is not in the resolved set: the live
	// toast is considered part of the product, independent of the user's
	// channel preferences.
	s.bus.EmitToTenantUser(n.TenantID, n.UserID, realtime.EventNotificationNew, realtime.NewNotificationEvent(n))

	var enqueueErrs []error
	for _, ch := range n.Channels {
		queueName, ok := domain.QueueName(ch)
		if !ok {
			continue // IN_APP was already delivered over the bus
		}
		err := s.queue.Enqueue(ctx, sqs.DeliveryJob{
			TenantID:       n.TenantID,
			NotificationID: n.NotificationID,
			Channel:        queueName,
		})
		if err != nil {
			s.log.Error("delivery job enqueue failed",
				zap.String("notification_id", n.NotificationID),
				zap.String("channel", queueName),
				zap.Error(err))
			enqueueErrs = append(enqueueErrs, fmt.Errorf("enqueue %s: %w", queueName, err))
		}
	}
	return n, errors.Join(enqueueErrs...)
}

// resolveChannels prefers the explicit set, then the policy-table default,
// then {IN_APP}.
func resolveChannels(t domain.NotificationType, explicit []domain.Channel) []domain.Channel {
	if len(explicit) > 0 {
		return explicit
	}
	return domain.DefaultChannels(t)
}

// ── convenience constructors ────────────────────────────────────────────────
// Pure input shaping over Send: each fixes the type, composes title/message
// and derives the action URL from the entity id.

func (s *service) NotifyDealAssigned(ctx context.Context, tenantID, userID, dealID, dealName, assignedBy string) (*domain.Notification, error) {
	return s.Send(ctx, domain.CreateNotificationRequest{
		TenantID:   tenantID,
		UserID:     userID,
		Type:       domain.TypeDealAssigned,
		Title:      "Deal assigned to you",
		Message:    fmt.Sprintf("%s assigned you the deal %q", assignedBy, dealName),
		ActionURL:  "/deals/" + dealID,
		EntityType: "deal",
		EntityID:   dealID,
	})
}

func (s *service) NotifyDealWon(ctx context.Context, tenantID, userID, dealID, dealName string, amount float64, currency string) (*domain.Notification, error) {
	return s.Send(ctx, domain.CreateNotificationRequest{
		TenantID:   tenantID,
		UserID:     userID,
		Type:       domain.TypeDealWon,
		Title:      "Deal won 🎉",
		Message:    fmt.Sprintf("%q closed won at %s %s", dealName, formatAmount(amount), currency),
		ActionURL:  "/deals/" + dealID,
		EntityType: "deal",
		EntityID:   dealID,
		Priority:   domain.PriorityHigh,
	})
}

func (s *service) NotifyDealLost(ctx context.Context, tenantID, userID, dealID, dealName, reason string) (*domain.Notification, error) {
	msg := fmt.Sprintf("%q was closed lost", dealName)
	if reason != "" {
		msg += ": " + reason
	}
	return s.Send(ctx, domain.CreateNotificationRequest{
		TenantID:   tenantID,
		UserID:     userID,
		Type:       domain.TypeDealLost,
		Title:      "Deal lost",
		Message:    msg,
		ActionURL:  "/deals/" + dealID,
		EntityType: "deal",
		EntityID:   dealID,
	})
}

func (s *service) NotifyTaskOverdue(ctx context.Context, tenantID, userID, taskID, taskTitle string, dueDate time.Time) (*domain.Notification, error) {
	return s.Send(ctx, domain.CreateNotificationRequest{
		TenantID:   tenantID,
		UserID:     userID,
		Type:       domain.TypeTaskOverdue,
		Title:      "Task overdue",
		Message:    fmt.Sprintf("%q was due on %s", taskTitle, dueDate.Format("Jan 2, 2006")),
		ActionURL:  "/tasks/" + taskID,
		EntityType: "task",
		EntityID:   taskID,
		Priority:   domain.PriorityHigh,
	})
}

// NotifyAccountHealthDrop escalates to URGENT when the new score falls below
// 50; otherwise HIGH.
func (s *service) NotifyAccountHealthDrop(ctx context.Context, tenantID, userID, accountID, accountName string, previousScore, newScore int) (*domain.Notification, error) {
	priority := domain.PriorityHigh
	if newScore < 50 {
		priority = domain.PriorityUrgent
	}
	return s.Send(ctx, domain.CreateNotificationRequest{
		TenantID:   tenantID,
		UserID:     userID,
		Type:       domain.TypeAccountHealthDrop,
		Title:      "Account health dropped",
		Message:    fmt.Sprintf("Health score for %q dropped from %d to %d", accountName, previousScore, newScore),
		ActionURL:  "/accounts/" + accountID,
		EntityType: "account",
		EntityID:   accountID,
		Priority:   priority,
	})
}

// NotifyUsageLimitWarning escalates to URGENT once the limit is reached.
func (s *service) NotifyUsageLimitWarning(ctx context.Context, tenantID, userID, feature string, usagePct int) (*domain.Notification, error) {
	priority := domain.PriorityHigh
	if usagePct >= 100 {
		priority = domain.PriorityUrgent
	}
	return s.Send(ctx, domain.CreateNotificationRequest{
		TenantID:  tenantID,
		UserID:    userID,
		Type:      domain.TypeUsageLimitWarning,
		Title:     "Usage limit warning",
		Message:   fmt.Sprintf("You have used %d%% of your %s quota", usagePct, feature),
		ActionURL: "/settings/billing",
		Priority:  priority,
	})
}

func (s *service) NotifyMention(ctx context.Context, tenantID, userID, mentionedBy, entityType, entityID, excerpt string) (*domain.Notification, error) {
	return s.Send(ctx, domain.CreateNotificationRequest{
		TenantID:   tenantID,
		UserID:     userID,
		Type:       domain.TypeMention,
		Title:      "You were mentioned",
		Message:    fmt.Sprintf("%s mentioned you: %s", mentionedBy, excerpt),
		ActionURL:  fmt.Sprintf("/%ss/%s", entityType, entityID),
		EntityType: entityType,
		EntityID:   entityID,
	})
}

// formatAmount renders a monetary amount with thousands separators, dropping
// the fraction when it is zero: 50000 -> "50,000", 1234.5 -> "1,234.50".
// The amount is rounded to cents before splitting so the fraction carries
// into the whole part (999.999 -> "1,000.00").
func formatAmount(amount float64) string {
	cents := int64(math.Round(amount * 100))
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole, frac := cents/100, cents%100

	digits := strconv.FormatInt(whole, 10)
	var out []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	res := string(out)
	if frac > 0 {
		res += fmt.Sprintf(".%02d", frac)
	}
	if neg {
		res = "-" + res
	}
	return res
}
