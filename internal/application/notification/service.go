package notification

import (
	"context"
	"time"

	"github.com/go-notify-api/internal/domain"
	"github.com/go-notify-api/internal/pkg/id"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Repository is the persistence surface the service requires. Every method is
// tenant-scoped by parameter; there is no cross-tenant operation.
type Repository interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, tenantID, notificationID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, tenantID, userID string, f domain.NotificationFilter) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, tenantID, userID string) (int, error)
	MarkAsRead(ctx context.Context, tenantID, userID, notificationID string, readAt time.Time) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, tenantID, userID string, readAt time.Time) (int, error)
	Delete(ctx context.Context, tenantID, userID, notificationID string) error
	DeleteAllRead(ctx context.Context, tenantID, userID string) (int, error)
}

// Service is the notification store and query API.
type Service interface {
	Create(ctx context.Context, req domain.CreateNotificationRequest, channels []domain.Channel) (*domain.Notification, error)
	Get(ctx context.Context, tenantID, notificationID string) (*domain.Notification, error)
	List(ctx context.Context, tenantID, userID string, f domain.NotificationFilter, page domain.Page) ([]domain.Notification, domain.PageMeta, error)
	UnreadCount(ctx context.Context, tenantID, userID string) (int, error)
	MarkAsRead(ctx context.Context, tenantID, userID, notificationID string) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, tenantID, userID string) (int, error)
	Delete(ctx context.Context, tenantID, userID, notificationID string) error
	DeleteAllRead(ctx context.Context, tenantID, userID string) (int, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// Create writes a new record with the channel set snapshotted as passed.
// An empty channel set falls back to {IN_APP} so the invariant "channels is
// non-empty" holds for every persisted row.
func (s *service) Create(ctx context.Context, req domain.CreateNotificationRequest, channels []domain.Channel) (*domain.Notification, error) {
	if len(channels) == 0 {
		channels = []domain.Channel{domain.ChannelInApp}
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	n := &domain.Notification{
		NotificationID: id.New(),
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		Type:           req.Type,
		Title:          req.Title,
		Message:        req.Message,
		ActionURL:      req.ActionURL,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		Priority:       priority,
		Channels:       channels,
		Read:           false,
		ExpiresAt:      req.ExpiresAt,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *service) Get(ctx context.Context, tenantID, notificationID string) (*domain.Notification, error) {
	return s.repo.Get(ctx, tenantID, notificationID)
}

// List returns one page of active notifications, newest first.
// page is 1-based; limit is clamped to [1,100] with a default of 20.
func (s *service) List(ctx context.Context, tenantID, userID string, f domain.NotificationFilter, page domain.Page) ([]domain.Notification, domain.PageMeta, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	switch {
	case page.Limit < 1:
		page.Limit = defaultLimit
	case page.Limit > maxLimit:
		page.Limit = maxLimit
	}

	all, err := s.repo.ListByUser(ctx, tenantID, userID, f)
	if err != nil {
		return nil, domain.PageMeta{}, err
	}

	total := len(all)
	// ceil(total/limit); zero when the result set is empty.
	totalPages := (total + page.Limit - 1) / page.Limit

	start := (page.Page - 1) * page.Limit
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	return all[start:end], domain.PageMeta{
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func (s *service) UnreadCount(ctx context.Context, tenantID, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, tenantID, userID)
}

func (s *service) MarkAsRead(ctx context.Context, tenantID, userID, notificationID string) (*domain.Notification, error) {
	return s.repo.MarkAsRead(ctx, tenantID, userID, notificationID, s.now().UTC())
}

func (s *service) MarkAllAsRead(ctx context.Context, tenantID, userID string) (int, error) {
	return s.repo.MarkAllAsRead(ctx, tenantID, userID, s.now().UTC())
}

func (s *service) Delete(ctx context.Context, tenantID, userID, notificationID string) error {
	return s.repo.Delete(ctx, tenantID, userID, notificationID)
}

func (s *service) DeleteAllRead(ctx context.Context, tenantID, userID string) (int, error) {
	return s.repo.DeleteAllRead(ctx, tenantID, userID)
}
