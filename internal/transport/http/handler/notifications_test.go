package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-notify-api/internal/domain"
	"github.com/go-notify-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockNotifSvc struct{ mock.Mock }

func (m *mockNotifSvc) Create(ctx context.Context, req domain.CreateNotificationRequest, channels []domain.Channel) (*domain.Notification, error) {
	args := m.Called(ctx, req, channels)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotifSvc) Get(ctx context.Context, tenantID, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, tenantID, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotifSvc) List(ctx context.Context, tenantID, userID string, f domain.NotificationFilter, page domain.Page) ([]domain.Notification, domain.PageMeta, error) {
	args := m.Called(ctx, tenantID, userID, f, page)
	items, _ := args.Get(0).([]domain.Notification)
	return items, args.Get(1).(domain.PageMeta), args.Error(2)
}
func (m *mockNotifSvc) UnreadCount(ctx context.Context, tenantID, userID string) (int, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Int(0), args.Error(1)
}
func (m *mockNotifSvc) MarkAsRead(ctx context.Context, tenantID, userID, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, tenantID, userID, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotifSvc) MarkAllAsRead(ctx context.Context, tenantID, userID string) (int, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Int(0), args.Error(1)
}
func (m *mockNotifSvc) Delete(ctx context.Context, tenantID, userID, notificationID string) error {
	return m.Called(ctx, tenantID, userID, notificationID).Error(0)
}
func (m *mockNotifSvc) DeleteAllRead(ctx context.Context, tenantID, userID string) (int, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Int(0), args.Error(1)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Send(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	args := m.Called(ctx, req)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockDispatcher) NotifyDealAssigned(ctx context.Context, tenantID, userID, dealID, dealName, assignedBy string) (*domain.Notification, error) {
	return nil, nil
}
func (m *mockDispatcher) NotifyDealWon(ctx context.Context, tenantID, userID, dealID, dealName string, amount float64, currency string) (*domain.Notification, error) {
	return nil, nil
}
func (m *mockDispatcher) NotifyDealLost(ctx context.Context, tenantID, userID, dealID, dealName, reason string) (*domain.Notification, error) {
	return nil, nil
}
func (m *mockDispatcher) NotifyTaskOverdue(ctx context.Context, tenantID, userID, taskID, taskTitle string, dueDate time.Time) (*domain.Notification, error) {
	return nil, nil
}
func (m *mockDispatcher) NotifyAccountHealthDrop(ctx context.Context, tenantID, userID, accountID, accountName string, previousScore, newScore int) (*domain.Notification, error) {
	return nil, nil
}
func (m *mockDispatcher) NotifyUsageLimitWarning(ctx context.Context, tenantID, userID, feature string, usagePct int) (*domain.Notification, error) {
	return nil, nil
}
func (m *mockDispatcher) NotifyMention(ctx context.Context, tenantID, userID, mentionedBy, entityType, entityID, excerpt string) (*domain.Notification, error) {
	return nil, nil
}

// --- helpers ---

// newTestRouter mounts the handler behind a stub that injects a fixed principal,
// the way the auth middleware does in production.
func newTestRouter(h *NotificationHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := &domain.Principal{UserID: "u1", TenantID: "t1", Role: domain.RoleService}
			next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), middleware.PrincipalKey, p)))
		})
	})
	r.Get("/notifications", h.List)
	r.Get("/notifications/unread-count", h.UnreadCount)
	r.Get("/notifications/{id}", h.Get)
	r.Put("/notifications/{id}/read", h.MarkAsRead)
	r.Delete("/notifications/{id}", h.Delete)
	r.Post("/notifications", h.Create)
	return r
}

// --- tests ---

func TestList_EmptyStoreReturnsEmptyArray(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("List", mock.Anything, "t1", "u1", mock.Anything, mock.Anything).
		Return(nil, domain.PageMeta{Page: 1, Limit: 20, TotalPages: 1}, nil)
	router := newTestRouter(NewNotificationHandler(svc, &mockDispatcher{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/notifications", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"data":[]`)
}

func TestList_ParsesQueryParameters(t *testing.T) {
	svc := &mockNotifSvc{}
	var gotFilter domain.NotificationFilter
	var gotPage domain.Page
	svc.On("List", mock.Anything, "t1", "u1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotFilter = args.Get(3).(domain.NotificationFilter)
			gotPage = args.Get(4).(domain.Page)
		}).
		Return([]domain.Notification{}, domain.PageMeta{}, nil)
	router := newTestRouter(NewNotificationHandler(svc, &mockDispatcher{}))

	target := "/notifications?read=false&type=DEAL_WON,MENTION&priority=HIGH&page=3&limit=50" +
		"&date_from=2026-08-01T00:00:00Z&date_to=2026-08-31T00:00:00Z"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotFilter.Read)
	assert.False(t, *gotFilter.Read)
	assert.Equal(t, []domain.NotificationType{domain.TypeDealWon, domain.TypeMention}, gotFilter.Types)
	assert.Equal(t, domain.PriorityHigh, gotFilter.Priority)
	require.NotNil(t, gotFilter.DateFrom)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), gotFilter.DateFrom.UTC())
	assert.Equal(t, domain.Page{Page: 3, Limit: 50}, gotPage)
}

func TestGet_ScopedToPrincipalTenant(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("Get", mock.Anything, "t1", "n1").
		Return(&domain.Notification{NotificationID: "n1", TenantID: "t1"}, nil)
	router := newTestRouter(NewNotificationHandler(svc, &mockDispatcher{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/notifications/n1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestGet_NotFound(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("Get", mock.Anything, "t1", "nope").Return(nil, domain.ErrNotFound)
	router := newTestRouter(NewNotificationHandler(svc, &mockDispatcher{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/notifications/nope", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUnreadCount(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("UnreadCount", mock.Anything, "t1", "u1").Return(7, nil)
	router := newTestRouter(NewNotificationHandler(svc, &mockDispatcher{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var env UnreadCountEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, 7, env.Count)
}

func TestMarkAsRead_PassesPrincipalUser(t *testing.T) {
	svc := &mockNotifSvc{}
	svc.On("MarkAsRead", mock.Anything, "t1", "u1", "n1").
		Return(&domain.Notification{NotificationID: "n1", Read: true}, nil)
	router := newTestRouter(NewNotificationHandler(svc, &mockDispatcher{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/notifications/n1/read", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestCreate_OverridesBodyTenantWithPrincipal(t *testing.T) {
	disp := &mockDispatcher{}
	var gotReq domain.CreateNotificationRequest
	disp.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { gotReq = args.Get(1).(domain.CreateNotificationRequest) }).
		Return(&domain.Notification{NotificationID: "n1"}, nil)
	router := newTestRouter(NewNotificationHandler(&mockNotifSvc{}, disp))

	body, _ := json.Marshal(domain.CreateNotificationRequest{
		TenantID: "someone-elses-tenant",
		UserID:   "u2",
		Type:     domain.TypeMention,
		Title:    "hi",
		Message:  "m",
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "t1", gotReq.TenantID, "body tenant must be replaced with the caller's")
	assert.Equal(t, "u2", gotReq.UserID)
}

func TestCreate_EnqueueFailureStillReturnsCreated(t *testing.T) {
	disp := &mockDispatcher{}
	disp.On("Send", mock.Anything, mock.Anything).
		Return(&domain.Notification{NotificationID: "n1"}, assert.AnError)
	router := newTestRouter(NewNotificationHandler(&mockNotifSvc{}, disp))

	body, _ := json.Marshal(domain.CreateNotificationRequest{
		UserID: "u2", Type: domain.TypeMention, Title: "hi", Message: "m",
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"n1"`)
}

func TestCreate_InvalidBody(t *testing.T) {
	router := newTestRouter(NewNotificationHandler(&mockNotifSvc{}, &mockDispatcher{}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewReader([]byte("{not json"))))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreate_ValidationFailure(t *testing.T) {
	disp := &mockDispatcher{}
	disp.On("Send", mock.Anything, mock.Anything).Return(nil, domain.ErrBadRequest)
	router := newTestRouter(NewNotificationHandler(&mockNotifSvc{}, disp))

	body, _ := json.Marshal(domain.CreateNotificationRequest{UserID: "u2"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
