package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-notify-api/internal/application/dispatch"
	"github.com/go-notify-api/internal/application/notification"
	"github.com/go-notify-api/internal/domain"
	"github.com/go-notify-api/internal/transport/http/middleware"
)

// NotificationHandler exposes the notification store and the dispatch entry
// point. Every operation is scoped to the authenticated principal's tenant.
type NotificationHandler struct {
	svc        notification.Service
	dispatcher dispatch.Service
}

func NewNotificationHandler(svc notification.Service, dispatcher dispatch.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc, dispatcher: dispatcher}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	filter, page := parseListQuery(r)
	items, meta, err := h.svc.List(r.Context(), p.TenantID, p.UserID, filter, page)
	if err != nil {
		httpError(w, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, PaginatedNotificationsEnvelope{Data: items, Meta: meta})
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.Get(r.Context(), p.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	count, err := h.svc.UnreadCount(r.Context(), p.TenantID, p.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadCountEnvelope{Count: count})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.MarkAsRead(r.Context(), p.TenantID, p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	count, err := h.svc.MarkAllAsRead(r.Context(), p.TenantID, p.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "marked as read", Count: count})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Delete(r.Context(), p.TenantID, p.UserID, chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "notification deleted"})
}

func (h *NotificationHandler) DeleteAllRead(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	count, err := h.svc.DeleteAllRead(r.Context(), p.TenantID, p.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "read notifications deleted", Count: count})
}

// Create is the dispatch entry point for internal producers (role-gated in
// the router). The tenant is always the caller's own; the recipient user id
// comes from the body.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TenantID = p.TenantID

	n, err := h.dispatcher.Send(r.Context(), req)
	if err != nil && n == nil {
		httpError(w, err)
		return
	}
	// n != nil with err != nil means the record was created but one or more
	// delivery jobs failed to enqueue; the record is still returned.
	writeJSON(w, http.StatusCreated, n)
}

func parseListQuery(r *http.Request) (domain.NotificationFilter, domain.Page) {
	q := r.URL.Query()

	var f domain.NotificationFilter
	if v := q.Get("read"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Read = &b
		}
	}
	if v := q.Get("type"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Types = append(f.Types, domain.NotificationType(t))
			}
		}
	}
	if v := q.Get("priority"); v != "" {
		f.Priority = domain.Priority(v)
	}
	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.DateFrom = &t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.DateTo = &t
		}
	}

	var page domain.Page
	page.Page, _ = strconv.Atoi(q.Get("page"))
	page.Limit, _ = strconv.Atoi(q.Get("limit"))
	return f, page
}
