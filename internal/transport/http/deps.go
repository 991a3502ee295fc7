package http

import (
	"github.com/go-notify-api/internal/application/notification"
	"github.com/go-notify-api/internal/infrastructure/sqs"
	"github.com/go-notify-api/internal/realtime"
	appmiddleware "github.com/go-notify-api/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// Deps holds all infrastructure dependencies for the router. Everything is an
// interface except the hub, whose nil value already models "disabled".
type Deps struct {
	NotificationRepo notification.Repository
	TenantRepo       appmiddleware.TenantSource
	MembershipRepo   appmiddleware.MembershipSource
	Verifier         appmiddleware.TokenVerifier
	Queue            sqs.Enqueuer
	Hub              *realtime.Hub
	Log              *zap.Logger
}
