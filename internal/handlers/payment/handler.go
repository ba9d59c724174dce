package payment

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/kevin07696/course-payments/internal/auth"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/kevin07696/course-payments/internal/middleware"
	"github.com/kevin07696/course-payments/pkg/resilience"
	"go.uber.org/zap"
)

// Route prefixes
const (
	PublicPrefix = "/api/public/payments"
	APIPrefix    = "/api/v1"
)

// Config holds handler settings
type Config struct {
	// FrontendURL is where learners land after the gateway redirect
	FrontendURL string
	Timeouts    *resilience.TimeoutConfig
}

// Handler exposes the payment service over HTTP
type Handler struct {
	service  ports.PaymentService
	resolver ports.IdentityResolver
	webhook  *middleware.WebhookAuth
	validate *validator.Validate
	config   Config
	logger   *zap.Logger
}

// NewHandler creates a payment HTTP handler
func NewHandler(
	service ports.PaymentService,
	resolver ports.IdentityResolver,
	webhook *middleware.WebhookAuth,
	config Config,
	logger *zap.Logger,
) *Handler {
	if config.Timeouts == nil {
		config.Timeouts = resilience.DefaultTimeoutConfig()
	}
	config.FrontendURL = strings.TrimRight(config.FrontendURL, "/")
	return &Handler{
		service:  service,
		resolver: resolver,
		webhook:  webhook,
		validate: newValidator(),
		config:   config,
		logger:   logger,
	}
}

type route struct {
	method  string
	pattern string
	handler runtime.HandlerFunc
}

// Register adds every payment route to mux
func (h *Handler) Register(mux *runtime.ServeMux) error {
	routes := []route{
		{http.MethodPost, PublicPrefix + "/webhook", h.webhook.Wrap(h.Webhook)},
		{http.MethodGet, PublicPrefix + "/callback", h.Callback},
		{http.MethodPost, PublicPrefix + "/verify", h.Verify},

		{http.MethodPost, APIPrefix + "/student/payments/initiate", h.authenticated(h.Initiate)},
		{http.MethodGet, APIPrefix + "/student/payments/history", h.authenticated(h.History)},
		{http.MethodGet, APIPrefix + "/student/payments/check/{course_id}", h.authenticated(h.CheckPaid)},
		{http.MethodPost, APIPrefix + "/payments/{id}/refund", h.authenticated(h.Refund)},
		{http.MethodGet, APIPrefix + "/payments/{id}", h.authenticated(h.GetPayment)},
		{http.MethodGet, APIPrefix + "/payments/reference/{reference}", h.authenticated(h.GetByReference)},
		{http.MethodGet, APIPrefix + "/payments/status/{status}", h.authenticated(h.ListByStatus)},
		{http.MethodGet, APIPrefix + "/payments/course/{course_id}", h.authenticated(h.ListByCourse)},
		{http.MethodGet, APIPrefix + "/payments/course/{course_id}/analytics", h.authenticated(h.CourseAnalytics)},
		{http.MethodGet, APIPrefix + "/instructor/payments/earnings", h.authenticated(h.InstructorEarnings)},
		{http.MethodGet, APIPrefix + "/instructor/payments/all", h.authenticated(h.ListByInstructor)},
		{http.MethodPut, APIPrefix + "/admin/payments/{id}/status", h.authenticated(h.UpdateStatus)},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, h.bounded(rt.handler)); err != nil {
			return err
		}
	}
	return nil
}

// identityHandler is a route that runs on behalf of an authenticated caller
type identityHandler func(w http.ResponseWriter, r *http.Request, caller domain.Identity, params map[string]string)

// authenticated resolves the bearer token before next runs
func (h *Handler) authenticated(next identityHandler) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			h.writeError(w, r, domain.ErrUnauthenticated)
			return
		}
		identity, err := h.resolver.Resolve(r.Context(), header)
		if err != nil {
			h.logger.Warn("bearer token rejected",
				zap.String("path", r.URL.Path),
				zap.String("ip", auth.ClientIP(r.Context())),
				zap.Error(err))
			h.writeError(w, r, domain.ErrUnauthenticated)
			return
		}
		ctx := auth.WithIdentity(r.Context(), identity)
		next(w, r.WithContext(ctx), *identity, params)
	}
}

// bounded applies the handler timeout to every route
func (h *Handler) bounded(next runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		ctx, cancel := h.config.Timeouts.HandlerContext(r.Context())
		defer cancel()
		next(w, r.WithContext(ctx), params)
	}
}

func requireRole(caller domain.Identity, roles ...domain.Role) error {
	for _, role := range roles {
		if caller.Role == role {
			return nil
		}
	}
	return domain.ErrUnauthorized
}

// visibleTo hides other learners' payments from students
func visibleTo(caller domain.Identity, p *domain.Payment) error {
	if caller.CanManagePayments() || p.IsOwnedBy(caller.ID) {
		return nil
	}
	return domain.ErrUnauthorized
}

// reconcileContext outlives the caller's connection so a browser that
// drops the gateway redirect cannot abort a half-done reconciliation
func (h *Handler) reconcileContext(r *http.Request) (context.Context, context.CancelFunc) {
	return h.config.Timeouts.OperationContext(context.WithoutCancel(r.Context()))
}
