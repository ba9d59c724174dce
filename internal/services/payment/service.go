package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/kevin07696/course-payments/pkg/observability"
	"github.com/kevin07696/course-payments/pkg/resilience"
)

const (
	DefaultReferencePrefix = "IGA"
	DefaultCurrency        = "RWF"

	callbackPath   = "/api/public/payments/callback"
	publishTimeout = 5 * time.Second
)

// Config holds orchestrator settings
type Config struct {
	// Now is the clock; defaults to time.Now in UTC
	Now func() time.Time

	Timeouts *resilience.TimeoutConfig

	ReferencePrefix string
	DefaultCurrency string
	// PublicBaseURL is where the gateway redirects learners back to this service
	PublicBaseURL string
}

// Dependencies groups the ports the orchestrator consumes
type Dependencies struct {
	DB          ports.DBPort
	Payments    ports.PaymentRepository
	Enrollments ports.EnrollmentRepository
	Gateway     ports.PaymentGateway
	Courses     ports.CourseCatalog
	Learners    ports.LearnerDirectory
	Locker      ports.ReferenceLocker
	Events      ports.EventPublisher
	Logger      ports.Logger
}

// Service implements ports.PaymentService. It owns the payment state machine
// and is the only writer of payments and enrollments.
type Service struct {
	db          ports.DBPort
	payments    ports.PaymentRepository
	enrollments ports.EnrollmentRepository
	gateway     ports.PaymentGateway
	courses     ports.CourseCatalog
	learners    ports.LearnerDirectory
	locker      ports.ReferenceLocker
	events      ports.EventPublisher
	logger      ports.Logger
	timeouts    *resilience.TimeoutConfig
	now         func() time.Time
	config      Config
}

// NewService creates a new payment orchestrator
func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.ReferencePrefix == "" {
		cfg.ReferencePrefix = DefaultReferencePrefix
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.Timeouts == nil {
		cfg.Timeouts = resilience.DefaultTimeoutConfig()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		db:          deps.DB,
		payments:    deps.Payments,
		enrollments: deps.Enrollments,
		gateway:     deps.Gateway,
		courses:     deps.Courses,
		learners:    deps.Learners,
		locker:      deps.Locker,
		events:      deps.Events,
		logger:      deps.Logger,
		timeouts:    cfg.Timeouts,
		now:         now,
		config:      cfg,
	}
}

// withReferenceLock runs fn while holding the per-reference lock
func (s *Service) withReferenceLock(ctx context.Context, reference string, fn func() error) error {
	lockCtx, cancel := s.timeouts.LockContext(ctx)
	defer cancel()

	release, err := s.locker.Lock(lockCtx, reference)
	if err != nil {
		s.logger.Warn("could not acquire payment lock",
			ports.String("reference", reference),
			ports.Err(err))
		return err
	}
	defer release()

	return fn()
}

// enroll creates the enrollment for a completed payment if it does not exist
func (s *Service) enroll(ctx context.Context, p *domain.Payment) (*domain.Enrollment, error) {
	enrollment, created, err := s.enrollments.CreateIfAbsent(ctx, nil, &domain.Enrollment{
		ID:         uuid.NewString(),
		LearnerID:  p.LearnerID,
		CourseID:   p.CourseID,
		EnrolledAt: s.now(),
		Progress:   domain.ProgressNotStarted,
	})
	if err != nil {
		observability.RecordEnrollmentFailure()
		s.logger.Error("payment completed but enrollment failed",
			ports.String("alert", "enrollment_failed"),
			ports.String("payment_id", p.ID),
			ports.String("reference", p.Reference),
			ports.String("learner_id", p.LearnerID),
			ports.String("course_id", p.CourseID),
			ports.Err(err))
		return nil, domain.WrapError(domain.ErrorCodeEnrollmentFailed,
			"payment completed but enrollment could not be created", err).
			WithDetail("payment_id", p.ID)
	}

	if created {
		s.logger.Info("enrollment created",
			ports.String("enrollment_id", enrollment.ID),
			ports.String("learner_id", p.LearnerID),
			ports.String("course_id", p.CourseID))
		s.publishEnrollment(ctx, domain.EventEnrollmentCreated, p, enrollment.ID)
	}
	return enrollment, nil
}

// unenroll removes the enrollment after a refund. Failures are logged only:
// the money has already moved. A learner still holding another completed
// payment for the course keeps access.
func (s *Service) unenroll(ctx context.Context, p *domain.Payment) {
	stillPaid, err := s.payments.HasCompletedPayment(ctx, nil, p.LearnerID, p.CourseID)
	if err != nil {
		s.logger.Error("failed to check remaining payments before enrollment removal",
			ports.String("payment_id", p.ID),
			ports.Err(err))
		return
	}
	if stillPaid {
		s.logger.Warn("learner holds another completed payment, keeping enrollment",
			ports.String("payment_id", p.ID),
			ports.String("learner_id", p.LearnerID),
			ports.String("course_id", p.CourseID))
		return
	}

	removed, err := s.enrollments.DeleteByLearnerAndCourse(ctx, nil, p.LearnerID, p.CourseID)
	if err != nil {
		s.logger.Error("refund recorded but enrollment removal failed",
			ports.String("alert", "enrollment_removal_failed"),
			ports.String("payment_id", p.ID),
			ports.String("learner_id", p.LearnerID),
			ports.String("course_id", p.CourseID),
			ports.Err(err))
		return
	}
	if removed {
		s.publishEnrollment(ctx, domain.EventEnrollmentRemoved, p, "")
	}
}

// recordTransition emits metrics and the lifecycle event for a committed move
func (s *Service) recordTransition(ctx context.Context, from domain.PaymentStatus, p *domain.Payment, trigger string) {
	if from == p.Status {
		return
	}
	observability.RecordTransition(string(from), string(p.Status), trigger)
	if p.Status == domain.PaymentStatusCompleted {
		amount, _ := p.Amount.Float64()
		observability.RecordRevenue(p.Currency, amount)
	}

	s.logger.Info("payment status changed",
		ports.String("payment_id", p.ID),
		ports.String("reference", p.Reference),
		ports.String("from", string(from)),
		ports.String("to", string(p.Status)),
		ports.String("trigger", trigger))

	if eventType, ok := domain.EventForStatus(p.Status); ok {
		s.publish(ctx, domain.NewPaymentEvent(eventType, p, s.now()))
	}
}

func (s *Service) publishEnrollment(ctx context.Context, t domain.EventType, p *domain.Payment, enrollmentID string) {
	event := domain.NewPaymentEvent(t, p, s.now())
	event.EnrollmentID = enrollmentID
	s.publish(ctx, event)
}

// publish is best-effort and runs after the write has committed
func (s *Service) publish(ctx context.Context, event domain.PaymentEvent) {
	if s.events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.events.Publish(pubCtx, event); err != nil {
		s.logger.Warn("failed to publish payment event",
			ports.String("type", string(event.Type)),
			ports.String("reference", event.Reference),
			ports.Err(err))
	}
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.Validationf(field, "%s is required", field)
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
