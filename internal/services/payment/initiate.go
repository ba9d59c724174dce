package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/kevin07696/course-payments/pkg/observability"
	"github.com/kevin07696/course-payments/pkg/resilience"
)

const maxReferenceAttempts = 3

// InitiatePayment records a PENDING payment priced from the course and opens
// a gateway checkout for it.
//
// When the gateway call fails the PENDING record is kept and returned
// alongside the error: the outcome at the gateway is unknown and the payment
// can still be reconciled later.
func (s *Service) InitiatePayment(ctx context.Context, req ports.InitiatePaymentRequest) (*ports.InitiatePaymentResult, error) {
	if err := requireID("learner_id", req.Learner.ID); err != nil {
		return nil, err
	}
	if err := requireID("course_id", req.CourseID); err != nil {
		return nil, err
	}
	currency, err := s.normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	course, err := s.courses.GetCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.Price.IsPositive() {
		observability.RecordInitiation("invalid_amount")
		return nil, domain.WrapError(domain.ErrorCodeInvalidAmount,
			fmt.Sprintf("course %s has no payable price", course.ID), domain.ErrInvalidAmount).
			WithDetail("price", course.Price.String())
	}

	learner, err := s.learners.GetLearner(ctx, req.Learner.ID)
	if err != nil {
		return nil, err
	}

	paid, err := s.payments.HasCompletedPayment(ctx, nil, learner.ID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing payment: %w", err)
	}
	if paid {
		observability.RecordInitiation("already_paid")
		return nil, domain.WrapError(domain.ErrorCodeAlreadyPaid,
			"learner has already paid for this course", domain.ErrAlreadyPaid).
			WithDetail("course_id", course.ID)
	}

	payment, err := s.createPending(ctx, learner.ID, course, currency)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.NewPaymentEvent(domain.EventPaymentInitiated, payment, s.now()))

	link, err := s.gateway.CreatePayment(ctx, &ports.CreatePaymentRequest{
		Reference:   payment.Reference,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		RedirectURL: s.redirectURL(payment.Reference),
		Title:       course.Name + " Course Payment",
		Description: "Payment for course: " + course.Name,
		Customer: ports.Customer{
			Email: learner.Email,
			Name:  learner.Name,
			Phone: learner.Phone,
		},
		Meta: map[string]string{
			"payment_id": payment.ID,
			"course_id":  course.ID,
			"student_id": learner.ID,
		},
	})
	if err != nil {
		observability.RecordInitiation("gateway_error")
		s.logger.Warn("gateway checkout failed, pending payment kept for reconciliation",
			ports.String("payment_id", payment.ID),
			ports.String("reference", payment.Reference),
			ports.Err(err))
		return &ports.InitiatePaymentResult{Payment: payment}, err
	}

	observability.RecordInitiation("success")
	s.logger.Info("payment initiated",
		ports.String("payment_id", payment.ID),
		ports.String("reference", payment.Reference),
		ports.String("course_id", course.ID),
		ports.String("amount", payment.Amount.String()),
		ports.String("currency", payment.Currency))

	return &ports.InitiatePaymentResult{Payment: payment, RedirectLink: link.Link}, nil
}

// createPending inserts the payment, minting a new reference if two
// initiations for the same learner collide within a millisecond
func (s *Service) createPending(ctx context.Context, learnerID string, course *domain.Course, currency string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := resilience.Retry(ctx, maxReferenceAttempts, &resilience.FixedBackoff{Delay: time.Millisecond},
		func(err error) bool {
			return domain.IsDomainError(err, domain.ErrorCodeConcurrentModification)
		},
		func(int) error {
			now := s.now()
			payment = &domain.Payment{
				ID:        uuid.NewString(),
				Reference: domain.NewReference(s.config.ReferencePrefix, now, learnerID),
				LearnerID: learnerID,
				CourseID:  course.ID,
				Amount:    course.Price,
				Currency:  currency,
				Status:    domain.PaymentStatusPending,
				Method:    domain.DefaultPaymentMethod,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return s.payments.Create(ctx, nil, payment)
		})
	if err != nil {
		s.logger.Error("failed to persist pending payment",
			ports.String("learner_id", learnerID),
			ports.String("course_id", course.ID),
			ports.Err(err))
		return nil, err
	}
	return payment, nil
}

func (s *Service) normalizeCurrency(raw string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(raw))
	if currency == "" {
		return s.config.DefaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", domain.Validationf("currency", "currency must be a 3 letter ISO code, got %q", raw)
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", domain.Validationf("currency", "currency must be a 3 letter ISO code, got %q", raw)
		}
	}
	return currency, nil
}

func (s *Service) redirectURL(reference string) string {
	return s.config.PublicBaseURL + callbackPath + "?payment_reference=" + url.QueryEscape(reference)
}
