package payment

import (
	"context"
	"fmt"

	"github.com/kevin07696/course-payments/internal/domain"
)

// GetByID returns a payment by its ID
func (s *Service) GetByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if err := requireID("payment_id", paymentID); err != nil {
		return nil, err
	}
	return s.payments.GetByID(ctx, nil, paymentID)
}

// GetByReference returns a payment by its transaction reference
func (s *Service) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	if err := requireID("payment_reference", reference); err != nil {
		return nil, err
	}
	return s.payments.GetByReference(ctx, nil, reference)
}

// ListByStatus lists payments currently in status
func (s *Service) ListByStatus(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error) {
	if !status.IsValid() {
		return nil, domain.Validationf("status", "unknown payment status %q", status)
	}
	return s.payments.ListByStatus(ctx, nil, status)
}

// ListByCourse lists every payment made for a course
func (s *Service) ListByCourse(ctx context.Context, courseID string) ([]*domain.Payment, error) {
	if err := requireID("course_id", courseID); err != nil {
		return nil, err
	}
	return s.payments.ListByCourse(ctx, nil, courseID)
}

// ListByInstructor lists payments for every course the instructor teaches
func (s *Service) ListByInstructor(ctx context.Context, instructorID string) ([]*domain.Payment, error) {
	if err := requireID("instructor_id", instructorID); err != nil {
		return nil, err
	}
	return s.payments.ListByInstructor(ctx, nil, instructorID)
}

// ListByPayer returns one page of a learner's payments, most recent first
func (s *Service) ListByPayer(ctx context.Context, learnerID string, page domain.PageRequest) (*domain.PaymentPage, error) {
	if err := requireID("learner_id", learnerID); err != nil {
		return nil, err
	}
	page = page.Normalize()

	payments, total, err := s.payments.ListByPayer(ctx, nil, learnerID, page)
	if err != nil {
		return nil, fmt.Errorf("list payments for learner %s: %w", learnerID, err)
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	return &domain.PaymentPage{Payments: payments, Total: total, Page: page.Page, Size: page.Size}, nil
}

// HasPaid reports whether a learner holds a completed payment for a course
func (s *Service) HasPaid(ctx context.Context, learnerID, courseID string) (bool, error) {
	if err := requireID("learner_id", learnerID); err != nil {
		return false, err
	}
	if err := requireID("course_id", courseID); err != nil {
		return false, err
	}
	return s.payments.HasCompletedPayment(ctx, nil, learnerID, courseID)
}

// CourseAnalytics rolls up payments for one course
func (s *Service) CourseAnalytics(ctx context.Context, courseID string) (*domain.PaymentAnalytics, error) {
	if err := requireID("course_id", courseID); err != nil {
		return nil, err
	}
	if _, err := s.courses.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}

	totals, err := s.payments.StatusTotalsByCourse(ctx, nil, courseID)
	if err != nil {
		return nil, fmt.Errorf("course analytics for %s: %w", courseID, err)
	}
	analytics := domain.NewPaymentAnalytics(totals)
	return &analytics, nil
}

// InstructorEarnings rolls up payments across every course an instructor owns
func (s *Service) InstructorEarnings(ctx context.Context, instructorID string) (*domain.PaymentAnalytics, error) {
	if err := requireID("instructor_id", instructorID); err != nil {
		return nil, err
	}

	totals, err := s.payments.StatusTotalsByInstructor(ctx, nil, instructorID)
	if err != nil {
		return nil, fmt.Errorf("instructor earnings for %s: %w", instructorID, err)
	}
	analytics := domain.NewPaymentAnalytics(totals)
	return &analytics, nil
}
