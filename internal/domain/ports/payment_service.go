package ports

import (
	"context"

	"github.com/kevin07696/course-payments/internal/domain"
)

// PaymentService defines the business logic for course payments. Every
// mutating call takes the acting identity explicitly.
type PaymentService interface {
	// InitiatePayment opens a gateway checkout for a course at its current price
	InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResult, error)

	// Verify reconciles a payment against the gateway's record of transactionID
	Verify(ctx context.Context, req VerifyRequest) (*ReconcileResult, error)

	// HandleWebhook is Verify for gateway deliveries. The claimed status is
	// logged and otherwise ignored.
	HandleWebhook(ctx context.Context, req WebhookRequest) (*ReconcileResult, error)

	// RequestRefund refunds the full amount of a completed payment
	RequestRefund(ctx context.Context, req RefundPaymentRequest) (*domain.Payment, error)

	// UpdatePaymentStatus applies a manual status correction
	UpdatePaymentStatus(ctx context.Context, req UpdateStatusRequest) (*domain.Payment, error)

	GetByID(ctx context.Context, paymentID string) (*domain.Payment, error)
	GetByReference(ctx context.Context, reference string) (*domain.Payment, error)
	ListByStatus(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error)
	ListByCourse(ctx context.Context, courseID string) ([]*domain.Payment, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]*domain.Payment, error)
	ListByPayer(ctx context.Context, learnerID string, page domain.PageRequest) (*domain.PaymentPage, error)
	HasPaid(ctx context.Context, learnerID, courseID string) (bool, error)

	CourseAnalytics(ctx context.Context, courseID string) (*domain.PaymentAnalytics, error)
	InstructorEarnings(ctx context.Context, instructorID string) (*domain.PaymentAnalytics, error)
}

// InitiatePaymentRequest starts a purchase of CourseID by Learner
type InitiatePaymentRequest struct {
	Learner  domain.Identity
	CourseID string
	// Currency defaults to the configured currency when empty
	Currency string
}

// InitiatePaymentResult is the local record plus where to send the learner
type InitiatePaymentResult struct {
	Payment      *domain.Payment
	RedirectLink string
}

// VerifyRequest correlates a gateway transaction with a local reference
type VerifyRequest struct {
	TransactionID string
	Reference     string
}

// WebhookRequest is a gateway delivery. ClaimedStatus is never trusted.
type WebhookRequest struct {
	Event         string
	TransactionID string
	Reference     string
	ClaimedStatus string
}

// ReconcileResult describes the payment after reconciliation
type ReconcileResult struct {
	Payment *domain.Payment
	// Enrollment is set once the payment is COMPLETED and enrollment succeeded
	Enrollment *domain.Enrollment
	// AlreadyCompleted is true when the payment was COMPLETED before this call
	AlreadyCompleted bool
	// AlreadySettled is true when the payment was COMPLETED or REFUNDED
	// before this call and the gateway was not consulted
	AlreadySettled bool
}

// RefundPaymentRequest asks for a full refund on behalf of Requester
type RefundPaymentRequest struct {
	Requester domain.Identity
	PaymentID string
	Reason    string
}

// UpdateStatusRequest is a manual correction by Actor
type UpdateStatusRequest struct {
	Actor     domain.Identity
	PaymentID string
	Status    domain.PaymentStatus
}
