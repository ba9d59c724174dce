package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a payment lifecycle event
type EventType string

const (
	EventPaymentInitiated  EventType = "payment.initiated"
	EventPaymentCompleted  EventType = "payment.completed"
	EventPaymentFailed     EventType = "payment.failed"
	EventPaymentCancelled  EventType = "payment.cancelled"
	EventPaymentRefunded   EventType = "payment.refunded"
	EventEnrollmentCreated EventType = "enrollment.created"
	EventEnrollmentRemoved EventType = "enrollment.removed"
)

// EventForStatus returns the event emitted when a payment enters status
func EventForStatus(status PaymentStatus) (EventType, bool) {
	switch status {
	case PaymentStatusCompleted:
		return EventPaymentCompleted, true
	case PaymentStatusFailed:
		return EventPaymentFailed, true
	case PaymentStatusCancelled:
		return EventPaymentCancelled, true
	case PaymentStatusRefunded:
		return EventPaymentRefunded, true
	}
	return "", false
}

// PaymentEvent is published after a payment or enrollment change commits
type PaymentEvent struct {
	OccurredAt   time.Time       `json:"occurred_at"`
	Amount       decimal.Decimal `json:"amount"`
	Type         EventType       `json:"type"`
	PaymentID    string          `json:"payment_id"`
	Reference    string          `json:"transaction_reference"`
	LearnerID    string          `json:"learner_id"`
	CourseID     string          `json:"course_id"`
	Currency     string          `json:"currency"`
	Status       PaymentStatus   `json:"status"`
	EnrollmentID string          `json:"enrollment_id,omitempty"`
}

// NewPaymentEvent builds an event snapshot of p
func NewPaymentEvent(t EventType, p *Payment, now time.Time) PaymentEvent {
	return PaymentEvent{
		Type:       t,
		PaymentID:  p.ID,
		Reference:  p.Reference,
		LearnerID:  p.LearnerID,
		CourseID:   p.CourseID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     p.Status,
		OccurredAt: now,
	}
}
