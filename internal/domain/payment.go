package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a course payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// AllPaymentStatuses lists every status in declaration order
var AllPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusCancelled,
	PaymentStatusRefunded,
}

// allowedTransitions is the full transition table. Same-state moves are
// handled separately in CanTransition.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted: {PaymentStatusRefunded},
	PaymentStatusFailed:    {PaymentStatusPending, PaymentStatusCancelled},
	PaymentStatusCancelled: {PaymentStatusPending},
	PaymentStatusRefunded:  {},
}

// IsValid returns true if s is a known status
func (s PaymentStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal returns true if no transition out of s exists
func (s PaymentStatus) IsTerminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

func (s PaymentStatus) String() string {
	return string(s)
}

// CanTransition reports whether a payment in status from may move to status to.
// Moving to the same status is always allowed and is a no-op.
func CanTransition(from, to PaymentStatus) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition wrapped with context when
// the move is not in the table.
func ValidateTransition(from, to PaymentStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return WrapError(ErrorCodeInvalidTransition,
		fmt.Sprintf("cannot move payment from %s to %s", from, to), ErrInvalidTransition).
		WithDetail("from", string(from)).
		WithDetail("to", string(to))
}

// ParsePaymentStatus parses a status name case-insensitively
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	s := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", Validationf("status", "unknown payment status %q", raw)
	}
	return s, nil
}

// Vendor statuses reported by the gateway's verify and refund endpoints
const (
	GatewayStatusSuccessful = "successful"
	GatewayStatusFailed     = "failed"
	GatewayStatusCancelled  = "cancelled"
	GatewayStatusPending    = "pending"
)

// MapGatewayStatus maps a verified vendor status to a local status. Unknown
// vendor statuses map to PENDING with recognized=false.
func MapGatewayStatus(raw string) (status PaymentStatus, recognized bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case GatewayStatusSuccessful:
		return PaymentStatusCompleted, true
	case GatewayStatusFailed:
		return PaymentStatusFailed, true
	case GatewayStatusCancelled:
		return PaymentStatusCancelled, true
	default:
		return PaymentStatusPending, false
	}
}

// IsRefundAccepted reports whether a gateway refund status confirms the reversal
func IsRefundAccepted(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case GatewayStatusSuccessful, GatewayStatusPending, "completed":
		return true
	}
	return false
}

// AmountTolerance is the largest difference between the gateway-reported and
// stored amounts still treated as equal.
var AmountTolerance = decimal.NewFromFloat(0.01)

// AmountsMatch compares two amounts within AmountTolerance
func AmountsMatch(stored, reported decimal.Decimal) bool {
	return stored.Sub(reported).Abs().LessThanOrEqual(AmountTolerance)
}

// DefaultPaymentMethod is recorded until the gateway reports the actual method
const DefaultPaymentMethod = "flutterwave"

// Payment is a single purchase attempt of a course by a learner
type Payment struct {
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	GatewayTxID   *string         `json:"gateway_transaction_id,omitempty"`
	GatewayStatus *string         `json:"gateway_status,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	ID            string          `json:"id"`
	Reference     string          `json:"transaction_reference"`
	LearnerID     string          `json:"learner_id"`
	CourseID      string          `json:"course_id"`
	Currency      string          `json:"currency"`
	Method        string          `json:"payment_method"`
	Status        PaymentStatus   `json:"payment_status"`
}

// Transition moves the payment to status to, stamping UpdatedAt and, on
// completion, PaymentDate. The payment is left untouched on error.
func (p *Payment) Transition(to PaymentStatus, now time.Time) error {
	if err := ValidateTransition(p.Status, to); err != nil {
		return err
	}
	if p.Status == to {
		return nil
	}
	p.Status = to
	p.UpdatedAt = now
	if to == PaymentStatusCompleted {
		p.PaymentDate = &now
	}
	return nil
}

// IsOwnedBy returns true if learnerID made this payment
func (p *Payment) IsOwnedBy(learnerID string) bool {
	return learnerID != "" && p.LearnerID == learnerID
}

// IsCompleted returns true once the payment has been confirmed
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// IsSettled returns true once the gateway outcome is final for this payment.
// Settled payments take no further gateway reconciliation.
func (p *Payment) IsSettled() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusRefunded
}

// Clone returns a copy that shares no pointers with p
func (p *Payment) Clone() *Payment {
	c := *p
	if p.PaymentDate != nil {
		d := *p.PaymentDate
		c.PaymentDate = &d
	}
	if p.GatewayTxID != nil {
		id := *p.GatewayTxID
		c.GatewayTxID = &id
	}
	if p.GatewayStatus != nil {
		s := *p.GatewayStatus
		c.GatewayStatus = &s
	}
	return &c
}

// NewReference builds a transaction reference of the form
// <prefix>_<epochMillis>_<first 8 chars of learnerID>.
func NewReference(prefix string, now time.Time, learnerID string) string {
	short := strings.ReplaceAll(learnerID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), short)
}
