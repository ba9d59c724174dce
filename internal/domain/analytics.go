package domain

import "github.com/shopspring/decimal"

// PaymentAnalytics rolls up payments for a course or an instructor
type PaymentAnalytics struct {
	TotalRevenue         decimal.Decimal `json:"total_revenue"`
	AveragePaymentAmount decimal.Decimal `json:"average_payment_amount"`
	TotalPayments        int             `json:"total_payments"`
	SuccessfulPayments   int             `json:"successful_payments"`
	PendingPayments      int             `json:"pending_payments"`
	FailedPayments       int             `json:"failed_payments"`
	CancelledPayments    int             `json:"cancelled_payments"`
	RefundedPayments     int             `json:"refunded_payments"`
}

// StatusTotal is the count and amount sum for one status
type StatusTotal struct {
	Amount decimal.Decimal
	Status PaymentStatus
	Count  int
}

// NewPaymentAnalytics builds analytics from per-status totals. Revenue only
// counts COMPLETED payments.
func NewPaymentAnalytics(totals []StatusTotal) PaymentAnalytics {
	a := PaymentAnalytics{
		TotalRevenue:         decimal.Zero,
		AveragePaymentAmount: decimal.Zero,
	}
	for _, t := range totals {
		a.TotalPayments += t.Count
		switch t.Status {
		case PaymentStatusCompleted:
			a.SuccessfulPayments += t.Count
			a.TotalRevenue = a.TotalRevenue.Add(t.Amount)
		case PaymentStatusPending:
			a.PendingPayments += t.Count
		case PaymentStatusFailed:
			a.FailedPayments += t.Count
		case PaymentStatusCancelled:
			a.CancelledPayments += t.Count
		case PaymentStatusRefunded:
			a.RefundedPayments += t.Count
		}
	}
	if a.SuccessfulPayments > 0 {
		a.AveragePaymentAmount = a.TotalRevenue.Div(decimal.NewFromInt(int64(a.SuccessfulPayments))).Round(2)
	}
	return a
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest is a zero-based page index and size
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the request into valid bounds
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 0 {
		r.Page = 0
	}
	if r.Size <= 0 {
		r.Size = DefaultPageSize
	}
	if r.Size > MaxPageSize {
		r.Size = MaxPageSize
	}
	return r
}

// Offset returns the row offset for the page
func (r PageRequest) Offset() int {
	return r.Page * r.Size
}

// PaymentPage is one page of payments and the total match count
type PaymentPage struct {
	Payments []*Payment `json:"payments"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	Size     int        `json:"size"`
}
