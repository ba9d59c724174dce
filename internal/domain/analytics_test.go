package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewPaymentAnalytics(t *testing.T) {
	totals := []StatusTotal{
		{Status: PaymentStatusCompleted, Count: 3, Amount: decimal.RequireFromString("150.00")},
		{Status: PaymentStatusPending, Count: 2, Amount: decimal.RequireFromString("100.00")},
		{Status: PaymentStatusFailed, Count: 1, Amount: decimal.RequireFromString("50.00")},
		{Status: PaymentStatusCancelled, Count: 1, Amount: decimal.RequireFromString("50.00")},
		{Status: PaymentStatusRefunded, Count: 1, Amount: decimal.RequireFromString("50.00")},
	}

	a := NewPaymentAnalytics(totals)

	assert.Equal(t, 8, a.TotalPayments)
	assert.Equal(t, 3, a.SuccessfulPayments)
	assert.Equal(t, 2, a.PendingPayments)
	assert.Equal(t, 1, a.FailedPayments)
	assert.Equal(t, 1, a.CancelledPayments)
	assert.Equal(t, 1, a.RefundedPayments)
	assert.True(t, a.TotalRevenue.Equal(decimal.RequireFromString("150")), "revenue counts completed only")
	assert.True(t, a.AveragePaymentAmount.Equal(decimal.RequireFromString("50")))
}

func TestNewPaymentAnalytics_Empty(t *testing.T) {
	a := NewPaymentAnalytics(nil)
	assert.Zero(t, a.TotalPayments)
	assert.True(t, a.TotalRevenue.IsZero())
	assert.True(t, a.AveragePaymentAmount.IsZero())
}

func TestPageRequest_Normalize(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 0, Size: DefaultPageSize}, PageRequest{Page: -1}.Normalize())
	assert.Equal(t, PageRequest{Page: 2, Size: MaxPageSize}, PageRequest{Page: 2, Size: 1000}.Normalize())
	assert.Equal(t, 40, PageRequest{Page: 2, Size: 20}.Offset())
}
