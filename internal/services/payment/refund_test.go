package payment_test

import (
	"context"
	"testing"

	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completedAndEnrolled drives a payment through verification so it is
// COMPLETED with an enrollment
func completedAndEnrolled(t *testing.T, f *fixture) *domain.Payment {
	t.Helper()
	p := f.initiate(t)
	f.verifySuccessful("50.00")
	_, err := f.verify(p.Reference)
	require.NoError(t, err)
	require.Equal(t, 1, f.enrollments.Count())
	return p
}

func refund(f *fixture, requester domain.Identity, paymentID string) (*domain.Payment, error) {
	return f.svc.RequestRefund(context.Background(), ports.RefundPaymentRequest{
		Requester: requester,
		PaymentID: paymentID,
		Reason:    "course no longer needed",
	})
}

func TestRequestRefund_OwnerRefundRemovesEnrollment(t *testing.T) {
	f := newFixture(t)
	p := completedAndEnrolled(t, f)

	refunded, err := refund(f, student, p.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, f.stored(t, p.ID).Status)
	assert.Zero(t, f.enrollments.Count())

	req := f.gateway.LastRefundReq
	require.NotNil(t, req)
	assert.Equal(t, "4975363", req.TransactionID)
	assert.Equal(t, "50", req.Amount.String())
	assert.Equal(t, "course no longer needed", req.Reason)

	types := f.events.Types()
	assert.Contains(t, types, domain.EventPaymentRefunded)
	assert.Contains(t, types, domain.EventEnrollmentRemoved)
}

func TestRequestRefund_AcceptedGatewayStatuses(t *testing.T) {
	for _, status := range []string{"successful", "pending", "completed"} {
		t.Run(status, func(t *testing.T) {
			f := newFixture(t)
			p := completedAndEnrolled(t, f)
			f.gateway.SetRefundResponse(&ports.RefundResult{Status: status}, nil)

			refunded, err := refund(f, admin, p.ID)

			require.NoError(t, err)
			assert.Equal(t, domain.PaymentStatusRefunded, refunded.Status)
		})
	}
}

func TestRequestRefund_Authorization(t *testing.T) {
	tests := []struct {
		name      string
		requester domain.Identity
		allowed   bool
	}{
		{"owner", student, true},
		{"admin", admin, true},
		{"instructor", instructor, true},
		{"other student", intruder, false},
		{"anonymous", domain.Identity{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := completedAndEnrolled(t, f)

			_, err := refund(f, tt.requester, p.ID)

			if tt.allowed {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			assert.Equal(t, domain.PaymentStatusCompleted, f.stored(t, p.ID).Status)
			_, _, refundCalls := f.gateway.Calls()
			assert.Zero(t, refundCalls)
		})
	}
}

func TestRequestRefund_OnlyFromCompleted(t *testing.T) {
	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusPending,
		domain.PaymentStatusFailed,
		domain.PaymentStatusCancelled,
		domain.PaymentStatusRefunded,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			p := f.seedPayment(t, status)

			_, err := refund(f, admin, p.ID)

			assert.ErrorIs(t, err, domain.ErrInvalidPaymentStatus)
			assert.Equal(t, status, f.stored(t, p.ID).Status)
			_, _, refundCalls := f.gateway.Calls()
			assert.Zero(t, refundCalls)
		})
	}
}

func TestRequestRefund_GatewayRejection(t *testing.T) {
	f := newFixture(t)
	p := completedAndEnrolled(t, f)
	f.gateway.SetRefundResponse(&ports.RefundResult{Status: "failed"}, nil)

	_, err := refund(f, student, p.ID)

	assert.ErrorIs(t, err, domain.ErrRefundFailed)
	assert.Equal(t, domain.PaymentStatusCompleted, f.stored(t, p.ID).Status)
	assert.Equal(t, 1, f.enrollments.Count())
}

func TestRequestRefund_GatewayDeclineEnvelope(t *testing.T) {
	f := newFixture(t)
	p := completedAndEnrolled(t, f)
	f.gateway.SetRefundResponse(nil, domain.WrapError(domain.ErrorCodeRefundFailed,
		"gateway rejected refund: Refund not allowed", domain.ErrRefundFailed))

	_, err := refund(f, student, p.ID)

	assert.Equal(t, domain.ErrorCodeRefundFailed, domain.GetErrorCode(err))
	assert.False(t, domain.IsGatewayError(err))
	assert.Equal(t, domain.PaymentStatusCompleted, f.stored(t, p.ID).Status)
	assert.Equal(t, 1, f.enrollments.Count())
	assert.NotContains(t, f.events.Types(), domain.EventPaymentRefunded)
}

func TestRequestRefund_GatewayErrorLeavesCompleted(t *testing.T) {
	f := newFixture(t)
	p := completedAndEnrolled(t, f)
	f.gateway.SetRefundResponse(nil, domain.WrapError(domain.ErrorCodeGatewayTimeout, "refund request failed: outcome unknown", nil))

	_, err := refund(f, student, p.ID)

	assert.True(t, domain.IsGatewayError(err))
	assert.Equal(t, domain.PaymentStatusCompleted, f.stored(t, p.ID).Status)
}

func TestRequestRefund_EnrollmentRemovalIsBestEffort(t *testing.T) {
	f := newFixture(t)
	p := completedAndEnrolled(t, f)
	f.enrollments.DeleteErr = assert.AnError

	refunded, err := refund(f, student, p.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.Status)
	assert.True(t, f.logger.HasAlert("enrollment_removal_failed"))
}

func TestRequestRefund_KeepsEnrollmentWhileAnotherPaymentCompleted(t *testing.T) {
	f := newFixture(t)
	p := completedAndEnrolled(t, f)
	f.seedPayment(t, domain.PaymentStatusCompleted)

	_, err := refund(f, student, p.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, f.enrollments.Count())
}

func TestRequestRefund_Validation(t *testing.T) {
	f := newFixture(t)
	p := completedAndEnrolled(t, f)

	_, err := f.svc.RequestRefund(context.Background(), ports.RefundPaymentRequest{Requester: student, PaymentID: p.ID, Reason: "  "})
	assert.Equal(t, domain.ErrorCodeValidation, domain.GetErrorCode(err))

	_, err = f.svc.RequestRefund(context.Background(), ports.RefundPaymentRequest{Requester: student, Reason: "x"})
	assert.Equal(t, domain.ErrorCodeValidation, domain.GetErrorCode(err))

	_, err = refund(f, student, "missing")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestRequestRefund_ManuallyCompletedPaymentHasNothingToRefund(t *testing.T) {
	f := newFixture(t)
	p := f.initiate(t)
	_, err := f.svc.UpdatePaymentStatus(context.Background(), ports.UpdateStatusRequest{
		Actor: admin, PaymentID: p.ID, Status: domain.PaymentStatusCompleted,
	})
	require.NoError(t, err)

	_, err = refund(f, admin, p.ID)

	assert.Equal(t, domain.ErrorCodeRefundFailed, domain.GetErrorCode(err))
	assert.Equal(t, domain.PaymentStatusCompleted, f.stored(t, p.ID).Status)
}
