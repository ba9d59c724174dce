package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kevin07696/course-payments/internal/auth"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/kevin07696/course-payments/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type harness struct {
	service   *mocks.MockPaymentService
	connected int
	closed    int
}

func (h *harness) connect(context.Context) (ports.PaymentService, func(), error) {
	h.connected++
	return h.service, func() { h.closed++ }, nil
}

func execute(t *testing.T, h *harness, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(h.connect)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func newHarness() *harness {
	return &harness{service: new(mocks.MockPaymentService)}
}

func payment(status domain.PaymentStatus) *domain.Payment {
	return &domain.Payment{
		ID:        "pay-1",
		Reference: "IGA_1_x",
		LearnerID: "learner-1",
		CourseID:  "course-1",
		Amount:    decimal.RequireFromString("50"),
		Currency:  "RWF",
		Status:    status,
	}
}

func TestReconcile(t *testing.T) {
	h := newHarness()
	h.service.On("Verify", mock.Anything, ports.VerifyRequest{TransactionID: "4975363", Reference: "IGA_1_x"}).
		Return(&ports.ReconcileResult{Payment: payment(domain.PaymentStatusCompleted)}, nil)

	out, err := execute(t, h, "reconcile", "--reference", "IGA_1_x", "--transaction-id", "4975363")
	require.NoError(t, err)

	var result ports.ReconcileResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, domain.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, 1, h.closed)
}

func TestReconcile_RequiresFlags(t *testing.T) {
	h := newHarness()
	_, err := execute(t, h, "reconcile", "--reference", "IGA_1_x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction-id")
	assert.Zero(t, h.connected)
}

func TestRefund_ActsAsSystem(t *testing.T) {
	h := newHarness()
	h.service.On("RequestRefund", mock.Anything, ports.RefundPaymentRequest{
		Requester: domain.SystemIdentity,
		PaymentID: "pay-1",
		Reason:    "duplicate charge",
	}).Return(payment(domain.PaymentStatusRefunded), nil)

	out, err := execute(t, h, "refund", "--payment-id", "pay-1", "--reason", "duplicate charge")
	require.NoError(t, err)
	assert.Contains(t, out, `"REFUNDED"`)
	h.service.AssertExpectations(t)
}

func TestRefund_PropagatesServiceError(t *testing.T) {
	h := newHarness()
	h.service.On("RequestRefund", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidPaymentStatus)

	_, err := execute(t, h, "refund", "--payment-id", "pay-1", "--reason", "x")
	assert.True(t, errors.Is(err, domain.ErrInvalidPaymentStatus))
	assert.Equal(t, 1, h.closed)
}

func TestSetStatus(t *testing.T) {
	h := newHarness()
	h.service.On("UpdatePaymentStatus", mock.Anything, ports.UpdateStatusRequest{
		Actor:     domain.SystemIdentity,
		PaymentID: "pay-1",
		Status:    domain.PaymentStatusCancelled,
	}).Return(payment(domain.PaymentStatusCancelled), nil)

	_, err := execute(t, h, "set-status", "--payment-id", "pay-1", "--status", "cancelled")
	require.NoError(t, err)
	h.service.AssertExpectations(t)
}

func TestSetStatus_RejectsUnknownStatusBeforeConnecting(t *testing.T) {
	h := newHarness()
	_, err := execute(t, h, "set-status", "--payment-id", "pay-1", "--status", "SETTLED")
	assert.NotEmpty(t, domain.GetErrorCode(err))
	assert.Zero(t, h.connected)
}

func TestList(t *testing.T) {
	t.Run("by status", func(t *testing.T) {
		h := newHarness()
		h.service.On("ListByStatus", mock.Anything, domain.PaymentStatusPending).
			Return([]*domain.Payment{payment(domain.PaymentStatusPending)}, nil)
		out, err := execute(t, h, "list", "--status", "pending")
		require.NoError(t, err)
		assert.Contains(t, out, "IGA_1_x")
	})

	t.Run("by course", func(t *testing.T) {
		h := newHarness()
		h.service.On("ListByCourse", mock.Anything, "course-1").Return([]*domain.Payment{}, nil)
		out, err := execute(t, h, "list", "--course-id", "course-1")
		require.NoError(t, err)
		assert.Equal(t, "[]\n", out)
	})

	t.Run("by instructor", func(t *testing.T) {
		h := newHarness()
		h.service.On("ListByInstructor", mock.Anything, "instructor-1").
			Return([]*domain.Payment{payment(domain.PaymentStatusCompleted)}, nil)
		out, err := execute(t, h, "list", "--instructor-id", "instructor-1")
		require.NoError(t, err)
		assert.Contains(t, out, "IGA_1_x")
		h.service.AssertExpectations(t)
	})

	t.Run("by learner", func(t *testing.T) {
		h := newHarness()
		h.service.On("ListByPayer", mock.Anything, "learner-1", domain.PageRequest{Page: 2, Size: 5}).
			Return(&domain.PaymentPage{Payments: []*domain.Payment{}, Total: 11, Page: 2, Size: 5}, nil)
		out, err := execute(t, h, "list", "--learner-id", "learner-1", "--page", "2", "--size", "5")
		require.NoError(t, err)
		assert.Contains(t, out, `"total": 11`)
	})

	t.Run("needs exactly one filter", func(t *testing.T) {
		h := newHarness()
		_, err := execute(t, h, "list", "--status", "PENDING", "--course-id", "course-1")
		assert.ErrorContains(t, err, "exactly one")
		_, err = execute(t, h, "list")
		assert.ErrorContains(t, err, "exactly one")
		assert.Zero(t, h.connected)
	})
}

func TestAnalytics(t *testing.T) {
	h := newHarness()
	h.service.On("CourseAnalytics", mock.Anything, "course-1").
		Return(&domain.PaymentAnalytics{TotalPayments: 3}, nil)
	h.service.On("InstructorEarnings", mock.Anything, "instructor-1").
		Return(&domain.PaymentAnalytics{TotalPayments: 7}, nil)

	_, err := execute(t, h, "analytics", "--course-id", "course-1")
	require.NoError(t, err)
	_, err = execute(t, h, "analytics", "--instructor-id", "instructor-1")
	require.NoError(t, err)
	h.service.AssertExpectations(t)

	_, err = execute(t, h, "analytics")
	assert.ErrorContains(t, err, "exactly one")
}

func TestToken(t *testing.T) {
	secret := strings.Repeat("t", auth.MinSecretLength)
	t.Setenv("JWT_SECRET", secret)

	h := newHarness()
	out, err := execute(t, h, "token", "--user-id", "admin-7", "--email", "ops@example.com", "--role", "ADMIN")
	require.NoError(t, err)

	manager, err := auth.NewJWTManager(secret, "course-platform", time.Hour)
	require.NoError(t, err)
	identity, err := manager.Resolve(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "admin-7", identity.ID)
	assert.Equal(t, domain.RoleAdmin, identity.Role)

	_, err = execute(t, h, "token", "--user-id", "x", "--email", "x@example.com", "--role", "ROOT")
	assert.ErrorContains(t, err, "unknown role")
}
