package mocks

import (
	"context"

	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockPaymentService mocks ports.PaymentService
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) InitiatePayment(ctx context.Context, req ports.InitiatePaymentRequest) (*ports.InitiatePaymentResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ports.InitiatePaymentResult)
	return res, args.Error(1)
}

func (m *MockPaymentService) Verify(ctx context.Context, req ports.VerifyRequest) (*ports.ReconcileResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ports.ReconcileResult)
	return res, args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, req ports.WebhookRequest) (*ports.ReconcileResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*ports.ReconcileResult)
	return res, args.Error(1)
}

func (m *MockPaymentService) RequestRefund(ctx context.Context, req ports.RefundPaymentRequest) (*domain.Payment, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*domain.Payment)
	return res, args.Error(1)
}

func (m *MockPaymentService) UpdatePaymentStatus(ctx context.Context, req ports.UpdateStatusRequest) (*domain.Payment, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*domain.Payment)
	return res, args.Error(1)
}

func (m *MockPaymentService) GetByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	args := m.Called(ctx, paymentID)
	res, _ := args.Get(0).(*domain.Payment)
	return res, args.Error(1)
}

func (m *MockPaymentService) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	args := m.Called(ctx, reference)
	res, _ := args.Get(0).(*domain.Payment)
	return res, args.Error(1)
}

func (m *MockPaymentService) ListByStatus(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error) {
	args := m.Called(ctx, status)
	res, _ := args.Get(0).([]*domain.Payment)
	return res, args.Error(1)
}

func (m *MockPaymentService) ListByCourse(ctx context.Context, courseID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, courseID)
	res, _ := args.Get(0).([]*domain.Payment)
	return res, args.Error(1)
}

func (m *MockPaymentService) ListByInstructor(ctx context.Context, instructorID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, instructorID)
	res, _ := args.Get(0).([]*domain.Payment)
	return res, args.Error(1)
}

func (m *MockPaymentService) ListByPayer(ctx context.Context, learnerID string, page domain.PageRequest) (*domain.PaymentPage, error) {
	args := m.Called(ctx, learnerID, page)
	res, _ := args.Get(0).(*domain.PaymentPage)
	return res, args.Error(1)
}

func (m *MockPaymentService) HasPaid(ctx context.Context, learnerID, courseID string) (bool, error) {
	args := m.Called(ctx, learnerID, courseID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentService) CourseAnalytics(ctx context.Context, courseID string) (*domain.PaymentAnalytics, error) {
	args := m.Called(ctx, courseID)
	res, _ := args.Get(0).(*domain.PaymentAnalytics)
	return res, args.Error(1)
}

func (m *MockPaymentService) InstructorEarnings(ctx context.Context, instructorID string) (*domain.PaymentAnalytics, error) {
	args := m.Called(ctx, instructorID)
	res, _ := args.Get(0).(*domain.PaymentAnalytics)
	return res, args.Error(1)
}

var _ ports.PaymentService = (*MockPaymentService)(nil)
