package mocks

import (
	"context"
	"sync"

	"github.com/kevin07696/course-payments/internal/domain/ports"
)

// MockPaymentGateway is a configurable ports.PaymentGateway for testing
type MockPaymentGateway struct {
	mu sync.Mutex

	createResponse *ports.CreatePaymentResult
	createError    error
	verifyResponse *ports.VerifyResult
	verifyError    error
	refundResponse *ports.RefundResult
	refundError    error

	// OnVerify, when set, runs inside VerifyTransaction before it returns
	OnVerify func(transactionID string)

	CreateCalls int
	VerifyCalls int
	RefundCalls int

	LastCreateReq *ports.CreatePaymentRequest
	LastVerifyID  string
	LastRefundReq *ports.RefundRequest
}

// NewMockPaymentGateway returns a gateway whose create and refund calls succeed
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{
		createResponse: &ports.CreatePaymentResult{Link: "https://checkout.example.com/pay/test"},
		refundResponse: &ports.RefundResult{RefundID: "rf-1", Status: "completed"},
	}
}

// SetCreateResponse configures CreatePayment
func (m *MockPaymentGateway) SetCreateResponse(resp *ports.CreatePaymentResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createResponse, m.createError = resp, err
}

// SetVerifyResponse configures VerifyTransaction
func (m *MockPaymentGateway) SetVerifyResponse(resp *ports.VerifyResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyResponse, m.verifyError = resp, err
}

// SetRefundResponse configures Refund
func (m *MockPaymentGateway) SetRefundResponse(resp *ports.RefundResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refundResponse, m.refundError = resp, err
}

// CreatePayment records the request and returns the configured response
func (m *MockPaymentGateway) CreatePayment(_ context.Context, req *ports.CreatePaymentRequest) (*ports.CreatePaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	m.LastCreateReq = req
	if m.createError != nil {
		return nil, m.createError
	}
	return m.createResponse, nil
}

// VerifyTransaction records the call and returns the configured response
func (m *MockPaymentGateway) VerifyTransaction(_ context.Context, transactionID string) (*ports.VerifyResult, error) {
	m.mu.Lock()
	m.VerifyCalls++
	m.LastVerifyID = transactionID
	hook := m.OnVerify
	resp, err := m.verifyResponse, m.verifyError
	m.mu.Unlock()

	if hook != nil {
		hook(transactionID)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &ports.VerifyResult{TransactionID: transactionID}, nil
	}
	c := *resp
	return &c, nil
}

// Refund records the request and returns the configured response
func (m *MockPaymentGateway) Refund(_ context.Context, req *ports.RefundRequest) (*ports.RefundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefundCalls++
	m.LastRefundReq = req
	if m.refundError != nil {
		return nil, m.refundError
	}
	return m.refundResponse, nil
}

// Calls returns the create, verify and refund call counts
func (m *MockPaymentGateway) Calls() (create, verify, refund int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCalls, m.VerifyCalls, m.RefundCalls
}
