package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// Customer is the payer contact data sent to the gateway
type Customer struct {
	Email string
	Name  string
	Phone string
}

// CreatePaymentRequest opens a hosted checkout for one payment
type CreatePaymentRequest struct {
	Amount      decimal.Decimal
	Meta        map[string]string
	Customer    Customer
	Reference   string
	Currency    string
	RedirectURL string
	Title       string
	Description string
}

// CreatePaymentResult carries the hosted checkout link
type CreatePaymentResult struct {
	Link string
}

// VerifyResult is the gateway's authoritative view of a transaction
type VerifyResult struct {
	Amount        decimal.Decimal
	TransactionID string
	Reference     string
	Status        string
	Currency      string
	PaymentType   string
}

// RefundRequest refunds the full amount of a transaction
type RefundRequest struct {
	Amount        decimal.Decimal
	TransactionID string
	Reason        string
}

// RefundResult is the gateway's answer to a refund
type RefundResult struct {
	RefundID string
	Status   string
}

// PaymentGateway is the outbound client to the external payment processor.
// Implementations return domain.ErrGatewayTimeout when the outcome is unknown
// and domain.ErrGatewayError for any other transport or protocol failure.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResult, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*VerifyResult, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
}
