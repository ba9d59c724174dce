package flutterwave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	pkghttp "github.com/kevin07696/course-payments/pkg/http"
	"github.com/kevin07696/course-payments/pkg/observability"
	"github.com/kevin07696/course-payments/pkg/resilience"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// PaymentOptions lists the checkout methods offered to learners
	PaymentOptions = "card,mobilemoney,ussd,bank_transfer"

	responseStatusSuccess = "success"
	maxErrorBodyBytes     = 2048
)

// Config contains configuration for the Flutterwave gateway client
type Config struct {
	// BaseURL is the API root, e.g. https://api.flutterwave.com/v3
	BaseURL   string
	SecretKey string

	// Timeouts.GatewayAttempt bounds a single HTTP round-trip
	Timeouts *resilience.TimeoutConfig

	// MaxRetries applies to create and verify. Refunds are never retried
	// because a lost response may still have moved money.
	MaxRetries int

	Backoff        resilience.BackoffStrategy
	CircuitBreaker resilience.CircuitBreakerConfig
}

// DefaultConfig returns production defaults for the given credentials
func DefaultConfig(baseURL, secretKey string) *Config {
	return &Config{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		SecretKey:      secretKey,
		Timeouts:       resilience.DefaultTimeoutConfig(),
		MaxRetries:     2,
		Backoff:        resilience.GatewayBackoff(),
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
	}
}

// Client implements ports.PaymentGateway against the Flutterwave v3 API
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	breaker    *resilience.CircuitBreaker
	backoff    resilience.BackoffStrategy
}

// NewClient creates a gateway client. A nil httpClient gets a pooled client
// tuned for a single upstream host.
func NewClient(config *Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if config.Timeouts == nil {
		config.Timeouts = resilience.DefaultTimeoutConfig()
	}
	if httpClient == nil {
		httpClient = pkghttp.NewHTTPClient(pkghttp.GatewayClientConfig(), config.Timeouts.GatewayAttempt)
	}

	breakerCfg := config.CircuitBreaker
	breakerCfg.IsFailure = countsAgainstCircuit
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		logger.Warn("Gateway circuit breaker changed state",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		observability.SetGatewayCircuitState(int(to))
	}

	backoff := config.Backoff
	if backoff == nil {
		backoff = resilience.GatewayBackoff()
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		breaker:    resilience.NewCircuitBreaker(breakerCfg),
		backoff:    backoff,
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type createPaymentBody struct {
	Meta           map[string]string `json:"meta,omitempty"`
	Customer       customerBody      `json:"customer"`
	Customizations customizations    `json:"customizations"`
	Amount         decimal.Decimal   `json:"amount"`
	TxRef          string            `json:"tx_ref"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url"`
	PaymentOptions string            `json:"payment_options"`
}

type customerBody struct {
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phonenumber,omitempty"`
}

type customizations struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type verifyData struct {
	ID          json.Number     `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	TxRef       string          `json:"tx_ref"`
	Status      string          `json:"status"`
	Currency    string          `json:"currency"`
	PaymentType string          `json:"payment_type"`
}

type refundBody struct {
	Amount   decimal.Decimal `json:"amount"`
	Comments string          `json:"comments,omitempty"`
}

type refundData struct {
	ID     json.Number `json:"id"`
	Status string      `json:"status"`
}

// CreatePayment opens a hosted checkout and returns its link
func (c *Client) CreatePayment(ctx context.Context, req *ports.CreatePaymentRequest) (*ports.CreatePaymentResult, error) {
	body := createPaymentBody{
		TxRef:          req.Reference,
		Amount:         req.Amount,
		Currency:       req.Currency,
		RedirectURL:    req.RedirectURL,
		PaymentOptions: PaymentOptions,
		Meta:           req.Meta,
		Customer: customerBody{
			Email:       req.Customer.Email,
			Name:        req.Customer.Name,
			PhoneNumber: req.Customer.Phone,
		},
		Customizations: customizations{
			Title:       req.Title,
			Description: req.Description,
		},
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := c.do(ctx, "create", http.MethodPost, "/payments", body, &data, c.config.MaxRetries); err != nil {
		return nil, err
	}
	if data.Link == "" {
		return nil, domain.WrapError(domain.ErrorCodeGatewayError, "gateway returned no payment link", domain.ErrGatewayError)
	}

	c.logger.Info("Gateway payment link created", zap.String("tx_ref", req.Reference))
	return &ports.CreatePaymentResult{Link: data.Link}, nil
}

// VerifyTransaction fetches the gateway's own record of a transaction
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*ports.VerifyResult, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, domain.Validationf("transaction_id", "transaction id is required")
	}

	var data verifyData
	path := "/transactions/" + url.PathEscape(transactionID) + "/verify"
	if err := c.do(ctx, "verify", http.MethodGet, path, nil, &data, c.config.MaxRetries); err != nil {
		return nil, err
	}

	return &ports.VerifyResult{
		TransactionID: data.ID.String(),
		Reference:     data.TxRef,
		Status:        data.Status,
		Amount:        data.Amount,
		Currency:      data.Currency,
		PaymentType:   data.PaymentType,
	}, nil
}

// Refund asks the gateway to return the full amount of a transaction
func (c *Client) Refund(ctx context.Context, req *ports.RefundRequest) (*ports.RefundResult, error) {
	var data refundData
	path := "/transactions/" + url.PathEscape(req.TransactionID) + "/refund"
	body := refundBody{Amount: req.Amount, Comments: req.Reason}
	if err := c.do(ctx, "refund", http.MethodPost, path, body, &data, 0); err != nil {
		var rejected *rejectedError
		if errors.As(err, &rejected) {
			return nil, domain.WrapError(domain.ErrorCodeRefundFailed,
				"gateway rejected refund: "+rejected.message, domain.ErrRefundFailed).
				WithDetail("gateway_status", rejected.status).
				WithDetail("gateway_message", rejected.message).
				WithDetail("http_status", rejected.code)
		}
		return nil, err
	}

	return &ports.RefundResult{RefundID: data.ID.String(), Status: data.Status}, nil
}

// do sends one logical request through the circuit breaker, retrying
// transient failures, and decodes the envelope's data into out
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}, maxRetries int) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
	}

	start := time.Now()
	err := c.breaker.Call(func() error {
		return resilience.Retry(ctx, maxRetries+1, c.backoff, isRetryable, func(attempt int) error {
			if attempt > 0 {
				c.logger.Warn("Retrying gateway request",
					zap.String("operation", operation),
					zap.Int("attempt", attempt+1),
				)
			}
			return c.attempt(ctx, method, path, payload, out)
		})
	})

	outcome := "success"
	if err != nil {
		err = c.translate(operation, err)
		outcome = "error"
		if domain.IsDomainError(err, domain.ErrorCodeGatewayTimeout) {
			outcome = "timeout"
		}
		c.logger.Error("Gateway request failed",
			zap.String("operation", operation),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	observability.RecordGatewayRequest(operation, outcome, time.Since(start).Seconds())
	return err
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	attemptCtx, cancel := c.config.Timeouts.GatewayAttemptContext(ctx)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return &permanentError{err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests &&
			decodeErr == nil && env.Status != "" {
			return &rejectedError{code: resp.StatusCode, status: env.Status, message: env.Message}
		}
		return &statusError{code: resp.StatusCode, body: truncate(raw)}
	}

	if decodeErr != nil {
		return &permanentError{err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if !strings.EqualFold(env.Status, responseStatusSuccess) {
		return &rejectedError{code: resp.StatusCode, status: env.Status, message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &permanentError{err: fmt.Errorf("decode response data: %w", err)}
		}
	}
	return nil
}

// translate maps transport errors onto the gateway error taxonomy
func (c *Client) translate(operation string, err error) error {
	msg := operation + " request failed"
	switch {
	case isTimeout(err):
		return domain.WrapError(domain.ErrorCodeGatewayTimeout, msg+": outcome unknown", err)
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return domain.WrapError(domain.ErrorCodeGatewayError, msg+": gateway temporarily unavailable", err)
	default:
		return domain.WrapError(domain.ErrorCodeGatewayError, msg, err)
	}
}

type statusError struct {
	body string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway returned HTTP %d: %s", e.code, e.body)
}

// rejectedError is a well-formed answer in which the gateway declined the
// request. The gateway did not act, so the outcome is known.
type rejectedError struct {
	status  string
	message string
	code    int
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("gateway responded %q (HTTP %d): %s", e.status, e.code, e.message)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryable(err error) bool {
	var perm *permanentError
	var rejected *rejectedError
	if errors.As(err, &perm) || errors.As(err, &rejected) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// countsAgainstCircuit ignores client-side rejections so a run of declined
// requests does not take the gateway offline for everyone
func countsAgainstCircuit(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	var perm *permanentError
	var rejected *rejectedError
	return !errors.As(err, &perm) && !errors.As(err, &rejected)
}

func truncate(b []byte) string {
	if len(b) > maxErrorBodyBytes {
		b = b[:maxErrorBodyBytes]
	}
	return string(b)
}
