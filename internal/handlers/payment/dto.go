package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/pkg/encoding"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 1 << 20

type initiateRequest struct {
	CourseID string `json:"course_id" validate:"required,max=64"`
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type initiateResponse struct {
	Payment      *domain.Payment `json:"payment"`
	RedirectLink string          `json:"redirect_link"`
}

type verifyRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,max=64"`
	Reference     string `json:"payment_reference" validate:"required,max=128"`
}

type reconcileResponse struct {
	Payment          *domain.Payment    `json:"payment"`
	Enrollment       *domain.Enrollment `json:"enrollment,omitempty"`
	AlreadyCompleted bool               `json:"already_completed"`
	AlreadySettled   bool               `json:"already_settled"`
}

// webhookPayload is the gateway's charge notification. Only the
// correlation fields are read; the claimed status is never trusted.
type webhookPayload struct {
	Event string      `json:"event"`
	Data  webhookData `json:"data"`
}

type webhookData struct {
	ID        gatewayID `json:"id" validate:"required,max=64"`
	Reference string    `json:"tx_ref" validate:"required,max=128"`
	Status    string    `json:"status"`
}

// gatewayID accepts a transaction id sent either as a JSON number or a string
type gatewayID string

func (g *gatewayID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*g = gatewayID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("transaction id must be a number or string: %w", err)
	}
	*g = gatewayID(s)
	return nil
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type paymentsResponse struct {
	Payments []*domain.Payment `json:"payments"`
}

type hasPaidResponse struct {
	CourseID string `json:"course_id"`
	HasPaid  bool   `json:"has_paid"`
}

type webhookResponse struct {
	Status        string               `json:"status"`
	Reference     string               `json:"payment_reference"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a bounded JSON body into dst and validates it
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validationf("body", "request body is required")
		}
		return domain.WrapError(domain.ErrorCodeValidation, "malformed JSON body", err)
	}
	return h.check(dst)
}

func (h *Handler) check(v interface{}) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.Validationf(fe.Field(), "%s failed the %q rule", fe.Field(), fe.Tag())
	}
	return domain.WrapError(domain.ErrorCodeValidation, "invalid request", err)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := encoding.EncodeJSON(v)
	if err != nil {
		http.Error(w, `{"error":"INTERNAL_ERROR","message":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
