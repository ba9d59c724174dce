package payment

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"go.uber.org/zap"
)

// callbackStatusError is reported to the frontend when reconciliation fails
const callbackStatusError = "error"

// Webhook handles POST /api/public/payments/webhook. The delivery only
// tells us which transaction to look at; the outcome always comes from
// re-verifying with the gateway.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var payload webhookPayload
	if err := h.decode(w, r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.reconcileContext(r)
	defer cancel()

	result, err := h.service.HandleWebhook(ctx, ports.WebhookRequest{
		Event:         payload.Event,
		TransactionID: string(payload.Data.ID),
		Reference:     payload.Data.Reference,
		ClaimedStatus: payload.Data.Status,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:        "success",
		Reference:     result.Payment.Reference,
		PaymentStatus: result.Payment.Status,
	})
}

// Callback handles the learner's browser returning from the gateway:
// GET /api/public/payments/callback?status&tx_ref&transaction_id&payment_reference
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	reference := q.Get("payment_reference")
	if reference == "" {
		reference = q.Get("tx_ref")
	}
	transactionID := q.Get("transaction_id")
	claimed := strings.ToLower(q.Get("status"))

	if reference == "" {
		h.logger.Warn("gateway callback without a reference", zap.String("status", claimed))
		h.redirect(w, r, "", callbackStatusError)
		return
	}

	ctx, cancel := h.reconcileContext(r)
	defer cancel()

	if (claimed == domain.GatewayStatusSuccessful || claimed == "completed") && transactionID != "" {
		result, err := h.service.Verify(ctx, ports.VerifyRequest{TransactionID: transactionID, Reference: reference})
		if err != nil {
			h.logger.Error("callback verification failed",
				zap.String("reference", reference),
				zap.String("transaction_id", transactionID),
				zap.Error(err))
			h.redirect(w, r, reference, callbackStatusError)
			return
		}
		h.redirect(w, r, reference, string(result.Payment.Status))
		return
	}

	p, err := h.service.GetByReference(ctx, reference)
	if err != nil {
		h.logger.Warn("callback for unknown payment",
			zap.String("reference", reference),
			zap.Error(err))
		h.redirect(w, r, reference, callbackStatusError)
		return
	}
	h.redirect(w, r, reference, string(p.Status))
}

// Verify handles POST /api/public/payments/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req verifyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.reconcileContext(r)
	defer cancel()

	result, err := h.service.Verify(ctx, ports.VerifyRequest{TransactionID: req.TransactionID, Reference: req.Reference})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{
		Payment:          result.Payment,
		Enrollment:       result.Enrollment,
		AlreadyCompleted: result.AlreadyCompleted,
		AlreadySettled:   result.AlreadySettled,
	})
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, reference, status string) {
	params := url.Values{}
	params.Set("reference", reference)
	params.Set("status", status)
	http.Redirect(w, r, h.config.FrontendURL+"/payment/result?"+params.Encode(), http.StatusFound)
}
