package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/kevin07696/course-payments/pkg/observability"
)

const (
	triggerVerify  = "verify"
	triggerWebhook = "webhook"
	triggerRefund  = "refund"
	triggerManual  = "manual"
)

// Verify reconciles the payment identified by req.Reference with the
// gateway's record of req.TransactionID.
//
// The result is non-nil alongside VERIFICATION_FAILED and ENROLLMENT_FAILED
// so callers can report the stored status.
func (s *Service) Verify(ctx context.Context, req ports.VerifyRequest) (*ports.ReconcileResult, error) {
	return s.reconcile(ctx, req.TransactionID, req.Reference, triggerVerify)
}

// HandleWebhook reconciles a gateway delivery. Deliveries are retried by the
// gateway so this must stay idempotent; the claimed status is not trusted.
func (s *Service) HandleWebhook(ctx context.Context, req ports.WebhookRequest) (*ports.ReconcileResult, error) {
	s.logger.Info("gateway webhook received",
		ports.String("event", req.Event),
		ports.String("reference", req.Reference),
		ports.String("transaction_id", req.TransactionID),
		ports.String("claimed_status", req.ClaimedStatus))

	return s.reconcile(ctx, req.TransactionID, req.Reference, triggerWebhook)
}

type reconcileOutcome struct {
	payment        *domain.Payment
	from           domain.PaymentStatus
	settled        bool
	amountMismatch bool
	reported       *ports.VerifyResult
}

func (s *Service) reconcile(ctx context.Context, transactionID, reference, trigger string) (*ports.ReconcileResult, error) {
	if err := requireID("payment_reference", reference); err != nil {
		return nil, err
	}
	if err := requireID("transaction_id", transactionID); err != nil {
		return nil, err
	}

	var (
		out    *reconcileOutcome
		result *ports.ReconcileResult
	)
	err := s.withReferenceLock(ctx, reference, func() error {
		payment, err := s.payments.GetByReference(ctx, nil, reference)
		if err != nil {
			return err
		}
		if payment.IsSettled() {
			out = &reconcileOutcome{payment: payment, from: payment.Status, settled: true}
			return nil
		}

		verified, err := s.gateway.VerifyTransaction(ctx, transactionID)
		if err != nil {
			if domain.IsOutcomeUnknown(err) {
				s.logger.Warn("gateway verification unavailable, payment left unchanged",
					ports.String("reference", reference),
					ports.String("transaction_id", transactionID),
					ports.String("status", string(payment.Status)),
					ports.Err(err))
			}
			return err
		}
		if verified.Reference != "" && verified.Reference != reference {
			s.logger.Error("gateway transaction belongs to another reference",
				ports.String("alert", "reference_mismatch"),
				ports.String("reference", reference),
				ports.String("gateway_reference", verified.Reference),
				ports.String("transaction_id", transactionID))
			return domain.NewDomainError(domain.ErrorCodeVerificationFailed,
				"gateway transaction does not belong to this payment").
				WithDetail("reference", reference).
				WithDetail("transaction_id", transactionID)
		}

		out, err = s.applyVerification(ctx, reference, transactionID, verified)
		return err
	})
	if err != nil {
		return nil, err
	}

	result = &ports.ReconcileResult{
		Payment:          out.payment,
		AlreadyCompleted: out.settled && out.payment.IsCompleted(),
		AlreadySettled:   out.settled,
	}
	if !out.settled {
		s.recordTransition(ctx, out.from, out.payment, trigger)
	}

	if out.amountMismatch {
		observability.RecordAmountMismatch()
		s.logger.Error("gateway amount does not match payment amount",
			ports.String("alert", "amount_mismatch"),
			ports.String("payment_id", out.payment.ID),
			ports.String("reference", reference),
			ports.String("transaction_id", transactionID),
			ports.String("expected_amount", out.payment.Amount.String()),
			ports.String("expected_currency", out.payment.Currency),
			ports.String("reported_amount", out.reported.Amount.String()),
			ports.String("reported_currency", out.reported.Currency),
			ports.String("gateway_status", out.reported.Status))
		return result, domain.WrapError(domain.ErrorCodeVerificationFailed,
			"gateway amount does not match payment amount", domain.ErrAmountMismatch).
			WithDetail("expected", out.payment.Amount.String()).
			WithDetail("reported", out.reported.Amount.String())
	}

	if out.payment.IsCompleted() {
		enrollment, err := s.enroll(ctx, out.payment)
		if err != nil {
			return result, err
		}
		result.Enrollment = enrollment
	}

	if out.settled {
		s.logger.Debug("payment already settled, skipping gateway verification",
			ports.String("reference", reference),
			ports.String("status", string(out.payment.Status)),
			ports.String("trigger", trigger))
	}
	return result, nil
}

// applyVerification writes the gateway's verdict under a row lock. A
// concurrent verifier that completed the payment first wins.
func (s *Service) applyVerification(ctx context.Context, reference, transactionID string, verified *ports.VerifyResult) (*reconcileOutcome, error) {
	var out *reconcileOutcome
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.payments.GetByReferenceForUpdate(ctx, tx, reference)
		if err != nil {
			return err
		}
		if current.IsSettled() {
			out = &reconcileOutcome{payment: current, from: current.Status, settled: true}
			return nil
		}

		next := current.Clone()
		next.GatewayTxID = strPtr(transactionID)
		if verified.TransactionID != "" {
			next.GatewayTxID = strPtr(verified.TransactionID)
		}
		next.GatewayStatus = strPtr(verified.Status)
		if verified.PaymentType != "" {
			next.Method = verified.PaymentType
		}

		mismatch := !amountsAgree(current, verified)
		if mismatch && !domain.CanTransition(current.Status, domain.PaymentStatusFailed) {
			// Still reported as a mismatch; the stored status is left alone.
			out = &reconcileOutcome{
				payment:        current,
				from:           current.Status,
				amountMismatch: true,
				reported:       verified,
			}
			return nil
		}
		target, recognized := domain.MapGatewayStatus(verified.Status)
		if mismatch {
			target = domain.PaymentStatusFailed
		} else if !recognized {
			s.logger.Warn("unrecognised gateway status, payment stays pending",
				ports.String("reference", reference),
				ports.String("gateway_status", verified.Status))
			target = current.Status
		}

		if err := next.Transition(target, s.now()); err != nil {
			s.logger.Error("gateway outcome is not a valid transition",
				ports.String("reference", reference),
				ports.String("from", string(current.Status)),
				ports.String("to", string(target)),
				ports.String("gateway_status", verified.Status),
				ports.Err(err))
			return err
		}

		if err := s.payments.UpdateStatus(ctx, tx, next, current.Status); err != nil {
			return err
		}
		out = &reconcileOutcome{
			payment:        next,
			from:           current.Status,
			amountMismatch: mismatch,
			reported:       verified,
		}
		return nil
	})
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, fmt.Errorf("apply verification for %s: %w", reference, err)
	}
	return out, nil
}

// amountsAgree compares amount within tolerance and, when the gateway
// reports one, the currency
func amountsAgree(p *domain.Payment, v *ports.VerifyResult) bool {
	if v.Currency != "" && !strings.EqualFold(v.Currency, p.Currency) {
		return false
	}
	return domain.AmountsMatch(p.Amount, v.Amount)
}
