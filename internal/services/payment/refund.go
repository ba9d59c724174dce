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

// RequestRefund refunds the full amount of a COMPLETED payment. Students may
// only refund their own payments.
func (s *Service) RequestRefund(ctx context.Context, req ports.RefundPaymentRequest) (*domain.Payment, error) {
	if err := requireID("payment_id", req.PaymentID); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, domain.Validationf("reason", "refund reason is required")
	}

	payment, err := s.payments.GetByID(ctx, nil, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if !req.Requester.CanManagePayments() && !payment.IsOwnedBy(req.Requester.ID) {
		s.logger.Warn("refund denied",
			ports.String("payment_id", payment.ID),
			ports.String("requester_id", req.Requester.ID),
			ports.String("role", string(req.Requester.Role)))
		return nil, domain.ErrUnauthorized
	}

	var (
		refunded *domain.Payment
		from     domain.PaymentStatus
	)
	err = s.withReferenceLock(ctx, payment.Reference, func() error {
		current, err := s.payments.GetByID(ctx, nil, payment.ID)
		if err != nil {
			return err
		}
		if current.Status != domain.PaymentStatusCompleted {
			return domain.WrapError(domain.ErrorCodeInvalidPaymentStatus,
				fmt.Sprintf("only completed payments can be refunded, payment is %s", current.Status),
				domain.ErrInvalidPaymentStatus).
				WithDetail("status", string(current.Status))
		}
		if current.GatewayTxID == nil || *current.GatewayTxID == "" {
			observability.RecordRefund("rejected")
			return domain.NewDomainError(domain.ErrorCodeRefundFailed,
				"payment has no gateway transaction to refund").
				WithDetail("payment_id", current.ID)
		}

		result, err := s.gateway.Refund(ctx, &ports.RefundRequest{
			TransactionID: *current.GatewayTxID,
			Amount:        current.Amount,
			Reason:        reason,
		})
		if err != nil {
			if domain.IsDomainError(err, domain.ErrorCodeRefundFailed) {
				observability.RecordRefund("rejected")
				s.logger.Warn("gateway rejected refund",
					ports.String("payment_id", current.ID),
					ports.String("reference", current.Reference),
					ports.Err(err))
				return err
			}
			observability.RecordRefund("error")
			s.logger.Error("gateway refund call failed, payment left completed",
				ports.String("payment_id", current.ID),
				ports.String("reference", current.Reference),
				ports.Err(err))
			return err
		}
		if !domain.IsRefundAccepted(result.Status) {
			observability.RecordRefund("rejected")
			s.logger.Warn("gateway rejected refund",
				ports.String("payment_id", current.ID),
				ports.String("reference", current.Reference),
				ports.String("gateway_status", result.Status))
			return domain.WrapError(domain.ErrorCodeRefundFailed,
				fmt.Sprintf("gateway answered %q", result.Status), domain.ErrRefundFailed).
				WithDetail("gateway_status", result.Status)
		}

		from = current.Status
		refunded, err = s.markRefunded(ctx, current.ID, result.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.RecordRefund("success")
	s.recordTransition(ctx, from, refunded, triggerRefund)
	s.logger.Info("payment refunded",
		ports.String("payment_id", refunded.ID),
		ports.String("reference", refunded.Reference),
		ports.String("requester_id", req.Requester.ID),
		ports.String("reason", reason))

	s.unenroll(ctx, refunded)
	return refunded, nil
}

// markRefunded persists COMPLETED -> REFUNDED once the gateway confirmed it
func (s *Service) markRefunded(ctx context.Context, paymentID, gatewayStatus string) (*domain.Payment, error) {
	var refunded *domain.Payment
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.payments.GetByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		next := current.Clone()
		next.GatewayStatus = strPtr(gatewayStatus)
		if err := next.Transition(domain.PaymentStatusRefunded, s.now()); err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(ctx, tx, next, current.Status); err != nil {
			return err
		}
		refunded = next
		return nil
	})
	if err != nil {
		s.logger.Error("gateway refunded but local status could not be updated",
			ports.String("alert", "refund_not_recorded"),
			ports.String("payment_id", paymentID),
			ports.Err(err))
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, fmt.Errorf("record refund for %s: %w", paymentID, err)
	}
	return refunded, nil
}
