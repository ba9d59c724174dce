package payment

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
)

// UpdatePaymentStatus applies a manual correction by an administrator or
// instructor. The transition table still applies. Moving into COMPLETED
// enrolls the learner; moving into REFUNDED records an out-of-band refund
// and removes the enrollment.
func (s *Service) UpdatePaymentStatus(ctx context.Context, req ports.UpdateStatusRequest) (*domain.Payment, error) {
	if err := requireID("payment_id", req.PaymentID); err != nil {
		return nil, err
	}
	if !req.Actor.CanManagePayments() {
		return nil, domain.ErrUnauthorized
	}
	if !req.Status.IsValid() {
		return nil, domain.Validationf("status", "unknown payment status %q", req.Status)
	}

	payment, err := s.payments.GetByID(ctx, nil, req.PaymentID)
	if err != nil {
		return nil, err
	}

	var (
		updated *domain.Payment
		from    domain.PaymentStatus
	)
	err = s.withReferenceLock(ctx, payment.Reference, func() error {
		return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			current, err := s.payments.GetByIDForUpdate(ctx, tx, req.PaymentID)
			if err != nil {
				return err
			}
			from = current.Status
			if current.Status == req.Status {
				updated = current
				return nil
			}

			next := current.Clone()
			if err := next.Transition(req.Status, s.now()); err != nil {
				s.logger.Error("rejected manual status change",
					ports.String("payment_id", current.ID),
					ports.String("actor_id", req.Actor.ID),
					ports.String("from", string(current.Status)),
					ports.String("to", string(req.Status)))
				return err
			}
			if err := s.payments.UpdateStatus(ctx, tx, next, current.Status); err != nil {
				return err
			}
			updated = next
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if from == updated.Status {
		return updated, nil
	}

	s.logger.Info("payment status changed manually",
		ports.String("payment_id", updated.ID),
		ports.String("actor_id", req.Actor.ID),
		ports.String("role", string(req.Actor.Role)))
	s.recordTransition(ctx, from, updated, triggerManual)

	switch updated.Status {
	case domain.PaymentStatusCompleted:
		if _, err := s.enroll(ctx, updated); err != nil {
			return updated, err
		}
	case domain.PaymentStatusRefunded:
		s.unenroll(ctx, updated)
	}
	return updated, nil
}
