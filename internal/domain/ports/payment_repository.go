package ports

import (
	"context"

	"github.com/kevin07696/course-payments/internal/domain"
)

// PaymentRepository persists payments. Every method takes the executor to run
// on so callers control transaction boundaries; nil means the pool.
type PaymentRepository interface {
	// Create inserts a new payment. The reference must be unique.
	Create(ctx context.Context, db DBTX, payment *domain.Payment) error

	GetByID(ctx context.Context, db DBTX, id string) (*domain.Payment, error)
	GetByReference(ctx context.Context, db DBTX, reference string) (*domain.Payment, error)

	// GetByReferenceForUpdate and GetByIDForUpdate lock the row until the
	// surrounding transaction ends. They must be called with a pgx.Tx.
	GetByReferenceForUpdate(ctx context.Context, tx DBTX, reference string) (*domain.Payment, error)
	GetByIDForUpdate(ctx context.Context, tx DBTX, id string) (*domain.Payment, error)

	// UpdateStatus writes status and gateway fields only if the stored status
	// still equals expected. Returns domain.ErrConcurrentModification otherwise.
	UpdateStatus(ctx context.Context, db DBTX, payment *domain.Payment, expected domain.PaymentStatus) error

	// HasCompletedPayment reports whether learnerID already paid for courseID
	HasCompletedPayment(ctx context.Context, db DBTX, learnerID, courseID string) (bool, error)

	ListByStatus(ctx context.Context, db DBTX, status domain.PaymentStatus) ([]*domain.Payment, error)
	ListByCourse(ctx context.Context, db DBTX, courseID string) ([]*domain.Payment, error)
	ListByInstructor(ctx context.Context, db DBTX, instructorID string) ([]*domain.Payment, error)

	// ListByPayer returns one page ordered by most recent status change first
	ListByPayer(ctx context.Context, db DBTX, learnerID string, page domain.PageRequest) ([]*domain.Payment, int64, error)

	StatusTotalsByCourse(ctx context.Context, db DBTX, courseID string) ([]domain.StatusTotal, error)
	StatusTotalsByInstructor(ctx context.Context, db DBTX, instructorID string) ([]domain.StatusTotal, error)
}
