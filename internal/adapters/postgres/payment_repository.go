package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
)

const paymentColumns = `id::text, transaction_reference, learner_id::text, course_id::text,
	amount, currency, status, gateway_transaction_id, gateway_status, payment_method,
	payment_date, created_at, updated_at`

const (
	insertPaymentSQL = `INSERT INTO payments (
		id, transaction_reference, learner_id, course_id, amount, currency, status,
		gateway_transaction_id, gateway_status, payment_method, payment_date, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	// The status guard makes the write a compare-and-swap on the prior status.
	updatePaymentStatusSQL = `UPDATE payments SET
		status = $3,
		gateway_transaction_id = COALESCE($4, gateway_transaction_id),
		gateway_status = COALESCE($5, gateway_status),
		payment_method = $6,
		payment_date = COALESCE($7, payment_date),
		updated_at = $8
	WHERE id = $1 AND status = $2`

	hasCompletedPaymentSQL = `SELECT EXISTS (
		SELECT 1 FROM payments WHERE learner_id = $1 AND course_id = $2 AND status = 'COMPLETED'
	)`

	statusTotalsSelect = `SELECT p.status, COUNT(*), COALESCE(SUM(p.amount), 0) FROM payments p`
)

// PaymentRepository implements ports.PaymentRepository with pgx
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db ports.DBPort) *PaymentRepository {
	return &PaymentRepository{pool: db.GetDB()}
}

// Create inserts a new payment
func (r *PaymentRepository) Create(ctx context.Context, db ports.DBTX, p *domain.Payment) error {
	amount, err := decimalToNumeric(p.Amount)
	if err != nil {
		return err
	}

	_, err = executor(r.pool, db).Exec(ctx, insertPaymentSQL,
		p.ID,
		p.Reference,
		p.LearnerID,
		p.CourseID,
		amount,
		p.Currency,
		string(p.Status),
		nullTextPtr(p.GatewayTxID),
		nullTextPtr(p.GatewayStatus),
		p.Method,
		nullTimestamptz(p.PaymentDate),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrorCodeConcurrentModification, "transaction reference already exists", err).
				WithDetail("reference", p.Reference)
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Payment, error) {
	return r.getOne(ctx, db, "SELECT "+paymentColumns+" FROM payments WHERE id = $1", id)
}

// GetByReference retrieves a payment by its transaction reference
func (r *PaymentRepository) GetByReference(ctx context.Context, db ports.DBTX, reference string) (*domain.Payment, error) {
	return r.getOne(ctx, db, "SELECT "+paymentColumns+" FROM payments WHERE transaction_reference = $1", reference)
}

// GetByReferenceForUpdate retrieves and row-locks a payment by reference
func (r *PaymentRepository) GetByReferenceForUpdate(ctx context.Context, tx ports.DBTX, reference string) (*domain.Payment, error) {
	return r.getOne(ctx, tx, "SELECT "+paymentColumns+" FROM payments WHERE transaction_reference = $1 FOR UPDATE", reference)
}

// GetByIDForUpdate retrieves and row-locks a payment by ID
func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.Payment, error) {
	return r.getOne(ctx, tx, "SELECT "+paymentColumns+" FROM payments WHERE id = $1 FOR UPDATE", id)
}

// UpdateStatus writes the payment's status and gateway fields if the stored
// status still equals expected
func (r *PaymentRepository) UpdateStatus(ctx context.Context, db ports.DBTX, p *domain.Payment, expected domain.PaymentStatus) error {
	tag, err := executor(r.pool, db).Exec(ctx, updatePaymentStatusSQL,
		p.ID,
		string(expected),
		string(p.Status),
		nullTextPtr(p.GatewayTxID),
		nullTextPtr(p.GatewayStatus),
		p.Method,
		nullTimestamptz(p.PaymentDate),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.WrapError(domain.ErrorCodeConcurrentModification,
			fmt.Sprintf("payment %s is no longer %s", p.ID, expected), domain.ErrConcurrentModification)
	}
	return nil
}

// HasCompletedPayment reports whether the learner already paid for the course
func (r *PaymentRepository) HasCompletedPayment(ctx context.Context, db ports.DBTX, learnerID, courseID string) (bool, error) {
	var exists bool
	if err := executor(r.pool, db).QueryRow(ctx, hasCompletedPaymentSQL, learnerID, courseID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check completed payment: %w", err)
	}
	return exists, nil
}

// ListByStatus lists payments in the given status, newest first
func (r *PaymentRepository) ListByStatus(ctx context.Context, db ports.DBTX, status domain.PaymentStatus) ([]*domain.Payment, error) {
	return r.list(ctx, db, "SELECT "+paymentColumns+" FROM payments WHERE status = $1 ORDER BY updated_at DESC", string(status))
}

// ListByCourse lists payments for a course, newest first
func (r *PaymentRepository) ListByCourse(ctx context.Context, db ports.DBTX, courseID string) ([]*domain.Payment, error) {
	return r.list(ctx, db, "SELECT "+paymentColumns+" FROM payments WHERE course_id = $1 ORDER BY updated_at DESC", courseID)
}

// ListByInstructor lists payments for every course taught by the instructor
func (r *PaymentRepository) ListByInstructor(ctx context.Context, db ports.DBTX, instructorID string) ([]*domain.Payment, error) {
	return r.list(ctx, db, `SELECT p.id::text, p.transaction_reference, p.learner_id::text, p.course_id::text,
		p.amount, p.currency, p.status, p.gateway_transaction_id, p.gateway_status, p.payment_method,
		p.payment_date, p.created_at, p.updated_at
	FROM payments p JOIN courses c ON c.id = p.course_id
	WHERE c.instructor_id = $1 ORDER BY p.updated_at DESC`, instructorID)
}

// ListByPayer returns one page of a learner's payments and the total count
func (r *PaymentRepository) ListByPayer(ctx context.Context, db ports.DBTX, learnerID string, page domain.PageRequest) ([]*domain.Payment, int64, error) {
	page = page.Normalize()
	q := executor(r.pool, db)

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM payments WHERE learner_id = $1", learnerID).Scan(&total); err != nil {
		if isMalformedID(err) {
			return []*domain.Payment{}, 0, nil
		}
		return nil, 0, fmt.Errorf("count payments by payer: %w", err)
	}

	payments, err := r.list(ctx, db, "SELECT "+paymentColumns+` FROM payments
		WHERE learner_id = $1 ORDER BY updated_at DESC, id LIMIT $2 OFFSET $3`,
		learnerID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// StatusTotalsByCourse returns per-status counts and sums for a course
func (r *PaymentRepository) StatusTotalsByCourse(ctx context.Context, db ports.DBTX, courseID string) ([]domain.StatusTotal, error) {
	return r.totals(ctx, db, statusTotalsSelect+" WHERE p.course_id = $1 GROUP BY p.status", courseID)
}

// StatusTotalsByInstructor returns per-status counts and sums across an instructor's courses
func (r *PaymentRepository) StatusTotalsByInstructor(ctx context.Context, db ports.DBTX, instructorID string) ([]domain.StatusTotal, error) {
	return r.totals(ctx, db, statusTotalsSelect+
		" JOIN courses c ON c.id = p.course_id WHERE c.instructor_id = $1 GROUP BY p.status", instructorID)
}

func (r *PaymentRepository) getOne(ctx context.Context, db ports.DBTX, sql string, arg string) (*domain.Payment, error) {
	p, err := scanPayment(executor(r.pool, db).QueryRow(ctx, sql, arg))
	if err != nil {
		if isNoMatch(err) {
			return nil, domain.WrapError(domain.ErrorCodePaymentNotFound, "payment not found", domain.ErrPaymentNotFound).
				WithDetail("lookup", arg)
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) list(ctx context.Context, db ports.DBTX, sql string, args ...interface{}) ([]*domain.Payment, error) {
	rows, err := executor(r.pool, db).Query(ctx, sql, args...)
	if err != nil {
		if isMalformedID(err) {
			return []*domain.Payment{}, nil
		}
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		if isMalformedID(err) {
			return []*domain.Payment{}, nil
		}
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

func (r *PaymentRepository) totals(ctx context.Context, db ports.DBTX, sql string, arg string) ([]domain.StatusTotal, error) {
	rows, err := executor(r.pool, db).Query(ctx, sql, arg)
	if err != nil {
		if isMalformedID(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("payment totals: %w", err)
	}
	defer rows.Close()

	var totals []domain.StatusTotal
	for rows.Next() {
		var (
			status string
			count  int64
			sum    pgtype.Numeric
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("scan payment totals: %w", err)
		}
		amount, err := pgNumericToDecimal(sum)
		if err != nil {
			return nil, err
		}
		totals = append(totals, domain.StatusTotal{
			Status: domain.PaymentStatus(status),
			Count:  int(count),
			Amount: amount,
		})
	}
	if err := rows.Err(); err != nil && !isMalformedID(err) {
		return nil, err
	}
	return totals, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p             domain.Payment
		amount        pgtype.Numeric
		status        string
		gatewayTxID   pgtype.Text
		gatewayStatus pgtype.Text
		paymentDate   pgtype.Timestamptz
	)
	err := row.Scan(
		&p.ID,
		&p.Reference,
		&p.LearnerID,
		&p.CourseID,
		&amount,
		&p.Currency,
		&status,
		&gatewayTxID,
		&gatewayStatus,
		&p.Method,
		&paymentDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Amount, err = pgNumericToDecimal(amount)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	p.GatewayTxID = textPtr(gatewayTxID)
	p.GatewayStatus = textPtr(gatewayStatus)
	p.PaymentDate = timePtr(paymentDate)
	return &p, nil
}
