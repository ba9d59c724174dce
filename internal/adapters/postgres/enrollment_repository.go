package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
)

const (
	enrollmentColumns = `id::text, learner_id::text, course_id::text, enrolled_at, progress`

	// ON CONFLICT keeps the insert idempotent per (learner, course).
	insertEnrollmentSQL = `INSERT INTO enrollments (id, learner_id, course_id, enrolled_at, progress)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (learner_id, course_id) DO NOTHING`

	deleteEnrollmentSQL = `DELETE FROM enrollments WHERE learner_id = $1 AND course_id = $2`
)

// EnrollmentRepository implements ports.EnrollmentRepository with pgx
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db ports.DBPort) *EnrollmentRepository {
	return &EnrollmentRepository{pool: db.GetDB()}
}

// CreateIfAbsent inserts the enrollment or returns the one already present
func (r *EnrollmentRepository) CreateIfAbsent(ctx context.Context, db ports.DBTX, e *domain.Enrollment) (*domain.Enrollment, bool, error) {
	tag, err := executor(r.pool, db).Exec(ctx, insertEnrollmentSQL,
		e.ID, e.LearnerID, e.CourseID, e.EnrolledAt, string(e.Progress))
	if err != nil {
		return nil, false, fmt.Errorf("create enrollment: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return e, true, nil
	}

	existing, err := r.GetByLearnerAndCourse(ctx, db, e.LearnerID, e.CourseID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByLearnerAndCourse retrieves the enrollment for the pair
func (r *EnrollmentRepository) GetByLearnerAndCourse(ctx context.Context, db ports.DBTX, learnerID, courseID string) (*domain.Enrollment, error) {
	var (
		e        domain.Enrollment
		progress string
	)
	err := executor(r.pool, db).QueryRow(ctx,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE learner_id = $1 AND course_id = $2",
		learnerID, courseID,
	).Scan(&e.ID, &e.LearnerID, &e.CourseID, &e.EnrolledAt, &progress)
	if err != nil {
		if isNoMatch(err) {
			return nil, domain.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	e.Progress = domain.ProgressStatus(progress)
	return &e, nil
}

// DeleteByLearnerAndCourse removes the enrollment for the pair
func (r *EnrollmentRepository) DeleteByLearnerAndCourse(ctx context.Context, db ports.DBTX, learnerID, courseID string) (bool, error) {
	tag, err := executor(r.pool, db).Exec(ctx, deleteEnrollmentSQL, learnerID, courseID)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
