package ports

import (
	"context"

	"github.com/kevin07696/course-payments/internal/domain"
)

// EnrollmentRepository persists enrollments keyed by (learner, course)
type EnrollmentRepository interface {
	// CreateIfAbsent inserts the enrollment unless one already exists for the
	// pair, in which case the existing row is returned with created=false.
	CreateIfAbsent(ctx context.Context, db DBTX, enrollment *domain.Enrollment) (existing *domain.Enrollment, created bool, err error)

	GetByLearnerAndCourse(ctx context.Context, db DBTX, learnerID, courseID string) (*domain.Enrollment, error)

	// DeleteByLearnerAndCourse removes the enrollment, reporting whether a row existed
	DeleteByLearnerAndCourse(ctx context.Context, db DBTX, learnerID, courseID string) (bool, error)
}
