package ports

import (
	"context"

	"github.com/kevin07696/course-payments/internal/domain"
)

// IdentityResolver turns a bearer credential into a caller identity.
// Failure is domain.ErrUnauthenticated.
type IdentityResolver interface {
	Resolve(ctx context.Context, bearerToken string) (*domain.Identity, error)
}

// CourseCatalog looks up the read-only course projection.
// Failure is domain.ErrCourseNotFound.
type CourseCatalog interface {
	GetCourse(ctx context.Context, courseID string) (*domain.Course, error)
}

// LearnerDirectory looks up learner contact data.
// Failure is domain.ErrLearnerNotFound.
type LearnerDirectory interface {
	GetLearner(ctx context.Context, learnerID string) (*domain.Identity, error)
}

// ReferenceLocker serializes work on a single payment reference across
// concurrent callers. The returned release func must always be called.
type ReferenceLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// EventPublisher emits payment lifecycle events after they are committed
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PaymentEvent) error
}
