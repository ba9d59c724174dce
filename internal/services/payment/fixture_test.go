package payment_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kevin07696/course-payments/internal/adapters/locking"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/kevin07696/course-payments/internal/services/payment"
	"github.com/kevin07696/course-payments/pkg/resilience"
	"github.com/kevin07696/course-payments/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	learnerID    = "3f2b9c1a-7d4e-4b8a-9c2f-1e5d6a7b8c9d"
	otherLearner = "9a8b7c6d-0000-4000-8000-000000000001"
	courseID     = "c0a80101-0000-4000-8000-000000000001"
	instructorID = "1d2e3f40-0000-4000-8000-000000000002"
)

var (
	student    = domain.Identity{ID: learnerID, Email: "ada@example.com", Name: "Ada Lovelace", Role: domain.RoleStudent}
	intruder   = domain.Identity{ID: otherLearner, Email: "eve@example.com", Role: domain.RoleStudent}
	admin      = domain.Identity{ID: "admin-1", Role: domain.RoleAdmin}
	instructor = domain.Identity{ID: instructorID, Role: domain.RoleInstructor}
)

type fixture struct {
	svc         *payment.Service
	db          *mocks.MemoryDB
	payments    *mocks.MemoryPaymentRepository
	enrollments *mocks.MemoryEnrollmentRepository
	gateway     *mocks.MockPaymentGateway
	catalog     *mocks.MemoryCatalog
	events      *mocks.RecordingPublisher
	logger      *mocks.MockLogger

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:          &mocks.MemoryDB{},
		payments:    mocks.NewMemoryPaymentRepository(),
		enrollments: mocks.NewMemoryEnrollmentRepository(),
		gateway:     mocks.NewMockPaymentGateway(),
		catalog:     mocks.NewMemoryCatalog(),
		events:      &mocks.RecordingPublisher{},
		logger:      mocks.NewMockLogger(),
		now:         time.UnixMilli(1700000000123).UTC(),
	}

	f.catalog.Courses[courseID] = &domain.Course{
		ID:           courseID,
		Name:         "Intro to Go",
		Price:        decimal.RequireFromString("50.00"),
		InstructorID: instructorID,
	}
	f.catalog.Learners[learnerID] = &domain.Identity{
		ID: learnerID, Email: student.Email, Name: student.Name, Phone: "+250788000000", Role: domain.RoleStudent,
	}
	f.catalog.Learners[otherLearner] = &domain.Identity{ID: otherLearner, Email: intruder.Email, Role: domain.RoleStudent}
	f.payments.SetInstructor(courseID, instructorID)

	f.svc = payment.NewService(payment.Dependencies{
		DB:          f.db,
		Payments:    f.payments,
		Enrollments: f.enrollments,
		Gateway:     f.gateway,
		Courses:     f.catalog,
		Learners:    f.catalog,
		Locker:      locking.NewKeyedMutex(),
		Events:      f.events,
		Logger:      f.logger,
	}, payment.Config{
		Now:           f.clock,
		Timeouts:      resilience.TestTimeoutConfig(),
		PublicBaseURL: "https://api.example.com/",
	})
	return f
}

// clock advances one millisecond per read so references stay unique
func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(time.Millisecond)
	return f.now
}

// seedPayment stores a payment for the default learner and course
func (f *fixture) seedPayment(t *testing.T, status domain.PaymentStatus) *domain.Payment {
	t.Helper()
	now := f.clock()
	p := &domain.Payment{
		ID:        fmt.Sprintf("pay-%d", now.UnixNano()),
		Reference: domain.NewReference("IGA", now, learnerID),
		LearnerID: learnerID,
		CourseID:  courseID,
		Amount:    decimal.RequireFromString("50.00"),
		Currency:  "RWF",
		Status:    status,
		Method:    domain.DefaultPaymentMethod,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == domain.PaymentStatusCompleted || status == domain.PaymentStatusRefunded {
		txID := "tx-" + p.ID
		p.GatewayTxID = &txID
		p.PaymentDate = &now
	}
	f.payments.Put(p)
	return p
}

// initiate runs InitiatePayment for the default learner and course
func (f *fixture) initiate(t *testing.T) *domain.Payment {
	t.Helper()
	res, err := f.svc.InitiatePayment(context.Background(), ports.InitiatePaymentRequest{Learner: student, CourseID: courseID})
	require.NoError(t, err)
	return res.Payment
}

func (f *fixture) stored(t *testing.T, id string) *domain.Payment {
	t.Helper()
	p, err := f.payments.GetByID(context.Background(), nil, id)
	require.NoError(t, err)
	return p
}

func (f *fixture) verifySuccessful(amount string) {
	f.gateway.SetVerifyResponse(&ports.VerifyResult{
		TransactionID: "4975363",
		Status:        "successful",
		Amount:        decimal.RequireFromString(amount),
		Currency:      "RWF",
		PaymentType:   "mobilemoneyrw",
	}, nil)
}

func (f *fixture) verify(ref string) (*ports.ReconcileResult, error) {
	return f.svc.Verify(context.Background(), ports.VerifyRequest{TransactionID: "4975363", Reference: ref})
}
