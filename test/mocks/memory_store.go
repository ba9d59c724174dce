package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// MemoryDB satisfies ports.DBPort for service tests. Transactions run the
// callback with a nil tx; the memory repositories ignore the executor.
type MemoryDB struct {
	mu sync.Mutex
	// Commits counts callbacks that returned nil
	Commits int
}

func (m *MemoryDB) GetDB() *pgxpool.Pool { return nil }

func (m *MemoryDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if err := fn(ctx, nil); err != nil {
		return err
	}
	m.mu.Lock()
	m.Commits++
	m.mu.Unlock()
	return nil
}

func (m *MemoryDB) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// MemoryPaymentRepository is an in-memory ports.PaymentRepository with the
// same compare-and-swap semantics as the postgres implementation
type MemoryPaymentRepository struct {
	mu          sync.Mutex
	byID        map[string]*domain.Payment
	instructors map[string]string // course -> instructor

	// CreateErr, when set, is returned by the next Create call and cleared
	CreateErr error
	// UpdateErr, when set, is returned by every UpdateStatus call
	UpdateErr error
}

// NewMemoryPaymentRepository creates an empty repository
func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{
		byID:        make(map[string]*domain.Payment),
		instructors: make(map[string]string),
	}
}

// SetInstructor records which instructor owns courseID for earnings queries
func (r *MemoryPaymentRepository) SetInstructor(courseID, instructorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instructors[courseID] = instructorID
}

// Put stores p as-is, bypassing validation
func (r *MemoryPaymentRepository) Put(p *domain.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p.Clone()
}

// Count returns the number of stored payments
func (r *MemoryPaymentRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *MemoryPaymentRepository) Create(_ context.Context, _ ports.DBTX, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.CreateErr; err != nil {
		r.CreateErr = nil
		return err
	}
	for _, existing := range r.byID {
		if existing.Reference == p.Reference {
			return domain.WrapError(domain.ErrorCodeConcurrentModification, "transaction reference already exists", nil)
		}
	}
	r.byID[p.ID] = p.Clone()
	return nil
}

func (r *MemoryPaymentRepository) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		return p.Clone(), nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (r *MemoryPaymentRepository) GetByReference(_ context.Context, _ ports.DBTX, reference string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Reference == reference {
			return p.Clone(), nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (r *MemoryPaymentRepository) GetByReferenceForUpdate(ctx context.Context, tx ports.DBTX, reference string) (*domain.Payment, error) {
	return r.GetByReference(ctx, tx, reference)
}

func (r *MemoryPaymentRepository) GetByIDForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.Payment, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *MemoryPaymentRepository) UpdateStatus(_ context.Context, _ ports.DBTX, p *domain.Payment, expected domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	stored, ok := r.byID[p.ID]
	if !ok || stored.Status != expected {
		return domain.WrapError(domain.ErrorCodeConcurrentModification, "payment status changed", domain.ErrConcurrentModification)
	}
	r.byID[p.ID] = p.Clone()
	return nil
}

func (r *MemoryPaymentRepository) HasCompletedPayment(_ context.Context, _ ports.DBTX, learnerID, courseID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.LearnerID == learnerID && p.CourseID == courseID && p.Status == domain.PaymentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryPaymentRepository) ListByStatus(_ context.Context, _ ports.DBTX, status domain.PaymentStatus) ([]*domain.Payment, error) {
	return r.filter(func(p *domain.Payment) bool { return p.Status == status }), nil
}

func (r *MemoryPaymentRepository) ListByCourse(_ context.Context, _ ports.DBTX, courseID string) ([]*domain.Payment, error) {
	return r.filter(func(p *domain.Payment) bool { return p.CourseID == courseID }), nil
}

func (r *MemoryPaymentRepository) ListByInstructor(_ context.Context, _ ports.DBTX, instructorID string) ([]*domain.Payment, error) {
	return r.filter(r.ownedBy(instructorID)), nil
}

func (r *MemoryPaymentRepository) ListByPayer(_ context.Context, _ ports.DBTX, learnerID string, page domain.PageRequest) ([]*domain.Payment, int64, error) {
	all := r.filter(func(p *domain.Payment) bool { return p.LearnerID == learnerID })
	total := int64(len(all))
	start := page.Offset()
	if start >= len(all) {
		return []*domain.Payment{}, total, nil
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *MemoryPaymentRepository) StatusTotalsByCourse(_ context.Context, _ ports.DBTX, courseID string) ([]domain.StatusTotal, error) {
	return totals(r.filter(func(p *domain.Payment) bool { return p.CourseID == courseID })), nil
}

func (r *MemoryPaymentRepository) StatusTotalsByInstructor(_ context.Context, _ ports.DBTX, instructorID string) ([]domain.StatusTotal, error) {
	return totals(r.filter(r.ownedBy(instructorID))), nil
}

func (r *MemoryPaymentRepository) ownedBy(instructorID string) func(*domain.Payment) bool {
	return func(p *domain.Payment) bool { return r.instructors[p.CourseID] == instructorID }
}

// filter returns clones ordered by UpdatedAt descending
func (r *MemoryPaymentRepository) filter(keep func(*domain.Payment) bool) []*domain.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Payment{}
	for _, p := range r.byID {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func totals(payments []*domain.Payment) []domain.StatusTotal {
	byStatus := map[domain.PaymentStatus]*domain.StatusTotal{}
	for _, p := range payments {
		t, ok := byStatus[p.Status]
		if !ok {
			t = &domain.StatusTotal{Status: p.Status, Amount: decimal.Zero}
			byStatus[p.Status] = t
		}
		t.Count++
		t.Amount = t.Amount.Add(p.Amount)
	}
	out := make([]domain.StatusTotal, 0, len(byStatus))
	for _, t := range byStatus {
		out = append(out, *t)
	}
	return out
}

// MemoryEnrollmentRepository is an in-memory ports.EnrollmentRepository
type MemoryEnrollmentRepository struct {
	mu    sync.Mutex
	byKey map[string]*domain.Enrollment

	// CreateErr and DeleteErr, when set, are returned by every call
	CreateErr error
	DeleteErr error
	// Inserts counts rows actually created
	Inserts int
}

// NewMemoryEnrollmentRepository creates an empty repository
func NewMemoryEnrollmentRepository() *MemoryEnrollmentRepository {
	return &MemoryEnrollmentRepository{byKey: make(map[string]*domain.Enrollment)}
}

func enrollmentKey(learnerID, courseID string) string {
	return learnerID + "/" + courseID
}

// Count returns the number of stored enrollments
func (r *MemoryEnrollmentRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}

func (r *MemoryEnrollmentRepository) CreateIfAbsent(_ context.Context, _ ports.DBTX, e *domain.Enrollment) (*domain.Enrollment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return nil, false, r.CreateErr
	}
	key := enrollmentKey(e.LearnerID, e.CourseID)
	if existing, ok := r.byKey[key]; ok {
		c := *existing
		return &c, false, nil
	}
	c := *e
	r.byKey[key] = &c
	r.Inserts++
	out := c
	return &out, true, nil
}

func (r *MemoryEnrollmentRepository) GetByLearnerAndCourse(_ context.Context, _ ports.DBTX, learnerID, courseID string) (*domain.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byKey[enrollmentKey(learnerID, courseID)]; ok {
		c := *e
		return &c, nil
	}
	return nil, domain.ErrEnrollmentNotFound
}

func (r *MemoryEnrollmentRepository) DeleteByLearnerAndCourse(_ context.Context, _ ports.DBTX, learnerID, courseID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DeleteErr != nil {
		return false, r.DeleteErr
	}
	key := enrollmentKey(learnerID, courseID)
	_, ok := r.byKey[key]
	delete(r.byKey, key)
	return ok, nil
}

// MemoryCatalog serves courses and learners from maps
type MemoryCatalog struct {
	Courses  map[string]*domain.Course
	Learners map[string]*domain.Identity
}

// NewMemoryCatalog creates an empty catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		Courses:  make(map[string]*domain.Course),
		Learners: make(map[string]*domain.Identity),
	}
}

func (c *MemoryCatalog) GetCourse(_ context.Context, courseID string) (*domain.Course, error) {
	if course, ok := c.Courses[courseID]; ok {
		cp := *course
		return &cp, nil
	}
	return nil, domain.ErrCourseNotFound
}

func (c *MemoryCatalog) GetLearner(_ context.Context, learnerID string) (*domain.Identity, error) {
	if learner, ok := c.Learners[learnerID]; ok {
		cp := *learner
		return &cp, nil
	}
	return nil, domain.ErrLearnerNotFound
}

// RecordingPublisher keeps every published event
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []domain.PaymentEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, event domain.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return p.Err
}

// Types returns the published event types in order
func (p *RecordingPublisher) Types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.Type
	}
	return out
}
