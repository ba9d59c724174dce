package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
)

// Catalog reads the course and learner projections owned by the platform.
// It implements ports.CourseCatalog and ports.LearnerDirectory.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog creates a read-only catalog over the platform tables
func NewCatalog(db ports.DBPort) *Catalog {
	return &Catalog{pool: db.GetDB()}
}

// GetCourse returns the price, name and instructor of a course
func (c *Catalog) GetCourse(ctx context.Context, courseID string) (*domain.Course, error) {
	var (
		course domain.Course
		price  pgtype.Numeric
	)
	err := c.pool.QueryRow(ctx,
		`SELECT id::text, name, price, instructor_id::text FROM courses WHERE id = $1`, courseID,
	).Scan(&course.ID, &course.Name, &price, &course.InstructorID)
	if err != nil {
		if isNoMatch(err) {
			return nil, domain.WrapError(domain.ErrorCodeCourseNotFound, "course not found", domain.ErrCourseNotFound).
				WithDetail("course_id", courseID)
		}
		return nil, fmt.Errorf("get course: %w", err)
	}

	course.Price, err = pgNumericToDecimal(price)
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetLearner returns the contact data of a user
func (c *Catalog) GetLearner(ctx context.Context, learnerID string) (*domain.Identity, error) {
	var (
		id                        domain.Identity
		firstName, lastName, role string
		phone                     pgtype.Text
	)
	err := c.pool.QueryRow(ctx,
		`SELECT id::text, email, first_name, last_name, phone, role FROM users WHERE id = $1`, learnerID,
	).Scan(&id.ID, &id.Email, &firstName, &lastName, &phone, &role)
	if err != nil {
		if isNoMatch(err) {
			return nil, domain.WrapError(domain.ErrorCodeLearnerNotFound, "learner not found", domain.ErrLearnerNotFound).
				WithDetail("learner_id", learnerID)
		}
		return nil, fmt.Errorf("get learner: %w", err)
	}

	id.Name = strings.TrimSpace(firstName + " " + lastName)
	id.Phone = phone.String
	id.Role = domain.Role(strings.ToUpper(role))
	return &id, nil
}
