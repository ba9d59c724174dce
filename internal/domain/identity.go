package domain

import "github.com/shopspring/decimal"

// Role of an authenticated caller
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

// Identity is the resolved caller of an operation
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`
}

// CanManagePayments returns true for roles allowed to act on payments they do not own
func (i Identity) CanManagePayments() bool {
	return i.Role == RoleAdmin || i.Role == RoleInstructor
}

// SystemIdentity is used by trusted internal callers such as the webhook
// receiver and the admin CLI.
var SystemIdentity = Identity{ID: "system", Name: "system", Role: RoleAdmin}

// Course is the read-only projection of a course needed for payments
type Course struct {
	Price        decimal.Decimal `json:"price"`
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	InstructorID string          `json:"instructor_id"`
}
