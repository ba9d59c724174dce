package payment

import (
	"net/http"
	"strconv"

	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
)

// Initiate handles POST /api/v1/student/payments/initiate
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request, caller domain.Identity, _ map[string]string) {
	if err := requireRole(caller, domain.RoleStudent); err != nil {
		h.writeError(w, r, err)
		return
	}
	var req initiateRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.InitiatePayment(r.Context(), ports.InitiatePaymentRequest{
		Learner:  caller,
		CourseID: req.CourseID,
		Currency: req.Currency,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, initiateResponse{Payment: result.Payment, RedirectLink: result.RedirectLink})
}

// History handles GET /api/v1/student/payments/history?page&size
func (h *Handler) History(w http.ResponseWriter, r *http.Request, caller domain.Identity, _ map[string]string) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.ListByPayer(r.Context(), caller.ID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckPaid handles GET /api/v1/student/payments/check/{course_id}
func (h *Handler) CheckPaid(w http.ResponseWriter, r *http.Request, caller domain.Identity, params map[string]string) {
	courseID := params["course_id"]
	paid, err := h.service.HasPaid(r.Context(), caller.ID, courseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hasPaidResponse{CourseID: courseID, HasPaid: paid})
}

// Refund handles POST /api/v1/payments/{id}/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request, caller domain.Identity, params map[string]string) {
	var req refundRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	refunded, err := h.service.RequestRefund(r.Context(), ports.RefundPaymentRequest{
		Requester: caller,
		PaymentID: params["id"],
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refunded)
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request, caller domain.Identity, params map[string]string) {
	p, err := h.service.GetByID(r.Context(), params["id"])
	if err == nil {
		err = visibleTo(caller, p)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetByReference handles GET /api/v1/payments/reference/{reference}
func (h *Handler) GetByReference(w http.ResponseWriter, r *http.Request, caller domain.Identity, params map[string]string) {
	p, err := h.service.GetByReference(r.Context(), params["reference"])
	if err == nil {
		err = visibleTo(caller, p)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListByStatus handles GET /api/v1/payments/status/{status}
func (h *Handler) ListByStatus(w http.ResponseWriter, r *http.Request, caller domain.Identity, params map[string]string) {
	if err := requireRole(caller, domain.RoleAdmin, domain.RoleInstructor); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := domain.ParsePaymentStatus(params["status"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	payments, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentsResponse{Payments: payments})
}

// ListByCourse handles GET /api/v1/payments/course/{course_id}
func (h *Handler) ListByCourse(w http.ResponseWriter, r *http.Request, caller domain.Identity, params map[string]string) {
	if err := requireRole(caller, domain.RoleAdmin, domain.RoleInstructor); err != nil {
		h.writeError(w, r, err)
		return
	}

	payments, err := h.service.ListByCourse(r.Context(), params["course_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentsResponse{Payments: payments})
}

// CourseAnalytics handles GET /api/v1/payments/course/{course_id}/analytics
func (h *Handler) CourseAnalytics(w http.ResponseWriter, r *http.Request, caller domain.Identity, params map[string]string) {
	if err := requireRole(caller, domain.RoleAdmin, domain.RoleInstructor); err != nil {
		h.writeError(w, r, err)
		return
	}

	analytics, err := h.service.CourseAnalytics(r.Context(), params["course_id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

// InstructorEarnings handles GET /api/v1/instructor/payments/earnings.
// Admins may pass ?instructor_id= to look at another instructor.
func (h *Handler) InstructorEarnings(w http.ResponseWriter, r *http.Request, caller domain.Identity, _ map[string]string) {
	if err := requireRole(caller, domain.RoleAdmin, domain.RoleInstructor); err != nil {
		h.writeError(w, r, err)
		return
	}
	analytics, err := h.service.InstructorEarnings(r.Context(), h.instructorScope(r, caller))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

// ListByInstructor handles GET /api/v1/instructor/payments/all.
// Admins may pass ?instructor_id= to look at another instructor.
func (h *Handler) ListByInstructor(w http.ResponseWriter, r *http.Request, caller domain.Identity, _ map[string]string) {
	if err := requireRole(caller, domain.RoleAdmin, domain.RoleInstructor); err != nil {
		h.writeError(w, r, err)
		return
	}

	payments, err := h.service.ListByInstructor(r.Context(), h.instructorScope(r, caller))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentsResponse{Payments: payments})
}

// instructorScope is the caller for instructors; admins choose via the query
func (h *Handler) instructorScope(r *http.Request, caller domain.Identity) string {
	if caller.Role == domain.RoleAdmin {
		return r.URL.Query().Get("instructor_id")
	}
	return caller.ID
}

// UpdateStatus handles PUT /api/v1/admin/payments/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request, caller domain.Identity, params map[string]string) {
	var req statusRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := domain.ParsePaymentStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.service.UpdatePaymentStatus(r.Context(), ports.UpdateStatusRequest{
		Actor:     caller,
		PaymentID: params["id"],
		Status:    status,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func pageFromQuery(r *http.Request) (domain.PageRequest, error) {
	var page domain.PageRequest
	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, domain.Validationf("page", "page must be a non-negative integer")
		}
		page.Page = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, domain.Validationf("size", "size must be a non-negative integer")
		}
		page.Size = n
	}
	return page, nil
}
