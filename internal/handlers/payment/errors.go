package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/kevin07696/course-payments/internal/auth"
	"github.com/kevin07696/course-payments/internal/domain"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// errorResponse is the body of every non-2xx answer
type errorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// grpcCode maps a service error onto the gRPC code space so the HTTP and
// gRPC surfaces report the same class of failure
func grpcCode(err error) codes.Code {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeValidation, domain.ErrorCodeInvalidAmount:
		return codes.InvalidArgument
	case domain.ErrorCodePaymentNotFound, domain.ErrorCodeCourseNotFound,
		domain.ErrorCodeLearnerNotFound, domain.ErrorCodeEnrollmentNotFound:
		return codes.NotFound
	case domain.ErrorCodeAlreadyPaid:
		return codes.AlreadyExists
	case domain.ErrorCodeConcurrentModification:
		return codes.Aborted
	case domain.ErrorCodeInvalidTransition, domain.ErrorCodeInvalidPaymentStatus,
		domain.ErrorCodeAmountMismatch, domain.ErrorCodeVerificationFailed,
		domain.ErrorCodeRefundFailed:
		return codes.FailedPrecondition
	case domain.ErrorCodeGatewayError:
		return codes.Unavailable
	case domain.ErrorCodeGatewayTimeout:
		return codes.DeadlineExceeded
	case domain.ErrorCodeUnauthenticated:
		return codes.Unauthenticated
	case domain.ErrorCodeUnauthorized:
		return codes.PermissionDenied
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	return codes.Internal
}

// writeError renders err with the status derived from its gRPC code.
// Internal failures never leak their message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := grpcCode(err)
	status := runtime.HTTPStatusFromCode(code)

	body := errorResponse{Error: string(domain.ErrorCodeInternalError), Message: "internal error"}
	var de *domain.DomainError
	if errors.As(err, &de) {
		body.Error = string(de.Code)
		body.Message = de.Message
		if len(de.Details) > 0 {
			body.Details = de.Details
		}
	}

	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
		zap.String("request_id", auth.RequestID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}

	writeJSON(w, status, body)
}
