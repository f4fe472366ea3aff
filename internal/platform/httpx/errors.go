// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Sentinel errors for the transport layer.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

// violationStatus maps rules that describe a conflicting state to 409; the
// remaining rules are semantic rejections of the request itself.
var violationStatus = map[shared.Rule]int{
	shared.RuleIllegalTransition:   http.StatusConflict,
	shared.RulePeriodClosed:        http.StatusConflict,
	shared.RulePeriodAlreadyClosed: http.StatusConflict,
	shared.RuleYearAlreadyClosed:   http.StatusConflict,
	shared.RuleYearClosed:          http.StatusConflict,
	shared.RuleAccountInUse:        http.StatusConflict,
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		validation *shared.ValidationError
		violation  *shared.BusinessRuleViolation
	)
	switch {
	case errors.As(err, &validation):
		JSON(w, http.StatusBadRequest, ValidationProblem{
			ProblemDetail: ProblemDetail{Type: typeURI("validation"), Title: "Validation Failed", Status: http.StatusBadRequest, Detail: "one or more fields are invalid"},
			Issues:        validation.Issues,
		})
	case errors.Is(err, shared.ErrValidation), errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &violation):
		status, ok := violationStatus[violation.Rule]
		if !ok {
			status = http.StatusUnprocessableEntity
		}
		JSON(w, status, RuleProblem{
			ProblemDetail: ProblemDetail{Type: typeURI("business-rule"), Title: "Business Rule Violation", Status: status, Detail: violation.Detail},
			Rule:          string(violation.Rule),
		})
	case errors.Is(err, db.ErrConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusGatewayTimeout, "Timeout", "")
	default:
		if logger != nil {
			logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func typeURI(kind string) string {
	return "urn:odyssey-ledger:problem:" + kind
}
