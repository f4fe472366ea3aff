package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

var (
	// ErrValidation marks input rejected before admission.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrNotFound marks a missing entity or one owned by another company.
	ErrNotFound = errors.New("accounting: entity not found")
	// ErrBusinessRule marks a request that conflicts with ledger state.
	ErrBusinessRule = errors.New("accounting: business rule violated")
	// ErrConcurrencyConflict is returned when retries against concurrent writers are exhausted.
	ErrConcurrencyConflict = db.ErrConflict
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = fmt.Errorf("%w: account mapping", ErrNotFound)
	// ErrIdempotencyConflict indicates the submission key was already consumed.
	ErrIdempotencyConflict = errors.New("accounting: idempotency key already used")
)

// Rule identifies the business rule a request violated.
type Rule string

const (
	RuleIllegalTransition   Rule = "ILLEGAL_TRANSITION"
	RulePeriodClosed        Rule = "PERIOD_CLOSED"
	RulePeriodAlreadyClosed Rule = "PERIOD_ALREADY_CLOSED"
	RulePeriodNotClosed     Rule = "PERIOD_NOT_CLOSED"
	RulePendingTransactions Rule = "PENDING_TRANSACTIONS"
	RuleYearIncomplete      Rule = "YEAR_INCOMPLETE"
	RuleYearAlreadyClosed   Rule = "YEAR_ALREADY_CLOSED"
	RuleYearClosed          Rule = "YEAR_CLOSED"
	RulePriorYearOpen       Rule = "PRIOR_YEAR_OPEN"
	RuleAccountInUse        Rule = "ACCOUNT_IN_USE"
	RuleAccountHierarchy    Rule = "ACCOUNT_HIERARCHY"
	RuleCompanyMismatch     Rule = "COMPANY_MISMATCH"
	RuleRetainedEarnings    Rule = "RETAINED_EARNINGS"
	RuleOriginalNotPosted   Rule = "ORIGINAL_NOT_POSTED"
)

// BusinessRuleViolation describes a rejected state change.
type BusinessRuleViolation struct {
	Rule   Rule
	Detail string
}

func (e *BusinessRuleViolation) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("accounting: %s", e.Rule)
	}
	return fmt.Sprintf("accounting: %s: %s", e.Rule, e.Detail)
}

// Is makes every violation match ErrBusinessRule.
func (e *BusinessRuleViolation) Is(target error) bool {
	return target == ErrBusinessRule
}

// Violation builds a BusinessRuleViolation with a formatted detail.
func Violation(rule Rule, format string, args ...any) error {
	return &BusinessRuleViolation{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// RuleOf extracts the violated rule from err, if any.
func RuleOf(err error) (Rule, bool) {
	var v *BusinessRuleViolation
	if errors.As(err, &v) {
		return v.Rule, true
	}
	return "", false
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("accounting: %s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a NotFoundError.
func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// EntryLevel is the line index used for issues that concern the whole entry.
const EntryLevel = -1

// LineIssue is a single validation failure.
type LineIssue struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failing check of a submission.
type ValidationError struct {
	Issues []LineIssue
}

// Add appends an issue.
func (e *ValidationError) Add(line int, field, format string, args ...any) {
	e.Issues = append(e.Issues, LineIssue{Line: line, Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns nil when no issue was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Line == EntryLevel {
			parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
			continue
		}
		parts = append(parts, fmt.Sprintf("line %d %s: %s", issue.Line, issue.Field, issue.Message))
	}
	return "accounting: validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a single entry-level ValidationError.
func Invalid(field, format string, args ...any) error {
	v := &ValidationError{}
	v.Add(EntryLevel, field, format, args...)
	return v
}
