package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorCollectsIssues(t *testing.T) {
	v := &ValidationError{}
	require.NoError(t, v.OrNil())

	v.Add(0, "debit", "must not be negative")
	v.Add(EntryLevel, "lines", "debits %s do not equal credits %s", "10", "9")
	err := v.OrNil()
	require.Error(t, err)

	assert.True(t, errors.Is(fmt.Errorf("submit: %w", err), ErrValidation))
	assert.Contains(t, err.Error(), "line 0 debit")
	assert.Contains(t, err.Error(), "lines: debits 10 do not equal credits 9")

	var got *ValidationError
	require.True(t, errors.As(err, &got))
	assert.Len(t, got.Issues, 2)
}

func TestBusinessRuleViolation(t *testing.T) {
	err := fmt.Errorf("post: %w", Violation(RulePeriodClosed, "2024-01 is closed"))
	assert.True(t, errors.Is(err, ErrBusinessRule))
	assert.False(t, errors.Is(err, ErrValidation))

	rule, ok := RuleOf(err)
	require.True(t, ok)
	assert.Equal(t, RulePeriodClosed, rule)

	_, ok = RuleOf(errors.New("other"))
	assert.False(t, ok)
}

func TestNotFound(t *testing.T) {
	err := NotFound("account", int64(7))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "accounting: account 7 not found", err.Error())
	assert.True(t, errors.Is(ErrMappingNotFound, ErrNotFound))
}
