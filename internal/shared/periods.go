package shared

import "errors"

// Period statuses reused outside accounting module.
const (
	PeriodStatusOpen   = "OPEN"
	PeriodStatusClosed = "CLOSED"
)

// ErrInvalidPeriodTransition indicates status change not allowed.
var ErrInvalidPeriodTransition = errors.New("period transition invalid")

// ValidatePeriodTransition checks transitions according to policy. Reopening a
// closed period requires the privileged path.
func ValidatePeriodTransition(current, target string, privileged bool) error {
	if current == "" {
		current = PeriodStatusOpen
	}
	switch current {
	case PeriodStatusOpen:
		if target == PeriodStatusClosed {
			return nil
		}
	case PeriodStatusClosed:
		if target == PeriodStatusOpen && privileged {
			return nil
		}
	}
	return ErrInvalidPeriodTransition
}
