package periods

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = internalShared.PeriodStatusOpen
	PeriodStatusClosed PeriodStatus = internalShared.PeriodStatusClosed
)

// YearMarkerMonth is the month number of the row that records a closed fiscal year.
const YearMarkerMonth = 0

// FiscalPeriod is one fiscal month (or the year marker) of a company.
// A period without a stored row is OPEN.
type FiscalPeriod struct {
	CompanyID    int64
	Year         int
	Month        int
	Status       PeriodStatus
	ClosedBy     *int64
	ClosedAt     *time.Time
	ReopenedBy   *int64
	ReopenedAt   *time.Time
	ReopenReason string
}

// Closed reports whether the period is CLOSED.
func (p FiscalPeriod) Closed() bool { return p.Status == PeriodStatusClosed }

func openPeriod(companyID int64, year, month int) FiscalPeriod {
	return FiscalPeriod{CompanyID: companyID, Year: year, Month: month, Status: PeriodStatusOpen}
}

// Position is the fiscal placement of a date under a calendar fiscal year.
type Position struct {
	Year    int
	Month   int
	Quarter int
}

// PositionOf derives fiscal year, month and quarter from a date.
func PositionOf(date time.Time) Position {
	m := int(date.Month())
	return Position{Year: date.Year(), Month: m, Quarter: (m-1)/3 + 1}
}

// Bounds returns the first and last day of a fiscal month.
func Bounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// YearEnd is the date closing entries carry.
func YearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// ClosePeriodInput closes one fiscal month.
type ClosePeriodInput struct {
	CompanyID int64
	Year      int
	Month     int
	ActorID   int64
}

// Validate checks identifiers.
func (in ClosePeriodInput) Validate() error {
	return validatePeriodRef(in.CompanyID, in.Year, in.Month, in.ActorID)
}

// CloseYearInput closes a fiscal year.
type CloseYearInput struct {
	CompanyID int64
	Year      int
	ActorID   int64
	// RetainedEarningsAccountID overrides the company's RETAINED_EARNINGS account.
	RetainedEarningsAccountID *int64
}

// Validate checks identifiers.
func (in CloseYearInput) Validate() error {
	return validatePeriodRef(in.CompanyID, in.Year, 1, in.ActorID)
}

// ReopenInput reopens a closed fiscal month.
type ReopenInput struct {
	CompanyID int64
	Year      int
	Month     int
	ActorID   int64
	Reason    string
}

// Validate checks identifiers and the mandatory reason.
func (in ReopenInput) Validate() error {
	v := &shared.ValidationError{}
	if err := validatePeriodRef(in.CompanyID, in.Year, in.Month, in.ActorID); err != nil {
		return err
	}
	if in.Reason == "" {
		v.Add(shared.EntryLevel, "reason", "reopen reason required")
	}
	return v.OrNil()
}

func validatePeriodRef(companyID int64, year, month int, actorID int64) error {
	v := &shared.ValidationError{}
	if companyID <= 0 {
		v.Add(shared.EntryLevel, "company_id", "company required")
	}
	if year < 1900 || year > 9999 {
		v.Add(shared.EntryLevel, "year", "year %d out of range", year)
	}
	if month < 1 || month > 12 {
		v.Add(shared.EntryLevel, "month", "month must be between 1 and 12")
	}
	if actorID <= 0 {
		v.Add(shared.EntryLevel, "actor_id", "actor required")
	}
	return v.OrNil()
}

// ClosingSummary describes the entry written when a fiscal year is closed.
type ClosingSummary struct {
	GroupID                   uuid.UUID
	Lines                     int
	NetIncome                 decimal.Decimal
	RetainedEarningsAccountID int64
}
