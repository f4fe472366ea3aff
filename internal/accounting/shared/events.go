package shared

import (
	"context"
	"time"
)

// EventKind names a ledger change broadcast after commit.
type EventKind string

const (
	EventPosted      EventKind = "ledger.posted"
	EventCancelled   EventKind = "ledger.cancelled"
	EventPeriodClose EventKind = "period.closed"
	EventYearClose   EventKind = "year.closed"
)

// Event notifies downstream caches that balances for a company changed.
type Event struct {
	Kind       EventKind `json:"kind"`
	CompanyID  int64     `json:"company_id"`
	Year       int       `json:"year,omitempty"`
	Month      int       `json:"month,omitempty"`
	AccountIDs []int64   `json:"account_ids,omitempty"`
	At         time.Time `json:"at"`
}

// EventPublisher delivers events on a best-effort basis.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
