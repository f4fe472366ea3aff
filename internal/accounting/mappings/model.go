package mappings

import (
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountMapping links an integration key of a company to a ledger account.
type AccountMapping struct {
	CompanyID int64     `json:"company_id"`
	Module    string    `json:"module"`
	Key       string    `json:"key"`
	AccountID int64     `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize upper-cases the module and trims the key.
func (m *AccountMapping) Normalize() {
	m.Module = strings.ToUpper(strings.TrimSpace(m.Module))
	m.Key = strings.TrimSpace(m.Key)
}

// Validate checks the mapping identifiers.
func (m AccountMapping) Validate() error {
	v := &shared.ValidationError{}
	if m.CompanyID <= 0 {
		v.Add(shared.EntryLevel, "company_id", "company required")
	}
	if m.Module == "" {
		v.Add(shared.EntryLevel, "module", "module required")
	}
	if m.Key == "" {
		v.Add(shared.EntryLevel, "key", "key required")
	}
	if m.AccountID <= 0 {
		v.Add(shared.EntryLevel, "account_id", "account required")
	}
	return v.OrNil()
}
