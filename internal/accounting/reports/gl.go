package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// LedgerLine is a posted line as read for the general ledger.
type LedgerLine struct {
	TransactionID int64
	Number        string
	GroupID       uuid.UUID
	Date          time.Time
	AccountID     int64
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// GeneralLedgerRow is a line with the account balance after it.
type GeneralLedgerRow struct {
	TransactionID int64           `json:"transaction_id"`
	Number        string          `json:"number"`
	GroupID       uuid.UUID       `json:"group_id"`
	Date          time.Time       `json:"date"`
	AccountID     int64           `json:"account_id"`
	Description   string          `json:"description,omitempty"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Balance       decimal.Decimal `json:"balance"`
}

// GeneralLedger is the chronological history of one account over a window.
type GeneralLedger struct {
	AccountID   int64              `json:"account_id"`
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	NormalSide  accounts.Side      `json:"normal_side"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	Opening     decimal.Decimal    `json:"opening"`
	Rows        []GeneralLedgerRow `json:"rows"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
	Closing     decimal.Decimal    `json:"closing"`
}

// BuildGeneralLedger runs the balance forward from opening over lines, which
// must already be in (date, id) order.
func BuildGeneralLedger(account accounts.Account, opening decimal.Decimal, lines []LedgerLine) GeneralLedger {
	gl := GeneralLedger{
		AccountID:  account.ID,
		Code:       account.Code,
		Name:       account.Name,
		NormalSide: account.NormalSide,
		Opening:    opening,
		Rows:       make([]GeneralLedgerRow, 0, len(lines)),
	}
	running := opening
	for _, l := range lines {
		if account.NormalSide == accounts.SideCredit {
			running = running.Add(l.Credit).Sub(l.Debit)
		} else {
			running = running.Add(l.Debit).Sub(l.Credit)
		}
		gl.TotalDebit = gl.TotalDebit.Add(l.Debit)
		gl.TotalCredit = gl.TotalCredit.Add(l.Credit)
		gl.Rows = append(gl.Rows, GeneralLedgerRow{
			TransactionID: l.TransactionID,
			Number:        l.Number,
			GroupID:       l.GroupID,
			Date:          l.Date,
			AccountID:     l.AccountID,
			Description:   l.Description,
			Debit:         l.Debit,
			Credit:        l.Credit,
			Balance:       running,
		})
	}
	gl.Closing = running
	return gl
}
