package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesInvoicePostedEvent is raised when a customer invoice is issued.
type SalesInvoicePostedEvent struct {
	ID        int64
	CompanyID int64
	Number    string
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	IssuedAt  time.Time
}

// SupplierInvoicePostedEvent is raised when a supplier bill is booked.
// GoodsReceived routes the debit to inventory instead of expense.
type SupplierInvoicePostedEvent struct {
	ID            int64
	CompanyID     int64
	Number        string
	GoodsReceived bool
	Total         decimal.Decimal
	PostedAt      time.Time
}

// PaymentDirection tells receipts from disbursements.
type PaymentDirection string

const (
	PaymentIncoming PaymentDirection = "IN"
	PaymentOutgoing PaymentDirection = "OUT"
)

// PaymentPostedEvent is raised when cash moves against an invoice.
type PaymentPostedEvent struct {
	ID        int64
	CompanyID int64
	Number    string
	Direction PaymentDirection
	Amount    decimal.Decimal
	PaidAt    time.Time
}
