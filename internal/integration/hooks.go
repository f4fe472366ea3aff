package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Ledger exposes journal operations required by integrations.
type Ledger interface {
	Submit(ctx context.Context, in journals.SubmitInput) ([]journals.TransactionRef, error)
	ApproveEntry(ctx context.Context, companyID int64, groupID uuid.UUID, approverID int64) ([]journals.Transaction, error)
	PostEntry(ctx context.Context, companyID int64, groupID uuid.UUID, actorID int64) ([]journals.Transaction, error)
}

// AccountMappingRepository provides mapping lookups.
type AccountMappingRepository interface {
	Get(ctx context.Context, companyID int64, module, key string) (mappings.AccountMapping, error)
}

// Hooks turns operational documents into journal entries. Each document is
// submitted, approved and posted in one transaction under the system actor.
type Hooks struct {
	ledger      Ledger
	mappingRepo AccountMappingRepository
	tx          shared.TxRunner
	actorID     int64
	logger      *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, mappingRepo AccountMappingRepository, tx shared.TxRunner, systemActorID int64, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, mappingRepo: mappingRepo, tx: tx, actorID: systemActorID, logger: logger}
}

func (h *Hooks) resolveAccount(ctx context.Context, companyID int64, module, key string) (int64, error) {
	mapping, err := h.mappingRepo.Get(ctx, companyID, module, key)
	if err != nil {
		return 0, err
	}
	return mapping.AccountID, nil
}

// book submits and posts the lines. A document already booked is skipped.
func (h *Hooks) book(ctx context.Context, companyID int64, typ journals.Type, module, sourceKey string, lines []journals.LineInput) error {
	err := h.tx.InTx(ctx, func(ctx context.Context) error {
		refs, err := h.ledger.Submit(ctx, journals.SubmitInput{
			CompanyID:         companyID,
			Type:              typ,
			CreatedBy:         h.actorID,
			Lines:             lines,
			IdempotencyKey:    sourceKey,
			IdempotencyModule: module,
		})
		if err != nil {
			return err
		}
		groupID := refs[0].GroupID
		if _, err := h.ledger.ApproveEntry(ctx, companyID, groupID, h.actorID); err != nil {
			return err
		}
		_, err = h.ledger.PostEntry(ctx, companyID, groupID, h.actorID)
		return err
	})
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		h.logger.Info("integration document already booked", slog.String("module", module), slog.String("source", sourceKey))
		return nil
	}
	return err
}

func line(accountID int64, debit, credit decimal.Decimal, date time.Time, description string) journals.LineInput {
	return journals.LineInput{AccountID: accountID, Debit: debit, Credit: credit, Date: date, Description: description}
}

// HandleSalesInvoicePosted books receivable against revenue and tax payable.
func (h *Hooks) HandleSalesInvoicePosted(ctx context.Context, evt SalesInvoicePostedEvent) error {
	if h == nil || h.ledger == nil || h.mappingRepo == nil {
		return nil
	}
	if evt.IssuedAt.IsZero() {
		return shared.Invalid("issued_at", "sales invoice issue date required")
	}
	if evt.Tax.IsNegative() || evt.Subtotal.IsNegative() {
		return shared.Invalid("amount", "sales invoice amounts must not be negative")
	}
	subtotal, tax := evt.Subtotal.Round(2), evt.Tax.Round(2)
	total := subtotal.Add(tax)
	if total.IsZero() {
		return nil
	}
	receivable, err := h.resolveAccount(ctx, evt.CompanyID, "SALES", "sales.invoice.ar")
	if err != nil {
		return err
	}
	revenue, err := h.resolveAccount(ctx, evt.CompanyID, "SALES", "sales.invoice.revenue")
	if err != nil {
		return err
	}
	memo := fmt.Sprintf("Sales Invoice %s", evt.Number)
	lines := []journals.LineInput{line(receivable, total, decimal.Zero, evt.IssuedAt, memo)}
	if subtotal.IsPositive() {
		lines = append(lines, line(revenue, decimal.Zero, subtotal, evt.IssuedAt, memo))
	}
	if tax.IsPositive() {
		taxPayable, err := h.resolveAccount(ctx, evt.CompanyID, "SALES", "sales.invoice.tax")
		if err != nil {
			return err
		}
		lines = append(lines, line(taxPayable, decimal.Zero, tax, evt.IssuedAt, memo))
	}
	return h.book(ctx, evt.CompanyID, journals.TypeSales, "SALES.INVOICE", fmt.Sprintf("SINV:%d", evt.ID), lines)
}

// HandleSupplierInvoicePosted books inventory or expense against payables.
func (h *Hooks) HandleSupplierInvoicePosted(ctx context.Context, evt SupplierInvoicePostedEvent) error {
	if h == nil || h.ledger == nil || h.mappingRepo == nil {
		return nil
	}
	if evt.PostedAt.IsZero() {
		return shared.Invalid("posted_at", "supplier invoice post date required")
	}
	if !evt.Total.IsPositive() {
		return nil
	}
	debitKey := "ap.invoice.expense"
	if evt.GoodsReceived {
		debitKey = "ap.invoice.inventory"
	}
	debitAccount, err := h.resolveAccount(ctx, evt.CompanyID, "AP", debitKey)
	if err != nil {
		return err
	}
	apAccount, err := h.resolveAccount(ctx, evt.CompanyID, "AP", "ap.invoice.ap")
	if err != nil {
		return err
	}
	amount := evt.Total.Round(2)
	memo := fmt.Sprintf("AP Invoice %s", evt.Number)
	return h.book(ctx, evt.CompanyID, journals.TypePurchase, "AP.INVOICE", fmt.Sprintf("APINV:%d", evt.ID), []journals.LineInput{
		line(debitAccount, amount, decimal.Zero, evt.PostedAt, memo),
		line(apAccount, decimal.Zero, amount, evt.PostedAt, memo),
	})
}

// HandlePaymentPosted books cash receipts against receivables and
// disbursements against payables.
func (h *Hooks) HandlePaymentPosted(ctx context.Context, evt PaymentPostedEvent) error {
	if h == nil || h.ledger == nil || h.mappingRepo == nil {
		return nil
	}
	if evt.PaidAt.IsZero() {
		return shared.Invalid("paid_at", "payment date required")
	}
	if !evt.Amount.IsPositive() {
		return nil
	}
	var (
		module, typ   = "AP", journals.TypePayment
		counterKey    = "ap.payment.ap"
		cashKey       = "ap.payment.cash"
		source        = fmt.Sprintf("APPAY:%d", evt.ID)
		memo          = fmt.Sprintf("AP Payment %s", evt.Number)
		cashIsDebited = false
	)
	switch evt.Direction {
	case PaymentIncoming:
		module, typ = "AR", journals.TypeReceipt
		counterKey, cashKey = "ar.receipt.ar", "ar.receipt.cash"
		source = fmt.Sprintf("ARREC:%d", evt.ID)
		memo = fmt.Sprintf("AR Receipt %s", evt.Number)
		cashIsDebited = true
	case PaymentOutgoing:
	default:
		return shared.Invalid("direction", "unknown payment direction %q", evt.Direction)
	}
	cash, err := h.resolveAccount(ctx, evt.CompanyID, module, cashKey)
	if err != nil {
		return err
	}
	counter, err := h.resolveAccount(ctx, evt.CompanyID, module, counterKey)
	if err != nil {
		return err
	}
	amount := evt.Amount.Round(2)
	lines := []journals.LineInput{
		line(counter, amount, decimal.Zero, evt.PaidAt, memo),
		line(cash, decimal.Zero, amount, evt.PaidAt, memo),
	}
	if cashIsDebited {
		lines = []journals.LineInput{
			line(cash, amount, decimal.Zero, evt.PaidAt, memo),
			line(counter, decimal.Zero, amount, evt.PaidAt, memo),
		}
	}
	return h.book(ctx, evt.CompanyID, typ, module+".PAYMENT", source, lines)
}
