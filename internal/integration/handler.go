package integration

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler accepts operational documents from upstream modules.
type Handler struct {
	logger *slog.Logger
	hooks  *Hooks
}

func NewHandler(logger *slog.Logger, hooks *Hooks) *Handler {
	return &Handler{logger: logger, hooks: hooks}
}

// MountRoutes registers document routes under a {companyID} router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales-invoices", h.SalesInvoice)
	r.Post("/supplier-invoices", h.SupplierInvoice)
	r.Post("/payments", h.Payment)
}

type salesInvoiceRequest struct {
	ID       int64           `json:"id" validate:"required,gt=0"`
	Number   string          `json:"number" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	IssuedAt httpx.Date      `json:"issued_at"`
}

type supplierInvoiceRequest struct {
	ID            int64           `json:"id" validate:"required,gt=0"`
	Number        string          `json:"number" validate:"required"`
	GoodsReceived bool            `json:"goods_received"`
	Total         decimal.Decimal `json:"total"`
	PostedAt      httpx.Date      `json:"posted_at"`
}

type paymentRequest struct {
	ID        int64           `json:"id" validate:"required,gt=0"`
	Number    string          `json:"number" validate:"required"`
	Direction string          `json:"direction" validate:"required,oneof=IN OUT"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    httpx.Date      `json:"paid_at"`
}

func (h *Handler) SalesInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req salesInvoiceRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	err = h.hooks.HandleSalesInvoicePosted(r.Context(), SalesInvoicePostedEvent{
		ID: req.ID, CompanyID: companyID, Number: req.Number,
		Subtotal: req.Subtotal, Tax: req.Tax, IssuedAt: req.IssuedAt.Time,
	})
	h.respond(w, r, err)
}

func (h *Handler) SupplierInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req supplierInvoiceRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	err = h.hooks.HandleSupplierInvoicePosted(r.Context(), SupplierInvoicePostedEvent{
		ID: req.ID, CompanyID: companyID, Number: req.Number, GoodsReceived: req.GoodsReceived,
		Total: req.Total, PostedAt: req.PostedAt.Time,
	})
	h.respond(w, r, err)
}

func (h *Handler) Payment(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req paymentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	err = h.hooks.HandlePaymentPosted(r.Context(), PaymentPostedEvent{
		ID: req.ID, CompanyID: companyID, Number: req.Number, Direction: PaymentDirection(req.Direction),
		Amount: req.Amount, PaidAt: req.PaidAt.Time,
	})
	h.respond(w, r, err)
}

// respond answers 202 because a document already booked is accepted silently.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "booked"})
}
