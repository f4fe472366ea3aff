package accounting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler wires the ledger HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	accounts *accounts.Handler
	journals *journals.Handler
	periods  *periods.Handler
	reports  *reports.Handler
	docs     *integration.Handler
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		accounts: accounts.NewHandler(logger, service.accounts),
		journals: journals.NewHandler(logger, service.journals),
		periods:  periods.NewHandler(logger, service.periods),
		reports:  reports.NewHandler(logger, service.reports),
	}
}

// WithIntegration exposes the document hooks under /integration.
func (h *Handler) WithIntegration(docs *integration.Handler) *Handler {
	h.docs = docs
	return h
}

// MountRoutes registers every company-scoped ledger route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/companies/{companyID}", func(r chi.Router) {
		r.Route("/accounts", h.accounts.MountRoutes)
		r.Route("/journals", h.journals.MountRoutes)
		r.Route("/periods", h.periods.MountRoutes)
		r.Route("/reports", h.reports.MountRoutes)
		r.Get("/balances/{accountID}", h.AccountBalance)
		r.Get("/mappings", h.ListMappings)
		r.Put("/mappings", h.UpsertMapping)
		if h.docs != nil {
			r.Route("/integration", h.docs.MountRoutes)
		}
	})
}

type balanceResponse struct {
	AccountID int64           `json:"account_id"`
	AsOf      *httpx.Date     `json:"as_of,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
}

// AccountBalance answers GET .../balances/{accountID}?as_of=YYYY-MM-DD.
func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	accountID, err := httpx.ParamInt64(r, "accountID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var asOf *time.Time
	if t, ok, err := httpx.QueryDate(r, "as_of"); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	} else if ok {
		asOf = &t
	}
	balance, err := h.service.AccountBalance(r.Context(), companyID, accountID, asOf)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	resp := balanceResponse{AccountID: accountID, Balance: balance}
	if asOf != nil {
		resp.AsOf = &httpx.Date{Time: *asOf}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type mappingRequest struct {
	Module    string `json:"module" validate:"required,max=32"`
	Key       string `json:"key" validate:"required,max=128"`
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
}

func (h *Handler) ListMappings(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	list, err := h.service.mappings.List(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

// UpsertMapping binds a module key to a postable account of the company.
func (h *Handler) UpsertMapping(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req mappingRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	m, err := h.service.MapAccount(r.Context(), mappings.AccountMapping{
		CompanyID: companyID,
		Module:    req.Module,
		Key:       req.Key,
		AccountID: req.AccountID,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}
