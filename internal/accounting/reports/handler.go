package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/general-ledger/{accountID}", h.GeneralLedger)
	r.Get("/balance-verification", h.VerifyBalance)
	r.Get("/profit-and-loss", h.ProfitAndLoss)
}

// window reads company and the start/end query pair; both dates are required.
func window(r *http.Request) (companyID int64, start, end time.Time, err error) {
	if companyID, err = httpx.ParamInt64(r, "companyID"); err != nil {
		return
	}
	if start, _, err = httpx.QueryDate(r, "start"); err != nil {
		return
	}
	end, _, err = httpx.QueryDate(r, "end")
	return
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	companyID, start, end, err := window(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), companyID, start, end)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) GeneralLedger(w http.ResponseWriter, r *http.Request) {
	companyID, start, end, err := window(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	accountID, err := httpx.ParamInt64(r, "accountID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	gl, err := h.service.GeneralLedger(r.Context(), companyID, accountID, start, end)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, gl)
}

func (h *Handler) VerifyBalance(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	asOf, ok, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if !ok {
		asOf = time.Now().UTC()
	}
	v, err := h.service.VerifyBalance(r.Context(), companyID, asOf)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	companyID, start, end, err := window(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), companyID, start, end)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}
