package periods

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes listing and closing. Reopening is deliberately absent from HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{year}", h.ListYear)
	r.Post("/{year}/{month}/close", h.ClosePeriod)
	r.Post("/{year}/close", h.CloseYear)
}

type periodResponse struct {
	Year     int          `json:"year"`
	Month    int          `json:"month"`
	Status   PeriodStatus `json:"status"`
	ClosedBy *int64       `json:"closed_by,omitempty"`
	ClosedAt *time.Time   `json:"closed_at,omitempty"`
}

func toResponse(p FiscalPeriod) periodResponse {
	return periodResponse{Year: p.Year, Month: p.Month, Status: p.Status, ClosedBy: p.ClosedBy, ClosedAt: p.ClosedAt}
}

func (h *Handler) ListYear(w http.ResponseWriter, r *http.Request) {
	companyID, year, err := companyYear(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	periods, err := h.service.ListYear(r.Context(), companyID, year)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	out := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		out = append(out, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	companyID, year, err := companyYear(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, httpx.ErrBadRequest)
		return
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	period, err := h.service.ClosePeriod(r.Context(), ClosePeriodInput{CompanyID: companyID, Year: year, Month: month, ActorID: actorID})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(period))
}

type closeYearRequest struct {
	RetainedEarningsAccountID *int64 `json:"retained_earnings_account_id" validate:"omitempty,gt=0"`
}

type closeYearResponse struct {
	GroupID                   string          `json:"group_id"`
	Lines                     int             `json:"lines"`
	NetIncome                 decimal.Decimal `json:"net_income"`
	RetainedEarningsAccountID int64           `json:"retained_earnings_account_id"`
}

func (h *Handler) CloseYear(w http.ResponseWriter, r *http.Request) {
	companyID, year, err := companyYear(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req closeYearRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	summary, err := h.service.CloseFiscalYear(r.Context(), CloseYearInput{
		CompanyID:                 companyID,
		Year:                      year,
		ActorID:                   actorID,
		RetainedEarningsAccountID: req.RetainedEarningsAccountID,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, closeYearResponse{
		GroupID:                   summary.GroupID.String(),
		Lines:                     summary.Lines,
		NetIncome:                 summary.NetIncome,
		RetainedEarningsAccountID: summary.RetainedEarningsAccountID,
	})
}

func companyYear(r *http.Request) (int64, int, error) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		return 0, 0, err
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return 0, 0, httpx.ErrBadRequest
	}
	return companyID, year, nil
}
