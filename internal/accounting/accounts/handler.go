package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers chart of accounts routes under a {companyID} router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{accountID}", h.Get)
	r.Post("/{accountID}/move", h.Move)
	r.Post("/{accountID}/deactivate", h.Deactivate)
	r.Delete("/{accountID}", h.Delete)
}

type accountResponse struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Category       string          `json:"category,omitempty"`
	NormalSide     Side            `json:"normal_side"`
	ParentID       *int64          `json:"parent_id,omitempty"`
	Level          int             `json:"level"`
	IsLeaf         bool            `json:"is_leaf"`
	IsActive       bool            `json:"is_active"`
	TrackBalance   bool            `json:"track_balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

func toResponse(a Account) accountResponse {
	return accountResponse{
		ID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type, Category: a.Category, NormalSide: a.NormalSide,
		ParentID: a.ParentID, Level: a.Level, IsLeaf: a.IsLeaf, IsActive: a.IsActive, TrackBalance: a.TrackBalance,
		OpeningBalance: a.OpeningBalance, CurrentBalance: a.CurrentBalance,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	accounts, err := h.service.List(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, accountID, err := ids(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	account, err := h.service.Resolve(r.Context(), companyID, accountID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var in CreateAccountInput
	in.CompanyID = companyID
	if err := httpx.Bind(r, &in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	in.CompanyID = companyID
	in.ActorID, _ = internalShared.ActorFromContext(r.Context())
	account, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(account))
}

type moveRequest struct {
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	companyID, accountID, err := ids(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req moveRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	account, err := h.service.Move(r.Context(), MoveInput{CompanyID: companyID, AccountID: accountID, ParentID: req.ParentID, ActorID: actorID})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	companyID, accountID, err := ids(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	if err := h.service.Deactivate(r.Context(), companyID, accountID, actorID); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, accountID, err := ids(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), companyID, accountID, actorID); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ids(r *http.Request) (int64, int64, error) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		return 0, 0, err
	}
	accountID, err := httpx.ParamInt64(r, "accountID")
	if err != nil {
		return 0, 0, err
	}
	return companyID, accountID, nil
}
