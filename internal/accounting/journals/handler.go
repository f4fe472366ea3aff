package journals

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
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

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Date        httpx.Date      `json:"date"`
	Description string          `json:"description" validate:"max=255"`
	Memo        string          `json:"memo" validate:"max=500"`
}

type submitRequest struct {
	Type           Type          `json:"type"`
	IdempotencyKey string        `json:"idempotency_key" validate:"max=128"`
	Lines          []lineRequest `json:"lines" validate:"dive"`
}

type adjustRequest struct {
	Lines []lineRequest `json:"lines" validate:"dive"`
}

type reverseRequest struct {
	Date        *httpx.Date `json:"date"`
	Description string      `json:"description" validate:"max=255"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type transactionResponse struct {
	ID                    int64           `json:"id"`
	Number                string          `json:"number"`
	GroupID               uuid.UUID       `json:"group_id"`
	Type                  Type            `json:"type"`
	Date                  httpx.Date      `json:"date"`
	AccountID             int64           `json:"account_id"`
	Debit                 decimal.Decimal `json:"debit"`
	Credit                decimal.Decimal `json:"credit"`
	Description           string          `json:"description,omitempty"`
	Memo                  string          `json:"memo,omitempty"`
	Status                Status          `json:"status"`
	FiscalYear            int             `json:"fiscal_year"`
	FiscalMonth           int             `json:"fiscal_month"`
	FiscalQuarter         int             `json:"fiscal_quarter"`
	CreatedBy             int64           `json:"created_by"`
	ApprovedBy            *int64          `json:"approved_by,omitempty"`
	ApprovedAt            *time.Time      `json:"approved_at,omitempty"`
	PostedBy              *int64          `json:"posted_by,omitempty"`
	PostedAt              *time.Time      `json:"posted_at,omitempty"`
	CancelledBy           *int64          `json:"cancelled_by,omitempty"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason          string          `json:"cancel_reason,omitempty"`
	OriginalTransactionID *int64          `json:"original_transaction_id,omitempty"`
}

func toResponse(t Transaction) transactionResponse {
	return transactionResponse{
		ID: t.ID, Number: t.Number, GroupID: t.GroupID, Type: t.Type, Date: httpx.Date{Time: t.Date}, AccountID: t.AccountID,
		Debit: t.Debit, Credit: t.Credit, Description: t.Description, Memo: t.Memo, Status: t.Status,
		FiscalYear: t.FiscalYear, FiscalMonth: t.FiscalMonth, FiscalQuarter: t.FiscalQuarter, CreatedBy: t.CreatedBy,
		ApprovedBy: t.ApprovedBy, ApprovedAt: t.ApprovedAt, PostedBy: t.PostedBy, PostedAt: t.PostedAt,
		CancelledBy: t.CancelledBy, CancelledAt: t.CancelledAt, CancelReason: t.CancelReason, OriginalTransactionID: t.OriginalTransactionID,
	}
}

func toResponses(lines []Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, toResponse(l))
	}
	return out
}

func toLines(in []lineRequest) []LineInput {
	out := make([]LineInput, 0, len(in))
	for _, l := range in {
		out = append(out, LineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Date: l.Date.Time, Description: l.Description, Memo: l.Memo})
	}
	return out
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	filter := ListFilter{CompanyID: companyID, Status: Status(r.URL.Query().Get("status"))}
	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	perPage, err := httpx.QueryInt(r, "per_page", 100)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	p := internalShared.NewPagination(page, perPage, 0)
	filter.Limit, filter.Offset = p.PerPage, p.Offset()
	account, err := httpx.QueryInt(r, "account_id", 0)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	filter.AccountID = int64(account)
	if from, ok, err := httpx.QueryDate(r, "from"); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	} else if ok {
		filter.From = &from
	}
	if to, ok, err := httpx.QueryDate(r, "to"); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	} else if ok {
		filter.To = &to
	}
	lines, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponses(lines))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	companyID, txID, err := lineIDs(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	line, err := h.service.Get(r.Context(), companyID, txID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(line))
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req submitRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if req.Type == "" {
		req.Type = TypeGeneral
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	refs, err := h.service.Submit(r.Context(), SubmitInput{
		CompanyID:      companyID,
		Type:           req.Type,
		CreatedBy:      actorID,
		Lines:          toLines(req.Lines),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, refs)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Post)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, companyID, txID, actorID int64) (Transaction, error)) {
	companyID, txID, err := lineIDs(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	line, err := fn(r.Context(), companyID, txID, actorID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(line))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	companyID, txID, err := lineIDs(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req cancelRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	line, err := h.service.Cancel(r.Context(), CancelInput{CompanyID: companyID, TransactionID: txID, ActorID: actorID, Reason: req.Reason})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(line))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, txID, err := lineIDs(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), companyID, txID, actorID); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	companyID, txID, err := lineIDs(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req adjustRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	refs, err := h.service.CreateAdjustingEntry(r.Context(), AdjustInput{CompanyID: companyID, OriginalTransactionID: txID, CreatedBy: actorID, Lines: toLines(req.Lines)})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, refs)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	companyID, txID, err := lineIDs(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
	}
	in := ReverseInput{CompanyID: companyID, OriginalTransactionID: txID, Description: req.Description}
	in.CreatedBy, _ = internalShared.ActorFromContext(r.Context())
	if req.Date != nil {
		in.Date = &req.Date.Time
	}
	refs, err := h.service.CreateReversingEntry(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, refs)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	companyID, groupID, err := groupIDs(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	lines, err := h.service.GetEntry(r.Context(), companyID, groupID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponses(lines))
}

func (h *Handler) ApproveEntry(w http.ResponseWriter, r *http.Request) {
	h.groupTransition(w, r, h.service.ApproveEntry)
}

func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	h.groupTransition(w, r, h.service.PostEntry)
}

func (h *Handler) groupTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, companyID int64, groupID uuid.UUID, actorID int64) ([]Transaction, error)) {
	companyID, groupID, err := groupIDs(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actorID, _ := internalShared.ActorFromContext(r.Context())
	lines, err := fn(r.Context(), companyID, groupID, actorID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponses(lines))
}

func lineIDs(r *http.Request) (int64, int64, error) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		return 0, 0, err
	}
	txID, err := httpx.ParamInt64(r, "transactionID")
	if err != nil {
		return 0, 0, err
	}
	return companyID, txID, nil
}

func groupIDs(r *http.Request) (int64, uuid.UUID, error) {
	companyID, err := httpx.ParamInt64(r, "companyID")
	if err != nil {
		return 0, uuid.Nil, err
	}
	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		return 0, uuid.Nil, httpx.ErrBadRequest
	}
	return companyID, groupID, nil
}
