package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dentara-clinic/dentara/internal/platform/httpx"
	"github.com/dentara-clinic/dentara/internal/shared"
)

// Handler exposes inventory over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type itemDTO struct {
	ID         int64  `json:"id"`
	BranchID   int64  `json:"branch_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Vendor     string `json:"vendor"`
	StockLevel int    `json:"stock_level"`
	SellPrice  string `json:"sell_price"`
	UpdatedAt  string `json:"updated_at"`
}

func itemResponse(it Item) itemDTO {
	return itemDTO{
		ID:         it.ID,
		BranchID:   it.BranchID,
		Name:       it.Name,
		Category:   it.Category,
		Vendor:     it.Vendor,
		StockLevel: it.StockLevel,
		SellPrice:  it.SellPrice.StringFixed(2),
		UpdatedAt:  it.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := strconv.ParseInt(r.URL.Query().Get("branch"), 10, 64)
	if err != nil || branchID == 0 {
		httpx.RespondError(w, shared.ErrBranchRequired)
		return
	}
	items, err := h.service.ListByBranch(r.Context(), branchID)
	if err != nil {
		h.respondErr(w, "list items", err)
		return
	}
	out := make([]itemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, itemResponse(it))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemResponse(item))
}

type txnDTO struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Change      int    `json:"change"`
	StockAfter  int    `json:"stock_after"`
	Reason      string `json:"reason"`
	RefLedgerID *int64 `json:"ref_ledger_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	txns, pg, err := h.service.History(r.Context(), id, page, perPage)
	if err != nil {
		h.respondErr(w, "list stock history", err)
		return
	}
	out := make([]txnDTO, 0, len(txns))
	for _, t := range txns {
		out = append(out, txnDTO{
			ID:          t.ID,
			Type:        string(t.Type),
			Change:      t.Change,
			StockAfter:  t.StockAfter,
			Reason:      t.Reason,
			RefLedgerID: t.RefLedgerID,
			CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"transactions": out,
		"pagination": map[string]int{
			"page":        pg.Page,
			"per_page":    pg.PerPage,
			"total":       pg.Total,
			"total_pages": pg.TotalPages,
		},
	})
}

type adjustRequest struct {
	Change int    `json:"change" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.Adjust(r.Context(), AdjustInput{
		ItemID:  id,
		Change:  req.Change,
		Reason:  req.Reason,
		ActorID: shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondErr(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemResponse(item))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrBranchRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
