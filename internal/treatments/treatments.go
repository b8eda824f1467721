package treatments

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dentara-clinic/dentara/internal/platform/httpx"
)

// Treatment is a catalog entry. Its name seeds ledger line descriptions and
// drives the plan deposit heuristic; its price pre-fills the unit price.
type Treatment struct {
	ID              int64
	Name            string
	DefaultPrice    decimal.Decimal
	DurationMinutes int
	Active          bool
}

var ErrTreatmentNotFound = errors.New("treatments: not found")

// Repository reads the treatment catalog from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTreatment(row pgx.Row) (Treatment, error) {
	var (
		t     Treatment
		price pgtype.Numeric
	)
	if err := row.Scan(&t.ID, &t.Name, &price, &t.DurationMinutes, &t.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Treatment{}, ErrTreatmentNotFound
		}
		return Treatment{}, err
	}
	if price.Valid {
		if v, err := price.Value(); err == nil {
			if s, ok := v.(string); ok {
				if d, err := decimal.NewFromString(s); err == nil {
					t.DefaultPrice = d
				}
			}
		}
	}
	return t, nil
}

// List returns the active catalog.
func (r *Repository) List(ctx context.Context) ([]Treatment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, default_price, duration_minutes, active
		FROM treatments WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	treatments := make([]Treatment, 0)
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		treatments = append(treatments, t)
	}
	return treatments, rows.Err()
}

// GetByID fetches one catalog entry.
func (r *Repository) GetByID(ctx context.Context, id int64) (Treatment, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, default_price, duration_minutes, active
		FROM treatments WHERE id = $1`, id)
	return scanTreatment(row)
}

type treatmentDTO struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DefaultPrice    string `json:"default_price"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Handler exposes the catalog over JSON.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	treatments, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list treatments failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]treatmentDTO, 0, len(treatments))
	for _, t := range treatments {
		out = append(out, treatmentDTO{
			ID:              t.ID,
			Name:            t.Name,
			DefaultPrice:    t.DefaultPrice.StringFixed(2),
			DurationMinutes: t.DurationMinutes,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"treatments": out})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	t, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTreatmentNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get treatment failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, treatmentDTO{
		ID:              t.ID,
		Name:            t.Name,
		DefaultPrice:    t.DefaultPrice.StringFixed(2),
		DurationMinutes: t.DurationMinutes,
	})
}

// MountRoutes attaches catalog endpoints to r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}
