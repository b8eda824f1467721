package staff

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentara-clinic/dentara/internal/platform/httpx"
	"github.com/dentara-clinic/dentara/internal/shared"
)

// Member is a clinic staff member. Doctors and cashiers referenced on
// ledger lines come from this table; the package is read-only, staff
// administration happens outside this service.
type Member struct {
	ID       int64  `json:"id"`
	BranchID int64  `json:"branch_id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

const (
	RoleDoctor  = "doctor"
	RoleCashier = "cashier"
)

var ErrMemberNotFound = errors.New("staff: not found")

// Repository reads staff from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByBranch lists active staff for a branch, optionally by role.
func (r *Repository) ListByBranch(ctx context.Context, branchID int64, role string) ([]Member, error) {
	query := `SELECT id, branch_id, full_name, role, active FROM staff WHERE branch_id = $1 AND active`
	args := []any{branchID}
	if role != "" {
		query += ` AND role = $2`
		args = append(args, role)
	}
	query += ` ORDER BY full_name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.BranchID, &m.FullName, &m.Role, &m.Active); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetByID fetches one staff member.
func (r *Repository) GetByID(ctx context.Context, id int64) (Member, error) {
	var m Member
	err := r.pool.QueryRow(ctx, `SELECT id, branch_id, full_name, role, active FROM staff WHERE id = $1`, id).
		Scan(&m.ID, &m.BranchID, &m.FullName, &m.Role, &m.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrMemberNotFound
		}
		return Member{}, err
	}
	return m, nil
}

// Handler exposes staff lookups over JSON.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := strconv.ParseInt(r.URL.Query().Get("branch"), 10, 64)
	if err != nil || branchID == 0 {
		httpx.RespondError(w, shared.ErrBranchRequired)
		return
	}
	members, err := h.repo.ListByBranch(r.Context(), branchID, r.URL.Query().Get("role"))
	if err != nil {
		h.logger.Error("list staff failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"staff": members})
}

// MountRoutes attaches staff endpoints to r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
}
