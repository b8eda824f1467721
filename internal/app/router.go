package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dentara-clinic/dentara/internal/docgen"
	"github.com/dentara-clinic/dentara/internal/inventory"
	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/patients"
	"github.com/dentara-clinic/dentara/internal/plan"
	"github.com/dentara-clinic/dentara/internal/portal"
	"github.com/dentara-clinic/dentara/internal/schedule"
	"github.com/dentara-clinic/dentara/internal/staff"
	"github.com/dentara-clinic/dentara/internal/treatments"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	LedgerHandler     *ledger.Handler
	PlanHandler       *plan.Handler
	InventoryHandler  *inventory.Handler
	PatientsHandler   *patients.Handler
	StaffHandler      *staff.Handler
	TreatmentsHandler *treatments.Handler
	ScheduleHandler   *schedule.Handler
	DocsHandler       *docgen.Handler
	PortalHandler     *portal.Handler
}

// NewRouter constructs the chi.Router with the clinic API mounts.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/ledger", params.LedgerHandler.MountRoutes)
	r.Route("/plans", params.PlanHandler.MountRoutes)
	r.Route("/inventory", params.InventoryHandler.MountRoutes)
	r.Route("/patients", params.PatientsHandler.MountRoutes)
	r.Route("/staff", params.StaffHandler.MountRoutes)
	r.Route("/treatments", params.TreatmentsHandler.MountRoutes)
	r.Route("/schedule", params.ScheduleHandler.MountRoutes)
	r.Route("/docs", params.DocsHandler.MountRoutes)

	if params.PortalHandler != nil {
		r.Route("/portal", func(r chi.Router) {
			r.Use(PortalRateLimit(params.Config))
			params.PortalHandler.MountRoutes(r)
		})
	}

	return r
}
