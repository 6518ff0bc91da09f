// Package jobs provides the job lifecycle and price reconciliation module.
package jobs

import (
	apphttp "nordflytt_backend/internal/http"
	"nordflytt_backend/internal/jobs/handler"
	"nordflytt_backend/internal/jobs/repository"
	"nordflytt_backend/internal/jobs/service"
	"nordflytt_backend/internal/pricing"
	"nordflytt_backend/platform/events"
	"nordflytt_backend/platform/logger"
	"nordflytt_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the jobs domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new jobs module with all dependencies wired. The
// booking port comes from the adapters package to keep the module decoupled
// from the bookings module.
func NewModule(
	pool *pgxpool.Pool,
	bookings service.BookingPort,
	rates pricing.RateCard,
	eventBus *events.InMemoryBus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, bookings, rates, log)
	svc.SetEventBus(eventBus)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "jobs"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	jobs := ctx.Protected.Group("/jobs")
	m.handler.RegisterRoutes(jobs)

	// Clearing a consistency latch requires a human decision.
	admin := ctx.Admin.Group("/jobs")
	m.handler.RegisterAdminRoutes(admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
