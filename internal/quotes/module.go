// Package quotes provides the quote lifecycle domain module.
package quotes

import (
	"nordflytt_backend/internal/geo"
	apphttp "nordflytt_backend/internal/http"
	"nordflytt_backend/internal/pricing"
	"nordflytt_backend/internal/quotes/handler"
	"nordflytt_backend/internal/quotes/repository"
	"nordflytt_backend/internal/quotes/service"
	"nordflytt_backend/platform/config"
	"nordflytt_backend/platform/events"
	"nordflytt_backend/platform/logger"
	"nordflytt_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the quotes domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new quotes module with all dependencies wired. The job
// and booking ports come from the adapters package to keep the module
// decoupled from its sibling modules.
func NewModule(
	pool *pgxpool.Pool,
	calc *pricing.Calculator,
	allocator *pricing.RUTAllocator,
	resolver geo.Resolver,
	jobs service.JobPort,
	bookings service.BookingPort,
	policy config.QuotePolicyConfig,
	eventBus *events.InMemoryBus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, calc, allocator, resolver, jobs, bookings, policy, log)
	svc.SetEventBus(eventBus)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "quotes"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// SetExpirySweeper attaches the task queue client for on-demand expiry sweeps.
func (m *Module) SetExpirySweeper(sweeper handler.ExpirySweeper) {
	m.handler.SetExpirySweeper(sweeper)
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	quotes := ctx.Protected.Group("/quotes")
	m.handler.RegisterRoutes(quotes)

	// Recalculation hangs off the booking whose addresses changed.
	ctx.Protected.POST("/bookings/:id/recalculate", m.handler.Recalculate)

	admin := ctx.Admin.Group("/quotes")
	m.handler.RegisterAdminRoutes(admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
