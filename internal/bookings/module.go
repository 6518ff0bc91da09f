// Package bookings provides the booking read model and price snapshot module.
package bookings

import (
	"nordflytt_backend/internal/bookings/handler"
	"nordflytt_backend/internal/bookings/repository"
	"nordflytt_backend/internal/bookings/service"
	apphttp "nordflytt_backend/internal/http"
	"nordflytt_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the bookings domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new bookings module with all dependencies wired
func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "bookings"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	bookings := ctx.Protected.Group("/bookings")
	m.handler.RegisterRoutes(bookings)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
