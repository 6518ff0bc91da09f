// Package handler exposes the bookings HTTP endpoints.
package handler

import (
	"net/http"

	"nordflytt_backend/internal/bookings/service"
	"nordflytt_backend/internal/bookings/transport"
	"nordflytt_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// Handler handles HTTP requests for bookings
type Handler struct {
	svc *service.Service
}

// New creates a new bookings handler
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the booking routes. The recalculate endpoint under
// /bookings belongs to the quotes module, which owns repricing.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
}

// List handles GET /api/v1/bookings
func (h *Handler) List(c *gin.Context) {
	bookings, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBookingListResponse(bookings))
}

// GetByID handles GET /api/v1/bookings/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	booking, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBookingResponse(booking))
}
