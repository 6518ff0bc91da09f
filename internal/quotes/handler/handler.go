// Package handler exposes the quotes HTTP endpoints.
package handler

import (
	"context"
	"net/http"
	"time"

	"nordflytt_backend/internal/quotes/service"
	"nordflytt_backend/internal/quotes/transport"
	"nordflytt_backend/platform/httpkit"
	"nordflytt_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// ExpirySweeper enqueues an on-demand expiry sweep on the task queue.
type ExpirySweeper interface {
	EnqueueExpirySweep(ctx context.Context, runAt time.Time) error
}

// Handler handles HTTP requests for quotes
type Handler struct {
	svc     *service.Service
	val     *validator.Validator
	sweeper ExpirySweeper
}

// New creates a new quotes handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SetExpirySweeper attaches the task queue client for on-demand sweeps.
func (h *Handler) SetExpirySweeper(sweeper ExpirySweeper) {
	h.sweeper = sweeper
}

// RegisterAdminRoutes registers the admin-only quote routes.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/expiry-sweep", h.TriggerExpirySweep)
}

// RegisterRoutes registers the quote routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/issue", h.Issue)
	rg.POST("/:id/accept", h.Accept)
}

// Create handles POST /api/v1/quotes
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	quote, err := h.svc.Create(c.Request.Context(), req.ToParams())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToQuoteResponse(quote))
}

// List handles GET /api/v1/quotes
func (h *Handler) List(c *gin.Context) {
	var req transport.ListQuotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), req.ToParams())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToListResponse(result))
}

// GetByID handles GET /api/v1/quotes/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	quote, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToQuoteResponse(quote))
}

// Issue handles POST /api/v1/quotes/:id/issue
func (h *Handler) Issue(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	quote, err := h.svc.Issue(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToQuoteResponse(quote))
}

// Accept handles POST /api/v1/quotes/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	quote, err := h.svc.Accept(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToQuoteResponse(quote))
}

// Recalculate handles POST /api/v1/bookings/:id/recalculate
func (h *Handler) Recalculate(c *gin.Context) {
	bookingID, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.RecalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Recalculate(c.Request.Context(), bookingID, req.OriginAddress, req.DestinationAddress)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.RecalculationResponse{
		Quote:             transport.ToQuoteResponse(result.Quote),
		DistanceKm:        result.DistanceKm,
		DeltaOre:          result.DeltaOre,
		RequiresReconsent: result.RequiresReconsent,
	})
}

// TriggerExpirySweep handles POST /api/v1/admin/quotes/expiry-sweep. It
// enqueues a sweep on the task queue instead of running it inline so the
// request returns quickly and the sweep shares the worker's retry semantics.
func (h *Handler) TriggerExpirySweep(c *gin.Context) {
	if h.sweeper == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, "task queue not configured", nil)
		return
	}

	now := time.Now()
	if err := h.sweeper.EnqueueExpirySweep(c.Request.Context(), now); err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to enqueue expiry sweep", nil)
		return
	}

	httpkit.JSON(c, http.StatusAccepted, gin.H{"enqueuedAt": now})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
