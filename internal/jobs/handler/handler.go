// Package handler exposes the jobs HTTP endpoints.
package handler

import (
	"net/http"

	"nordflytt_backend/internal/jobs/repository"
	"nordflytt_backend/internal/jobs/service"
	"nordflytt_backend/internal/jobs/transport"
	"nordflytt_backend/platform/httpkit"
	"nordflytt_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for jobs
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new jobs handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the job routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.GET("/:id/entries", h.ListEntries)
	rg.POST("/:id/entries", h.AppendEntry)
	rg.POST("/:id/reconcile", h.Reconcile)
	rg.POST("/:id/volume-adjustment", h.VolumeAdjustment)
}

// RegisterAdminRoutes registers routes reserved for back-office staff.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/unlock-price", h.UnlockPrice)
}

// List handles GET /api/v1/jobs
func (h *Handler) List(c *gin.Context) {
	var req transport.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	var status *repository.Status
	if req.Status != "" {
		s := repository.Status(req.Status)
		status = &s
	}

	jobs, err := h.svc.List(c.Request.Context(), status)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, transport.ToJobResponse(&jobs[i]))
	}
	httpkit.OK(c, out)
}

// GetByID handles GET /api/v1/jobs/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	job, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToJobResponse(job))
}

// UpdateStatus handles PATCH /api/v1/jobs/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	if err := h.svc.Advance(c.Request.Context(), id, repository.Status(req.Status)); httpkit.HandleError(c, err) {
		return
	}

	job, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToJobResponse(job))
}

// AppendEntry handles POST /api/v1/jobs/:id/entries
func (h *Handler) AppendEntry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.AppendEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	entry, err := h.svc.Append(c.Request.Context(), id, req.ToParams())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToEntryResponse(entry))
}

// ListEntries handles GET /api/v1/jobs/:id/entries
func (h *Handler) ListEntries(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	entries, err := h.svc.ListEntries(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToEntryListResponse(entries))
}

// Reconcile handles POST /api/v1/jobs/:id/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.svc.Reconcile(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// VolumeAdjustment handles POST /api/v1/jobs/:id/volume-adjustment
func (h *Handler) VolumeAdjustment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.VolumeAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	entry, err := h.svc.RecordVolumeAdjustment(c.Request.Context(), id, req.ActualVolumeM3, req.AddedBy)
	if httpkit.HandleError(c, err) {
		return
	}

	job, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.VolumeAdjustmentResponse{Job: transport.ToJobResponse(job)}
	if entry != nil {
		e := transport.ToEntryResponse(entry)
		resp.OverageEntry = &e
	}
	httpkit.OK(c, resp)
}

// UnlockPrice handles POST /api/v1/admin/jobs/:id/unlock-price
func (h *Handler) UnlockPrice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.UnlockPrice(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}

	job, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToJobResponse(job))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
