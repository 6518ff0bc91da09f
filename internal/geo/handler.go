package geo

import (
	"net/http"

	"nordflytt_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler exposes the address lookup and distance endpoints.
type Handler struct {
	svc      *Service
	resolver Resolver
}

func NewHandler(svc *Service, resolver Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

// LookupAddress handles GET /api/v1/geo/address-lookup?q=...
func (h *Handler) LookupAddress(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "query 'q' is required (min 3 chars)", nil)
		return
	}

	results, err := h.svc.SearchAddress(c.Request.Context(), req.Query)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, results)
}

// ResolveDistance handles POST /api/v1/geo/distance.
func (h *Handler) ResolveDistance(c *gin.Context) {
	var req DistanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "origin and destination are required (min 3 chars)", nil)
		return
	}

	km, err := h.resolver.Distance(c.Request.Context(), req.Origin, req.Destination)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, DistanceResponse{DistanceKm: km})
}
