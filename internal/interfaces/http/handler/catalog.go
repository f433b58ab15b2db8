package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	appcatalog "github.com/resell/backend/internal/application/catalog"
	"github.com/resell/backend/internal/domain/catalog"
	"github.com/resell/backend/internal/interfaces/http/dto"
)

// CatalogHandler handles category mapping API endpoints
type CatalogHandler struct {
	BaseHandler
	service *appcatalog.MappingService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(service *appcatalog.MappingService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ResolveCategory resolves a product category to a marketplace category ID.
// This is a diagnostic endpoint; the dispatcher resolves during payload
// construction.
func (h *CatalogHandler) ResolveCategory(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	var req appcatalog.ResolveCategoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	resp, err := h.service.ResolveCategory(c.Request.Context(), tenantID, req)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}

	h.Success(c, resp)
}

// ValidateDefaults reports category and gender pairs violating the
// single-default rule
func (h *CatalogHandler) ValidateDefaults(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	violations, err := h.service.ValidateDefaults(c.Request.Context(), tenantID)
	if err != nil {
		h.handleCatalogError(c, err)
		return
	}

	h.Success(c, gin.H{"violations": violations})
}

// ReloadMappings rebuilds the tenant's cached mapping snapshot from storage
func (h *CatalogHandler) ReloadMappings(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	if _, err := h.service.Reload(c.Request.Context(), tenantID); err != nil {
		h.handleCatalogError(c, err)
		return
	}

	h.NoContent(c)
}

// handleCatalogError maps catalog domain errors onto HTTP status codes
func (h *CatalogHandler) handleCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrNoCategoryMapping):
		h.ErrorWithCode(c, dto.ErrCodeNoCategoryMapping, "No category mapping matches the given product")
	case errors.Is(err, catalog.ErrInvalidMapping):
		h.BadRequest(c, err.Error())
	default:
		h.HandleError(c, err)
	}
}
