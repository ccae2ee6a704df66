package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/services"
	"github.com/palisade-admin/palisade/pkg/response"
)

// PermissionHandler exposes permission catalogue endpoints.
type PermissionHandler struct {
	service *services.PermissionService
}

func NewPermissionHandler(service *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

type createPermissionRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
	Type        string `json:"type" validate:"omitempty,oneof=api menu button"`
	Path        string `json:"path" validate:"max=255"`
	Method      string `json:"method" validate:"max=10"`
}

type updatePermissionRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=64"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	Path        *string `json:"path" validate:"omitempty,max=255"`
	Method      *string `json:"method" validate:"omitempty,max=10"`
}

// GET /api/permissions
func (h *PermissionHandler) List(c *gin.Context) {
	req := pageRequest(c)
	filters := collectFilters(c, "name", "name__contains", "type", "method")

	page, err := h.service.List(requestContext(c), req, filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Items, response.PageMeta(req.Page, req.Size, page.Total))
}

// GET /api/permissions/:id
func (h *PermissionHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	perm, err := h.service.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perm)
}

// POST /api/permissions
func (h *PermissionHandler) Create(c *gin.Context) {
	var body createPermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	perm, err := h.service.Create(requestContext(c), services.CreatePermissionInput{
		Name:        body.Name,
		Description: body.Description,
		Type:        models.PermissionType(body.Type),
		Path:        body.Path,
		Method:      body.Method,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, perm)
}

// PATCH /api/permissions/:id
func (h *PermissionHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updatePermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	perm, err := h.service.Update(requestContext(c), id, services.UpdatePermissionInput{
		Name:        body.Name,
		Description: body.Description,
		Path:        body.Path,
		Method:      body.Method,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perm)
}

// DELETE /api/permissions/:id
func (h *PermissionHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.service.Delete(requestContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
