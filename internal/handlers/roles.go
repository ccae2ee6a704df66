package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/internal/services"
	"github.com/palisade-admin/palisade/pkg/response"
)

// RoleHandler exposes role management endpoints.
type RoleHandler struct {
	service *services.RoleService
}

func NewRoleHandler(service *services.RoleService) *RoleHandler {
	return &RoleHandler{service: service}
}

type createRoleRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=64"`
	Description   string `json:"description" validate:"max=255"`
	PermissionIDs []uint `json:"permission_ids"`
}

type updateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=64"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

// GET /api/roles
func (h *RoleHandler) List(c *gin.Context) {
	req := pageRequest(c)
	filters := collectFilters(c, "name", "name__contains")

	page, err := h.service.List(requestContext(c), req, filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Items, response.PageMeta(req.Page, req.Size, page.Total))
}

// GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	role, err := h.service.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// POST /api/roles
func (h *RoleHandler) Create(c *gin.Context) {
	var body createRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.service.Create(requestContext(c), services.CreateRoleInput{
		Name:          body.Name,
		Description:   body.Description,
		PermissionIDs: body.PermissionIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.service.Update(requestContext(c), id, services.UpdateRoleInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// PUT /api/roles/:id/permissions
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body assignIDsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.service.SetPermissions(requestContext(c), id, body.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
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
