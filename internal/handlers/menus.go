package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/internal/middleware"
	"github.com/palisade-admin/palisade/internal/services"
	"github.com/palisade-admin/palisade/pkg/errors"
	"github.com/palisade-admin/palisade/pkg/response"
)

// MenuHandler exposes navigation management endpoints.
type MenuHandler struct {
	service *services.MenuService
}

func NewMenuHandler(service *services.MenuService) *MenuHandler {
	return &MenuHandler{service: service}
}

type createMenuRequest struct {
	Code         string  `json:"code" validate:"required,min=2,max=64"`
	Title        string  `json:"title" validate:"required,min=1,max=64"`
	IsDirectory  bool    `json:"is_directory"`
	Path         *string `json:"path" validate:"omitempty,max=255"`
	Icon         string  `json:"icon" validate:"max=64"`
	Sort         int     `json:"sort"`
	IsVisible    *bool   `json:"is_visible"`
	ParentID     *uint   `json:"parent_id"`
	PermissionID *uint   `json:"permission_id"`
}

type updateMenuRequest struct {
	Title        *string `json:"title" validate:"omitempty,min=1,max=64"`
	Path         *string `json:"path" validate:"omitempty,max=255"`
	Icon         *string `json:"icon" validate:"omitempty,max=64"`
	Sort         *int    `json:"sort"`
	IsVisible    *bool   `json:"is_visible"`
	PermissionID *uint   `json:"permission_id"`
	ClearPerm    bool    `json:"clear_permission"`
}

// GET /api/menus
func (h *MenuHandler) List(c *gin.Context) {
	req := pageRequest(c)
	filters := collectFilters(c, "code", "title__contains", "is_visible", "parent_id")

	page, err := h.service.List(requestContext(c), req, filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Items, response.PageMeta(req.Page, req.Size, page.Total))
}

// GET /api/menus/tree
func (h *MenuHandler) Tree(c *gin.Context) {
	tree, err := h.service.Tree(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tree)
}

// GET /api/menus/visible
func (h *MenuHandler) VisibleTree(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	tree, err := h.service.VisibleTree(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tree)
}

// GET /api/menus/:id
func (h *MenuHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	menu, err := h.service.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, menu)
}

// POST /api/menus
func (h *MenuHandler) Create(c *gin.Context) {
	var body createMenuRequest
	if !bindAndValidate(c, &body) {
		return
	}

	menu, err := h.service.Create(requestContext(c), services.CreateMenuInput{
		Code:         body.Code,
		Title:        body.Title,
		IsDirectory:  body.IsDirectory,
		Path:         body.Path,
		Icon:         body.Icon,
		Sort:         body.Sort,
		IsVisible:    body.IsVisible,
		ParentID:     body.ParentID,
		PermissionID: body.PermissionID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, menu)
}

// PATCH /api/menus/:id
func (h *MenuHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateMenuRequest
	if !bindAndValidate(c, &body) {
		return
	}

	menu, err := h.service.Update(requestContext(c), id, services.UpdateMenuInput{
		Title:        body.Title,
		Path:         body.Path,
		Icon:         body.Icon,
		Sort:         body.Sort,
		IsVisible:    body.IsVisible,
		PermissionID: body.PermissionID,
		ClearPerm:    body.ClearPerm,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, menu)
}

// DELETE /api/menus/:id
func (h *MenuHandler) Delete(c *gin.Context) {
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
