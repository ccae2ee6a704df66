package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/internal/services"
	"github.com/palisade-admin/palisade/pkg/response"
)

// DepartmentHandler exposes the organizational tree endpoints.
type DepartmentHandler struct {
	service *services.DepartmentService
}

func NewDepartmentHandler(service *services.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{service: service}
}

type createDepartmentRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=64"`
	ParentID *uint  `json:"parent_id"`
}

type renameDepartmentRequest struct {
	Name string `json:"name" validate:"required,min=2,max=64"`
}

// GET /api/departments
func (h *DepartmentHandler) List(c *gin.Context) {
	req := pageRequest(c)
	filters := collectFilters(c, "name", "name__contains", "parent_id")

	page, err := h.service.List(requestContext(c), req, filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Items, response.PageMeta(req.Page, req.Size, page.Total))
}

// GET /api/departments/tree
func (h *DepartmentHandler) Tree(c *gin.Context) {
	tree, err := h.service.Tree(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tree)
}

// GET /api/departments/:id
func (h *DepartmentHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	dept, err := h.service.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dept)
}

// GET /api/departments/:id/subtree
func (h *DepartmentHandler) Subtree(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	depts, err := h.service.Subtree(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, depts)
}

// POST /api/departments
func (h *DepartmentHandler) Create(c *gin.Context) {
	var body createDepartmentRequest
	if !bindAndValidate(c, &body) {
		return
	}

	dept, err := h.service.Create(requestContext(c), services.CreateDepartmentInput{
		Name:     body.Name,
		ParentID: body.ParentID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dept)
}

// PATCH /api/departments/:id
func (h *DepartmentHandler) Rename(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body renameDepartmentRequest
	if !bindAndValidate(c, &body) {
		return
	}

	dept, err := h.service.Rename(requestContext(c), id, body.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dept)
}

// DELETE /api/departments/:id
func (h *DepartmentHandler) Delete(c *gin.Context) {
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
