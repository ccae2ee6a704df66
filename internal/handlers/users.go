package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/internal/services"
	"github.com/palisade-admin/palisade/pkg/response"
)

// UserHandler exposes user management endpoints.
type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8"`
	IsActive *bool  `json:"is_active"`
	RoleIDs  []uint `json:"role_ids"`
}

type updateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=64"`
	IsActive *bool   `json:"is_active"`
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

type assignIDsRequest struct {
	IDs []uint `json:"ids"`
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	req := pageRequest(c)
	filters := collectFilters(c, "username", "username__contains", "is_active")

	page, err := h.service.List(requestContext(c), req, filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Items, response.PageMeta(req.Page, req.Size, page.Total))
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	user, err := h.service.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Create(requestContext(c), services.CreateUserInput{
		Username: body.Username,
		Password: body.Password,
		IsActive: body.IsActive,
		RoleIDs:  body.RoleIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// PATCH /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updateUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Update(requestContext(c), id, services.UpdateUserInput{
		Username: body.Username,
		IsActive: body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PUT /api/users/:id/password
func (h *UserHandler) SetPassword(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body setPasswordRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.service.SetPassword(requestContext(c), id, body.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// PUT /api/users/:id/roles
func (h *UserHandler) AssignRoles(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body assignIDsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.service.AssignRoles(requestContext(c), id, body.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// PUT /api/users/:id/departments
func (h *UserHandler) AssignDepartments(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body assignIDsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.service.AssignDepartments(requestContext(c), id, body.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
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
