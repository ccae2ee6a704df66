package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/palisade-admin/palisade/internal/services"
	"github.com/palisade-admin/palisade/pkg/response"
)

// AuditHandler exposes read access to the audit trail.
type AuditHandler struct {
	service *services.AuditService
}

func NewAuditHandler(service *services.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// GET /api/audit-logs
func (h *AuditHandler) List(c *gin.Context) {
	req := pageRequest(c)
	filters := collectFilters(c, "user_id", "action", "action__startswith", "resource", "result",
		"created_at__gt", "created_at__lt")

	page, err := h.service.List(requestContext(c), req, filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Items, response.PageMeta(req.Page, req.Size, page.Total))
}

// GET /api/audit-logs/export
func (h *AuditHandler) Export(c *gin.Context) {
	filters := collectFilters(c, "user_id", "action", "action__startswith", "resource", "result",
		"created_at__gt", "created_at__lt")

	logs, err := h.service.Export(requestContext(c), filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, logs)
}
