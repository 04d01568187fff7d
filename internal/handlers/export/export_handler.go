// internal/handlers/export/export_handler.go
package export

import (
	"net/http"
	"strconv"

	"maproom-service/internal/domain/export"
	"maproom-service/internal/middleware"
	"maproom-service/internal/pkg/response"
	service "maproom-service/internal/service/export"
	"maproom-service/internal/service/orgadmin"

	"github.com/gin-gonic/gin"
)

type ExportHandler struct {
	exportService   *service.ExportService
	orgAdminService *orgadmin.OrgAdminService
}

func NewExportHandler(exportService *service.ExportService, orgAdminService *orgadmin.OrgAdminService) *ExportHandler {
	return &ExportHandler{
		exportService:   exportService,
		orgAdminService: orgAdminService,
	}
}

// CreateExport consumes one export quota unit and queues the job for approval
func (h *ExportHandler) CreateExport(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req export.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.exportService.CreateExport(c.Request.Context(), identityID, &req)
	if err != nil {
		response.FromError(c, "failed to create export", err)
		return
	}

	response.Success(c, http.StatusCreated, "export requested, pending approval", result)
}

// GetExport retrieves an export job visible to the caller
func (h *ExportHandler) GetExport(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	exportID, ok := h.exportParam(c)
	if !ok {
		return
	}

	job, err := h.exportService.GetExport(c.Request.Context(), identityID, exportID, middleware.IsPlatformAdmin(c))
	if err != nil {
		response.FromError(c, "export not found", err)
		return
	}

	response.Success(c, http.StatusOK, "export retrieved", job)
}

// ListExports lists an organization's export jobs; non-admins only see their own
func (h *ExportHandler) ListExports(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	orgID, err := strconv.ParseInt(c.Query("organization_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid organization ID", err)
		return
	}

	var filters export.ExportListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	isAdmin, err := h.isOrgAdmin(c, identityID, orgID)
	if err != nil {
		response.FromError(c, "failed to check permissions", err)
		return
	}

	result, err := h.exportService.ListExports(c.Request.Context(), identityID, orgID, isAdmin, &filters)
	if err != nil {
		response.FromError(c, "failed to list exports", err)
		return
	}

	response.Success(c, http.StatusOK, "exports retrieved", result)
}

// ApproveExport approves a pending export (org admin)
func (h *ExportHandler) ApproveExport(c *gin.Context) {
	h.decide(c, true)
}

// RejectExport rejects a pending export (org admin)
func (h *ExportHandler) RejectExport(c *gin.Context) {
	h.decide(c, false)
}

func (h *ExportHandler) decide(c *gin.Context, approve bool) {
	identityID := middleware.MustGetIdentityID(c)

	exportID, ok := h.exportParam(c)
	if !ok {
		return
	}

	var req export.DecideExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	// the decider must administer the organization the job belongs to
	job, err := h.exportService.GetExport(c.Request.Context(), identityID, exportID, true)
	if err != nil {
		response.FromError(c, "export not found", err)
		return
	}

	isAdmin, err := h.isOrgAdmin(c, identityID, job.OrganizationID)
	if err != nil {
		response.FromError(c, "failed to check permissions", err)
		return
	}
	if !isAdmin {
		response.Forbidden(c, "organization admin role required")
		return
	}

	if approve {
		err = h.exportService.ApproveExport(c.Request.Context(), identityID, exportID, req.Reason)
	} else {
		err = h.exportService.RejectExport(c.Request.Context(), identityID, exportID, req.Reason)
	}
	if err != nil {
		response.FromError(c, "failed to decide export", err)
		return
	}

	if approve {
		response.Success(c, http.StatusOK, "export approved", nil)
	} else {
		response.Success(c, http.StatusOK, "export rejected", nil)
	}
}

// CompleteExport records the rendered artifact (internal/worker endpoint)
func (h *ExportHandler) CompleteExport(c *gin.Context) {
	exportID, ok := h.exportParam(c)
	if !ok {
		return
	}

	var req struct {
		ResultURL string `json:"result_url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.exportService.CompleteExport(c.Request.Context(), exportID, req.ResultURL); err != nil {
		response.FromError(c, "failed to complete export", err)
		return
	}

	response.Success(c, http.StatusOK, "export completed", nil)
}

// FailExport records a rendering failure (internal/worker endpoint)
func (h *ExportHandler) FailExport(c *gin.Context) {
	exportID, ok := h.exportParam(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.exportService.FailExport(c.Request.Context(), exportID, req.Reason); err != nil {
		response.FromError(c, "failed to mark export failed", err)
		return
	}

	response.Success(c, http.StatusOK, "export marked failed", nil)
}

func (h *ExportHandler) exportParam(c *gin.Context) (int64, bool) {
	exportID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid export ID", err)
		return 0, false
	}
	return exportID, true
}

func (h *ExportHandler) isOrgAdmin(c *gin.Context, identityID, orgID int64) (bool, error) {
	if middleware.IsPlatformAdmin(c) {
		return true, nil
	}
	return h.orgAdminService.IsUserOrganizationAdmin(c.Request.Context(), identityID, orgID)
}
