// internal/handlers/quota/quota_handler.go
package quota

import (
	"net/http"
	"strconv"

	"maproom-service/internal/domain/quota"
	"maproom-service/internal/middleware"
	"maproom-service/internal/pkg/response"
	service "maproom-service/internal/service/quota"

	"github.com/gin-gonic/gin"
)

type QuotaHandler struct {
	quotaService *service.QuotaService
}

func NewQuotaHandler(quotaService *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{
		quotaService: quotaService,
	}
}

// CheckQuota reports whether a consume would succeed, without consuming
func (h *QuotaHandler) CheckQuota(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req quota.CheckQuotaRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.quotaService.CheckQuota(c.Request.Context(), identityID, req.OrganizationID, req.ResourceType, req.Amount)
	if err != nil {
		response.FromError(c, "failed to check quota", err)
		return
	}

	response.Success(c, http.StatusOK, "quota checked", result)
}

// ConsumeQuota atomically records usage within the limit
func (h *QuotaHandler) ConsumeQuota(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req quota.ConsumeQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	ok, err := h.quotaService.ConsumeQuota(c.Request.Context(), identityID, req.OrganizationID, req.ResourceType, req.Amount)
	if err != nil {
		response.FromError(c, "failed to consume quota", err)
		return
	}

	if !ok {
		response.Error(c, http.StatusForbidden, "quota exceeded", nil, quota.ConsumeQuotaResponse{Consumed: false})
		return
	}

	response.Success(c, http.StatusOK, "quota consumed", quota.ConsumeQuotaResponse{Consumed: true})
}

// HasFeature reports whether the caller's plan grants a feature flag
func (h *QuotaHandler) HasFeature(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	orgID, err := strconv.ParseInt(c.Query("organization_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid organization ID", err)
		return
	}

	flag := c.Param("flag")
	if flag == "" {
		response.Error(c, http.StatusBadRequest, "missing feature flag", nil)
		return
	}

	has, err := h.quotaService.HasFeature(c.Request.Context(), identityID, orgID, flag)
	if err != nil {
		response.FromError(c, "failed to check feature", err)
		return
	}

	response.Success(c, http.StatusOK, "feature checked", quota.HasFeatureResponse{HasFeature: has})
}

// GetUsage returns every counter of the caller's active membership
func (h *QuotaHandler) GetUsage(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	orgID, err := strconv.ParseInt(c.Query("organization_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid organization ID", err)
		return
	}

	usage, err := h.quotaService.GetUsage(c.Request.Context(), identityID, orgID)
	if err != nil {
		response.FromError(c, "failed to load usage", err)
		return
	}

	response.Success(c, http.StatusOK, "usage retrieved", usage)
}
