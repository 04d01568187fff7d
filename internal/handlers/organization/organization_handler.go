// internal/handlers/organization/organization_handler.go
package organization

import (
	"net/http"
	"strconv"

	"maproom-service/internal/domain/organization"
	"maproom-service/internal/middleware"
	"maproom-service/internal/pkg/response"
	service "maproom-service/internal/service/orgadmin"

	"github.com/gin-gonic/gin"
)

type OrganizationHandler struct {
	orgAdminService *service.OrgAdminService
}

func NewOrganizationHandler(orgAdminService *service.OrgAdminService) *OrganizationHandler {
	return &OrganizationHandler{
		orgAdminService: orgAdminService,
	}
}

// CreateOrganization creates an organization owned by the caller
func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req organization.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.orgAdminService.CreateOrganization(c.Request.Context(), identityID, &req)
	if err != nil {
		response.FromError(c, "failed to create organization", err)
		return
	}

	response.Success(c, http.StatusCreated, "organization created successfully", result)
}

// GetOrganization retrieves an organization visible to the caller
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	orgID, ok := h.orgParam(c)
	if !ok {
		return
	}

	result, err := h.orgAdminService.GetOrganization(c.Request.Context(), identityID, orgID)
	if err != nil {
		response.FromError(c, "organization not found", err)
		return
	}

	response.Success(c, http.StatusOK, "organization retrieved", result)
}

// ========== Admin Views ==========

// GetUsage returns per-member, per-resource consumption for the organization
func (h *OrganizationHandler) GetUsage(c *gin.Context) {
	orgID, ok := h.requireOrgAdmin(c)
	if !ok {
		return
	}

	result, err := h.orgAdminService.GetOrganizationUsage(c.Request.Context(), orgID)
	if err != nil {
		response.FromError(c, "failed to load usage", err)
		return
	}

	response.Success(c, http.StatusOK, "organization usage retrieved", result)
}

// GetSubscription lists active memberships with plan summaries
func (h *OrganizationHandler) GetSubscription(c *gin.Context) {
	orgID, ok := h.requireOrgAdmin(c)
	if !ok {
		return
	}

	result, err := h.orgAdminService.GetOrganizationSubscription(c.Request.Context(), orgID)
	if err != nil {
		response.FromError(c, "failed to load subscription view", err)
		return
	}

	response.Success(c, http.StatusOK, "organization subscription retrieved", result)
}

// GetBilling aggregates payments and renewal dates
func (h *OrganizationHandler) GetBilling(c *gin.Context) {
	orgID, ok := h.requireOrgAdmin(c)
	if !ok {
		return
	}

	result, err := h.orgAdminService.GetOrganizationBilling(c.Request.Context(), orgID)
	if err != nil {
		response.FromError(c, "failed to load billing view", err)
		return
	}

	response.Success(c, http.StatusOK, "organization billing retrieved", result)
}

// ========== Member Management ==========

// AddMember adds a user to the organization
func (h *OrganizationHandler) AddMember(c *gin.Context) {
	orgID, ok := h.requireOrgAdmin(c)
	if !ok {
		return
	}

	var req organization.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.orgAdminService.AddMember(c.Request.Context(), orgID, &req)
	if err != nil {
		response.FromError(c, "failed to add member", err)
		return
	}

	response.Success(c, http.StatusCreated, "member added successfully", result)
}

// UpdateMemberRole changes a member's role
func (h *OrganizationHandler) UpdateMemberRole(c *gin.Context) {
	orgID, ok := h.requireOrgAdmin(c)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user ID", err)
		return
	}

	var req struct {
		Role organization.MemberRole `json:"role" binding:"required,oneof=admin editor viewer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.orgAdminService.UpdateMemberRole(c.Request.Context(), orgID, userID, req.Role); err != nil {
		response.FromError(c, "failed to update member role", err)
		return
	}

	response.Success(c, http.StatusOK, "member role updated", nil)
}

// RemoveMember removes a user from the organization
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	orgID, ok := h.requireOrgAdmin(c)
	if !ok {
		return
	}

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user ID", err)
		return
	}

	if err := h.orgAdminService.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		response.FromError(c, "failed to remove member", err)
		return
	}

	response.Success(c, http.StatusOK, "member removed", nil)
}

// ListMembers lists every member of the organization
func (h *OrganizationHandler) ListMembers(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	orgID, ok := h.orgParam(c)
	if !ok {
		return
	}

	// any member may see the roster
	if _, err := h.orgAdminService.GetOrganization(c.Request.Context(), identityID, orgID); err != nil {
		response.FromError(c, "organization not found", err)
		return
	}

	result, err := h.orgAdminService.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		response.FromError(c, "failed to list members", err)
		return
	}

	response.Success(c, http.StatusOK, "members retrieved", result)
}

func (h *OrganizationHandler) orgParam(c *gin.Context) (int64, bool) {
	orgID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid organization ID", err)
		return 0, false
	}
	return orgID, true
}

// requireOrgAdmin resolves the org ID and checks that the caller administers
// it. Platform admins pass regardless of org membership.
func (h *OrganizationHandler) requireOrgAdmin(c *gin.Context) (int64, bool) {
	identityID := middleware.MustGetIdentityID(c)

	orgID, ok := h.orgParam(c)
	if !ok {
		return 0, false
	}

	if middleware.IsPlatformAdmin(c) {
		return orgID, true
	}

	isAdmin, err := h.orgAdminService.IsUserOrganizationAdmin(c.Request.Context(), identityID, orgID)
	if err != nil {
		response.FromError(c, "failed to check permissions", err)
		return 0, false
	}
	if !isAdmin {
		response.Forbidden(c, "organization admin role required")
		return 0, false
	}

	return orgID, true
}
