// internal/handlers/membership/membership_handler.go
package membership

import (
	"net/http"
	"strconv"

	"maproom-service/internal/domain/membership"
	"maproom-service/internal/middleware"
	"maproom-service/internal/pkg/response"
	service "maproom-service/internal/service/membership"

	"github.com/gin-gonic/gin"
)

type MembershipHandler struct {
	membershipService *service.MembershipService
}

func NewMembershipHandler(membershipService *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{
		membershipService: membershipService,
	}
}

// ========== User Endpoints ==========

// PurchaseMembership activates a membership after checkout
func (h *MembershipHandler) PurchaseMembership(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req membership.PurchaseMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.membershipService.PurchaseMembership(c.Request.Context(), identityID, &req)
	if err != nil {
		response.FromError(c, "failed to purchase membership", err)
		return
	}

	response.Success(c, http.StatusCreated, "membership created successfully", result)
}

// RenewMembership advances the billing period after a renewal payment
func (h *MembershipHandler) RenewMembership(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req membership.RenewMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.membershipService.RenewMembership(c.Request.Context(), identityID, &req)
	if err != nil {
		response.FromError(c, "failed to renew membership", err)
		return
	}

	response.Success(c, http.StatusOK, "membership renewed successfully", result)
}

// CancelMembership cancels a membership immediately or at period end
func (h *MembershipHandler) CancelMembership(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	membershipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid membership ID", err)
		return
	}

	var req membership.CancelMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.membershipService.CancelMembership(c.Request.Context(), identityID, membershipID, &req); err != nil {
		response.FromError(c, "failed to cancel membership", err)
		return
	}

	response.Success(c, http.StatusOK, "membership cancelled", nil)
}

// GetActiveMembership returns the caller's active membership in an organization
func (h *MembershipHandler) GetActiveMembership(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	orgID, err := strconv.ParseInt(c.Query("organization_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid organization ID", err)
		return
	}

	result, err := h.membershipService.GetActiveMembership(c.Request.Context(), identityID, orgID)
	if err != nil {
		response.FromError(c, "no active membership found", err)
		return
	}

	response.Success(c, http.StatusOK, "active membership retrieved", result)
}

// GetMembership retrieves one of the caller's memberships
func (h *MembershipHandler) GetMembership(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	membershipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid membership ID", err)
		return
	}

	result, err := h.membershipService.GetMembership(c.Request.Context(), identityID, membershipID)
	if err != nil {
		response.FromError(c, "membership not found", err)
		return
	}

	response.Success(c, http.StatusOK, "membership retrieved", result)
}

// ListMemberships lists the caller's memberships with filters
func (h *MembershipHandler) ListMemberships(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var filters membership.MembershipListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.membershipService.ListMemberships(c.Request.Context(), identityID, &filters)
	if err != nil {
		response.FromError(c, "failed to list memberships", err)
		return
	}

	response.Success(c, http.StatusOK, "memberships retrieved", result)
}

// PurchaseAddon grants a time-bounded supplemental quota
func (h *MembershipHandler) PurchaseAddon(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req membership.PurchaseAddonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.membershipService.PurchaseAddon(c.Request.Context(), identityID, &req)
	if err != nil {
		response.FromError(c, "failed to purchase addon", err)
		return
	}

	response.Success(c, http.StatusCreated, "addon purchased successfully", result)
}

// ListActiveAddons lists addons currently contributing to a membership
func (h *MembershipHandler) ListActiveAddons(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	membershipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid membership ID", err)
		return
	}

	result, err := h.membershipService.ListActiveAddons(c.Request.Context(), identityID, membershipID)
	if err != nil {
		response.FromError(c, "failed to list addons", err)
		return
	}

	response.Success(c, http.StatusOK, "addons retrieved", result)
}

// ========== Admin Endpoints ==========

// SuspendMembership takes a membership out of service
func (h *MembershipHandler) SuspendMembership(c *gin.Context) {
	membershipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid membership ID", err)
		return
	}

	if err := h.membershipService.Suspend(c.Request.Context(), membershipID); err != nil {
		response.FromError(c, "failed to suspend membership", err)
		return
	}

	response.Success(c, http.StatusOK, "membership suspended", nil)
}

// ReactivateMembership restores a suspended membership
func (h *MembershipHandler) ReactivateMembership(c *gin.Context) {
	membershipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid membership ID", err)
		return
	}

	if err := h.membershipService.Reactivate(c.Request.Context(), membershipID); err != nil {
		response.FromError(c, "failed to reactivate membership", err)
		return
	}

	response.Success(c, http.StatusOK, "membership reactivated", nil)
}

// MarkPaymentFailed moves a membership to pending_payment
func (h *MembershipHandler) MarkPaymentFailed(c *gin.Context) {
	membershipID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid membership ID", err)
		return
	}

	if err := h.membershipService.MarkPaymentFailed(c.Request.Context(), membershipID); err != nil {
		response.FromError(c, "failed to mark payment failed", err)
		return
	}

	response.Success(c, http.StatusOK, "membership marked pending payment", nil)
}
