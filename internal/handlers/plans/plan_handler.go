// internal/handlers/plans/plan_handler.go
package plans

import (
	"net/http"
	"strconv"

	"maproom-service/internal/domain/plan"
	"maproom-service/internal/pkg/response"
	service "maproom-service/internal/service/plans"

	"github.com/gin-gonic/gin"
)

type PlanHandler struct {
	planService *service.PlanService
}

func NewPlanHandler(planService *service.PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
	}
}

// ========== Public Endpoints ==========

// ListPublicPlans lists active public plans for the pricing page
func (h *PlanHandler) ListPublicPlans(c *gin.Context) {
	var filters plan.PlanListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.planService.ListPublicPlans(c.Request.Context(), &filters)
	if err != nil {
		response.FromError(c, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", result)
}

// GetPlan retrieves a plan by ID
func (h *PlanHandler) GetPlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	result, err := h.planService.GetPlan(c.Request.Context(), planID)
	if err != nil {
		response.FromError(c, "plan not found", err)
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", result)
}

// GetPlanByCode retrieves a plan by its code
func (h *PlanHandler) GetPlanByCode(c *gin.Context) {
	result, err := h.planService.GetPlanByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.FromError(c, "plan not found", err)
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", result)
}

// ========== Admin Endpoints ==========

// CreatePlan creates a new plan
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req plan.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.planService.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to create plan", err)
		return
	}

	response.Success(c, http.StatusCreated, "plan created successfully", result)
}

// UpdatePlan applies a partial update to a plan
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	var req plan.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.planService.UpdatePlan(c.Request.Context(), planID, &req)
	if err != nil {
		response.FromError(c, "failed to update plan", err)
		return
	}

	response.Success(c, http.StatusOK, "plan updated successfully", result)
}

// ActivatePlan makes a plan purchasable
func (h *PlanHandler) ActivatePlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	if err := h.planService.ActivatePlan(c.Request.Context(), planID); err != nil {
		response.FromError(c, "failed to activate plan", err)
		return
	}

	response.Success(c, http.StatusOK, "plan activated", nil)
}

// DeactivatePlan blocks new purchases of a plan
func (h *PlanHandler) DeactivatePlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	if err := h.planService.DeactivatePlan(c.Request.Context(), planID); err != nil {
		response.FromError(c, "failed to deactivate plan", err)
		return
	}

	response.Success(c, http.StatusOK, "plan deactivated", nil)
}

// DeletePlan removes a plan with no memberships
func (h *PlanHandler) DeletePlan(c *gin.Context) {
	planID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid plan ID", err)
		return
	}

	if err := h.planService.DeletePlan(c.Request.Context(), planID); err != nil {
		response.FromError(c, "failed to delete plan", err)
		return
	}

	response.Success(c, http.StatusOK, "plan deleted", nil)
}

// ListPlans lists every plan, including private and inactive ones
func (h *PlanHandler) ListPlans(c *gin.Context) {
	var filters plan.PlanListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.planService.ListPlans(c.Request.Context(), &filters)
	if err != nil {
		response.FromError(c, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", result)
}
