// internal/domain/plan/dto.go
package plan

type CreatePlanRequest struct {
	PlanCode    string `json:"plan_code" binding:"required,max=50"`
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`

	// Pricing
	Price    float64 `json:"price" binding:"min=0"`
	Currency string  `json:"currency" binding:"required,len=3"`

	// Billing
	BillingCycle BillingCycle `json:"billing_cycle" binding:"required"`

	// Quotas and features
	Limits       map[string]int64 `json:"limits" binding:"required"`
	FeatureFlags []string         `json:"feature_flags"`

	// Status
	IsPublic bool `json:"is_public"`
}

type UpdatePlanRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	Description *string `json:"description"`

	Price        *float64      `json:"price" binding:"omitempty,min=0"`
	BillingCycle *BillingCycle `json:"billing_cycle"`

	Limits       map[string]int64 `json:"limits"`
	FeatureFlags []string         `json:"feature_flags"`

	IsPublic *bool `json:"is_public"`
}

type PlanListFilters struct {
	Status    *PlanStatus `form:"status"`
	IsPublic  *bool       `form:"is_public"`
	Search    string      `form:"search"`
	Page      int         `form:"page" binding:"min=0"`
	PageSize  int         `form:"page_size" binding:"min=0,max=100"`
	SortBy    string      `form:"sort_by"` // price, name, created_at
	SortOrder string      `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

type PlanListResponse struct {
	Plans      []Plan `json:"plans"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}
