// internal/domain/membership/dto.go
package membership

import "time"

type PurchaseMembershipRequest struct {
	OrganizationID   int64   `json:"organization_id" binding:"required"`
	PlanID           int64   `json:"plan_id" binding:"required"`
	AutoRenew        bool    `json:"auto_renew"`
	AmountPaid       float64 `json:"amount_paid" binding:"min=0"`
	Currency         string  `json:"currency" binding:"required,len=3"`
	PaymentReference string  `json:"payment_reference"`
}

type RenewMembershipRequest struct {
	OrganizationID   int64   `json:"organization_id" binding:"required"`
	AmountPaid       float64 `json:"amount_paid" binding:"min=0"`
	PaymentReference string  `json:"payment_reference"`
}

type CancelMembershipRequest struct {
	Reason            string `json:"reason"`
	CancelImmediately bool   `json:"cancel_immediately"`
}

type PurchaseAddonRequest struct {
	MembershipID int64     `json:"membership_id" binding:"required"`
	ResourceType string    `json:"resource_type" binding:"required"`
	Quantity     int64     `json:"quantity" binding:"required,min=1"`
	ExpiresAt    time.Time `json:"expires_at" binding:"required"`
}

type MembershipListFilters struct {
	Status         *MembershipStatus `form:"status"`
	OrganizationID *int64            `form:"organization_id"`
	PlanID         *int64            `form:"plan_id"`
	Page           int               `form:"page" binding:"min=0"`
	PageSize       int               `form:"page_size" binding:"min=0,max=100"`
	SortBy         string            `form:"sort_by"`
	SortOrder      string            `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

type MembershipListResponse struct {
	Memberships []Membership `json:"memberships"`
	Total       int64        `json:"total"`
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
	TotalPages  int          `json:"total_pages"`
}
