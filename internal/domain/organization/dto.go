// internal/domain/organization/dto.go
package organization

import "time"

// ResourceUsage is one consumed/limit pair for a resource type.
// Limit -1 means unlimited; Remaining is clamped at zero.
type ResourceUsage struct {
	ResourceType string `json:"resource_type"`
	Consumed     int64  `json:"consumed"`
	Limit        int64  `json:"limit"`
	Remaining    int64  `json:"remaining"`
	Unlimited    bool   `json:"unlimited"`
}

// MemberUsage aggregates the resource counters of one active membership.
type MemberUsage struct {
	MembershipID        int64           `json:"membership_id"`
	MembershipReference string          `json:"membership_reference"`
	UserID              int64           `json:"user_id"`
	PlanID              int64           `json:"plan_id"`
	PlanName            string          `json:"plan_name"`
	Resources           []ResourceUsage `json:"resources"`
}

type OrganizationUsageResponse struct {
	OrganizationID int64         `json:"organization_id"`
	Members        []MemberUsage `json:"members"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// MembershipSummary is one membership row for the admin dashboard.
type MembershipSummary struct {
	MembershipID        int64     `json:"membership_id"`
	MembershipReference string    `json:"membership_reference"`
	UserID              int64     `json:"user_id"`
	PlanID              int64     `json:"plan_id"`
	PlanName            string    `json:"plan_name"`
	Status              string    `json:"status"`
	AutoRenew           bool      `json:"auto_renew"`
	CurrentPeriodEnd    time.Time `json:"current_period_end"`
}

type OrganizationSubscriptionResponse struct {
	OrganizationID int64               `json:"organization_id"`
	Memberships    []MembershipSummary `json:"memberships"`
}

type OrganizationBillingResponse struct {
	OrganizationID    int64      `json:"organization_id"`
	ActiveMemberships int        `json:"active_memberships"`
	TotalPaid         float64    `json:"total_paid"`
	Currency          string     `json:"currency"`
	NextRenewalAt     *time.Time `json:"next_renewal_at,omitempty"`
}

type CreateOrganizationRequest struct {
	Name        string   `json:"name" binding:"required,max=255"`
	Slug        string   `json:"slug" binding:"required,max=100"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type AddMemberRequest struct {
	UserID int64      `json:"user_id" binding:"required"`
	Role   MemberRole `json:"role" binding:"required,oneof=owner admin editor viewer"`
}
