// internal/domain/membership/entity.go
package membership

import (
	"database/sql"
	"time"
)

type MembershipStatus string

const (
	StatusActive         MembershipStatus = "active"
	StatusExpired        MembershipStatus = "expired"
	StatusSuspended      MembershipStatus = "suspended"
	StatusPendingPayment MembershipStatus = "pending_payment"
	StatusCancelled      MembershipStatus = "cancelled"
)

type AddonStatus string

const (
	AddonActive    AddonStatus = "active"
	AddonCancelled AddonStatus = "cancelled"
)

// Membership binds one user to one organization under one plan.
// At most one membership per (user, org) is active at a time; rows are
// never physically deleted, only moved through statuses.
type Membership struct {
	ID                  int64  `json:"id" db:"id"`
	MembershipReference string `json:"membership_reference" db:"membership_reference"`

	UserID         int64 `json:"user_id" db:"user_id"`
	OrganizationID int64 `json:"organization_id" db:"organization_id"`
	PlanID         int64 `json:"plan_id" db:"plan_id"`

	Status MembershipStatus `json:"status" db:"status"`

	StartDate          time.Time    `json:"start_date" db:"start_date"`
	EndDate            sql.NullTime `json:"end_date,omitempty" db:"end_date"`
	CurrentPeriodStart time.Time    `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd   time.Time    `json:"current_period_end" db:"current_period_end"`

	AutoRenew    bool         `json:"auto_renew" db:"auto_renew"`
	RenewalCount int          `json:"renewal_count" db:"renewal_count"`
	LastResetAt  sql.NullTime `json:"last_reset_at,omitempty" db:"last_reset_at"`

	AmountPaid float64 `json:"amount_paid" db:"amount_paid"`
	Currency   string  `json:"currency" db:"currency"`

	CancelledAt        sql.NullTime   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason sql.NullString `json:"cancellation_reason,omitempty" db:"cancellation_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the membership is active and inside its period.
func (m *Membership) IsActive(now time.Time) bool {
	return m.Status == StatusActive && m.CurrentPeriodEnd.After(now)
}

// Usage is one consumption counter for a membership and resource type.
// Counters are zeroed at billing-cycle boundaries.
type Usage struct {
	ID             int64     `json:"id" db:"id"`
	MembershipID   int64     `json:"membership_id" db:"membership_id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	ResourceType   string    `json:"resource_type" db:"resource_type"`
	Consumed       int64     `json:"consumed" db:"consumed"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Addon is a time-bounded supplemental grant raising the effective limit
// of one resource type. Addons expire by falling out of their window; they
// are never deleted.
type Addon struct {
	ID             int64       `json:"id" db:"id"`
	MembershipID   int64       `json:"membership_id" db:"membership_id"`
	OrganizationID int64       `json:"organization_id" db:"organization_id"`
	ResourceType   string      `json:"resource_type" db:"resource_type"`
	Quantity       int64       `json:"quantity" db:"quantity"`
	EffectiveFrom  time.Time   `json:"effective_from" db:"effective_from"`
	ExpiresAt      time.Time   `json:"expires_at" db:"expires_at"`
	Status         AddonStatus `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// ActiveAt reports whether the addon contributes at the given instant.
// The window is half-open: [EffectiveFrom, ExpiresAt).
func (a *Addon) ActiveAt(t time.Time) bool {
	if a.Status != AddonActive {
		return false
	}
	return !t.Before(a.EffectiveFrom) && t.Before(a.ExpiresAt)
}
