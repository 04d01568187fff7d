// internal/domain/plan/entity.go
package plan

import (
	"database/sql"
	"time"
)

type PlanStatus string

const (
	StatusActive   PlanStatus = "active"
	StatusInactive PlanStatus = "inactive"
)

type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

// Unlimited is the sentinel limit value meaning "no ceiling" for a resource type.
const Unlimited int64 = -1

// Well-known resource types. Plans may carry limits for types not listed here;
// a type absent from a plan's limit map reads as zero allowance.
const (
	ResourceExport    = "export"
	ResourceMap       = "map"
	ResourceStorageMB = "storage_mb"
	ResourceAPICall   = "api_call"
)

type Plan struct {
	ID          int64          `json:"id" db:"id"`
	PlanCode    string         `json:"plan_code" db:"plan_code"`
	Name        string         `json:"name" db:"name"`
	Description sql.NullString `json:"description,omitempty" db:"description"`

	// Pricing
	Price    float64 `json:"price" db:"price"`
	Currency string  `json:"currency" db:"currency"`

	// Billing
	BillingCycle BillingCycle `json:"billing_cycle" db:"billing_cycle"`

	// Quotas: resource type -> ceiling, Unlimited (-1) means no ceiling.
	Limits map[string]int64 `json:"limits" db:"limits"`

	// Capability tokens granted by the plan
	FeatureFlags []string `json:"feature_flags" db:"feature_flags"`

	// Status
	Status   PlanStatus `json:"status" db:"status"`
	IsPublic bool       `json:"is_public" db:"is_public"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LimitFor returns the plan ceiling for a resource type.
// Unknown resource types read as zero allowance.
func (p *Plan) LimitFor(resourceType string) int64 {
	if p.Limits == nil {
		return 0
	}
	limit, ok := p.Limits[resourceType]
	if !ok {
		return 0
	}
	return limit
}

// HasFeature checks whether the plan grants a capability token.
func (p *Plan) HasFeature(flag string) bool {
	for _, f := range p.FeatureFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// CyclePeriod returns the period end for a cycle starting at the given time.
func (p *Plan) CyclePeriod(start time.Time) time.Time {
	switch p.BillingCycle {
	case CycleMonthly:
		return start.AddDate(0, 1, 0)
	case CycleQuarterly:
		return start.AddDate(0, 3, 0)
	case CycleYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}
