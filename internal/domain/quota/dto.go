// internal/domain/quota/dto.go
package quota

// CheckQuotaResult is the outcome of a read-only quota check.
// When Unlimited is true, Limit and Remaining are -1.
type CheckQuotaResult struct {
	Allowed   bool  `json:"allowed"`
	Unlimited bool  `json:"unlimited"`
	Limit     int64 `json:"limit"`
	Consumed  int64 `json:"consumed"`
	Remaining int64 `json:"remaining"`
}

type CheckQuotaRequest struct {
	OrganizationID int64  `json:"organization_id" form:"organization_id" binding:"required"`
	ResourceType   string `json:"resource_type" form:"resource_type" binding:"required"`
	Amount         int64  `json:"amount" form:"amount" binding:"required,min=1"`
}

type ConsumeQuotaRequest struct {
	OrganizationID int64  `json:"organization_id" binding:"required"`
	ResourceType   string `json:"resource_type" binding:"required"`
	Amount         int64  `json:"amount" binding:"required,min=1"`
}

type ConsumeQuotaResponse struct {
	Consumed bool `json:"consumed"`
}

type HasFeatureResponse struct {
	HasFeature bool `json:"has_feature"`
}
