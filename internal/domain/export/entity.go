// internal/domain/export/entity.go
package export

import (
	"database/sql"
	"time"
)

type ExportStatus string

const (
	StatusPendingApproval ExportStatus = "pending_approval"
	StatusApproved        ExportStatus = "approved"
	StatusRejected        ExportStatus = "rejected"
	StatusCompleted       ExportStatus = "completed"
	StatusFailed          ExportStatus = "failed"
)

type ExportFormat string

const (
	FormatGeoJSON ExportFormat = "geojson"
	FormatKML     ExportFormat = "kml"
	FormatPNG     ExportFormat = "png"
	FormatPDF     ExportFormat = "pdf"
)

// Job is one requested map export. Creation consumes one unit of "export"
// quota; the approval workflow gates actual rendering.
type Job struct {
	ID             int64        `json:"id" db:"id"`
	UserID         int64        `json:"user_id" db:"user_id"`
	OrganizationID int64        `json:"organization_id" db:"organization_id"`
	MapID          int64        `json:"map_id" db:"map_id"`
	Format         ExportFormat `json:"format" db:"format"`
	Status         ExportStatus `json:"status" db:"status"`

	DecidedBy      sql.NullInt64  `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt      sql.NullTime   `json:"decided_at,omitempty" db:"decided_at"`
	DecisionReason sql.NullString `json:"decision_reason,omitempty" db:"decision_reason"`

	ResultURL sql.NullString `json:"result_url,omitempty" db:"result_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
