// internal/domain/organization/entity.go
package organization

import (
	"database/sql"
	"time"
)

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleEditor MemberRole = "editor"
	RoleViewer MemberRole = "viewer"
)

type Organization struct {
	ID          int64          `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Slug        string         `json:"slug" db:"slug"`
	Description sql.NullString `json:"description,omitempty" db:"description"`
	OwnerID     int64          `json:"owner_id" db:"owner_id"`
	Tags        []string       `json:"tags,omitempty" db:"tags"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

type Member struct {
	ID             int64      `json:"id" db:"id"`
	OrganizationID int64      `json:"organization_id" db:"organization_id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	Role           MemberRole `json:"role" db:"role"`
	JoinedAt       time.Time  `json:"joined_at" db:"joined_at"`
}

// CanAdminister reports whether the role grants admin-level access.
func (m *Member) CanAdminister() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}
