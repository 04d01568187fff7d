// internal/domain/notification/entity.go
package notification

import (
	"database/sql"
	"time"
)

type NotificationType string

const (
	TypeQuotaWarning   NotificationType = "quota_warning"
	TypeQuotaExceeded  NotificationType = "quota_exceeded"
	TypeExportDecision NotificationType = "export_decision"
	TypeMembership     NotificationType = "membership"
	TypeSystem         NotificationType = "system"
)

type Notification struct {
	ID         int64                  `json:"id" db:"id"`
	IdentityID int64                  `json:"identity_id" db:"identity_id"`
	Type       NotificationType       `json:"type" db:"type"`
	Title      string                 `json:"title" db:"title"`
	Message    string                 `json:"message" db:"message"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	IsRead     bool                   `json:"is_read" db:"is_read"`
	ReadAt     sql.NullTime           `json:"read_at,omitempty" db:"read_at"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}

type CreateNotificationRequest struct {
	IdentityID int64                  `json:"identity_id" binding:"required"`
	Type       NotificationType       `json:"type" binding:"required"`
	Title      string                 `json:"title" binding:"required,max=255"`
	Message    string                 `json:"message" binding:"required"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	Total         int64          `json:"total"`
	UnreadCount   int64          `json:"unread_count"`
}
