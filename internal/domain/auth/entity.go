// internal/domain/auth/entity.go
package auth

import (
	"database/sql"
	"time"
)

type UserStatus string

const (
	StatusActive      UserStatus = "active"
	StatusDeactivated UserStatus = "deactivated"
)

type User struct {
	ID           int64          `json:"id" db:"id"`
	Email        string         `json:"email" db:"email"`
	FullName     string         `json:"full_name" db:"full_name"`
	PasswordHash string         `json:"-" db:"password_hash"`
	Roles        []string       `json:"roles" db:"roles"`
	Status       UserStatus     `json:"status" db:"status"`
	LastLoginAt  sql.NullTime   `json:"last_login_at,omitempty" db:"last_login_at"`
	AvatarURL    sql.NullString `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}
