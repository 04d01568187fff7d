// internal/repository/postgres/notification_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"maproom-service/internal/domain/notification"
	xerrors "maproom-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (identity_id, type, title, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	var metadataJSON []byte
	var err error

	if n.Metadata != nil {
		metadataJSON, err = json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err = r.db.QueryRow(ctx, query,
		n.IdentityID, n.Type, n.Title, n.Message, metadataJSON,
	).Scan(&n.ID, &n.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// FindByID retrieves a notification by ID
func (r *NotificationRepository) FindByID(ctx context.Context, id int64) (*notification.Notification, error) {
	query := `
		SELECT id, identity_id, type, title, message, metadata, is_read, read_at, created_at
		FROM notifications
		WHERE id = $1
	`

	var n notification.Notification
	var metadataJSON []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.IdentityID, &n.Type, &n.Title, &n.Message,
		&metadataJSON, &n.IsRead, &n.ReadAt, &n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}

	if len(metadataJSON) > 0 {
		json.Unmarshal(metadataJSON, &n.Metadata)
	}

	return &n, nil
}

// ExistsSince reports whether a notification of the given type, carrying the
// given resource type in its metadata, was already created for the identity
// after the cutoff. Used to deduplicate quota warnings within a cycle.
func (r *NotificationRepository) ExistsSince(ctx context.Context, identityID int64, nType notification.NotificationType, resourceType string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE identity_id = $1 AND type = $2
			  AND metadata->>'resource_type' = $3 AND created_at >= $4
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, identityID, nType, resourceType, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check notification existence: %w", err)
	}

	return exists, nil
}

// ListByIdentity retrieves notifications for a user, newest first
func (r *NotificationRepository) ListByIdentity(ctx context.Context, identityID int64, limit, offset int) ([]notification.Notification, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE identity_id = $1`, identityID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	if limit < 1 {
		limit = 20
	}

	query := `
		SELECT id, identity_id, type, title, message, metadata, is_read, read_at, created_at
		FROM notifications
		WHERE identity_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, identityID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []notification.Notification{}
	for rows.Next() {
		var n notification.Notification
		var metadataJSON []byte

		if err := rows.Scan(
			&n.ID, &n.IdentityID, &n.Type, &n.Title, &n.Message,
			&metadataJSON, &n.IsRead, &n.ReadAt, &n.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}

		if len(metadataJSON) > 0 {
			json.Unmarshal(metadataJSON, &n.Metadata)
		}

		notifications = append(notifications, n)
	}

	return notifications, total, rows.Err()
}

// CountUnread returns the number of unread notifications for a user
func (r *NotificationRepository) CountUnread(ctx context.Context, identityID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE identity_id = $1 AND is_read = FALSE`,
		identityID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

// MarkAsRead marks a single notification read
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, identityID int64) error {
	result, err := r.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $1
		WHERE id = $2 AND identity_id = $3 AND is_read = FALSE
	`, time.Now(), id, identityID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// MarkAllAsRead marks every unread notification of a user read
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, identityID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $1
		WHERE identity_id = $2 AND is_read = FALSE
	`, time.Now(), identityID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}

	return nil
}
