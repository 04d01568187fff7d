// internal/repository/postgres/usage_repo.go
package postgres

import (
	"errors"
	"fmt"
	"time"

	"context"

	"maproom-service/internal/domain/membership"
	xerrors "maproom-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

// GetConsumed returns the consumed amount for one resource type, 0 if no row exists yet.
func (r *UsageRepository) GetConsumed(ctx context.Context, membershipID int64, resourceType string) (int64, error) {
	query := `SELECT consumed FROM membership_usage WHERE membership_id = $1 AND resource_type = $2`

	var consumed int64
	err := r.db.QueryRow(ctx, query, membershipID, resourceType).Scan(&consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}

	return consumed, nil
}

// ListByMembership returns every usage counter for a membership.
func (r *UsageRepository) ListByMembership(ctx context.Context, membershipID int64) ([]membership.Usage, error) {
	query := `
		SELECT id, membership_id, organization_id, resource_type, consumed, created_at, updated_at
		FROM membership_usage
		WHERE membership_id = $1
		ORDER BY resource_type
	`

	rows, err := r.db.Query(ctx, query, membershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	defer rows.Close()

	usages := []membership.Usage{}
	for rows.Next() {
		var u membership.Usage
		if err := rows.Scan(
			&u.ID, &u.MembershipID, &u.OrganizationID, &u.ResourceType,
			&u.Consumed, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		usages = append(usages, u)
	}

	return usages, rows.Err()
}

// ConsumeGuarded atomically increments a counter only if the post-increment
// total stays within the effective limit. The guard and the increment are a
// single statement, so concurrent consumers of the same (membership, resource
// type) key serialize on the row and can never jointly exceed the limit.
// Returns false without mutation when the increment would exceed the limit.
func (r *UsageRepository) ConsumeGuarded(ctx context.Context, membershipID, orgID int64, resourceType string, amount, limit int64) (bool, error) {
	query := `
		INSERT INTO membership_usage (membership_id, organization_id, resource_type, consumed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (membership_id, resource_type) DO UPDATE
		SET consumed = membership_usage.consumed + EXCLUDED.consumed, updated_at = NOW()
		WHERE membership_usage.consumed + EXCLUDED.consumed <= $5
	`

	result, err := r.db.Exec(ctx, query, membershipID, orgID, resourceType, amount, limit)
	if err != nil {
		return false, fmt.Errorf("failed to consume quota: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// ConsumeUnbounded increments a counter with no ceiling (unlimited plans).
func (r *UsageRepository) ConsumeUnbounded(ctx context.Context, membershipID, orgID int64, resourceType string, amount int64) error {
	query := `
		INSERT INTO membership_usage (membership_id, organization_id, resource_type, consumed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (membership_id, resource_type) DO UPDATE
		SET consumed = membership_usage.consumed + EXCLUDED.consumed, updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, membershipID, orgID, resourceType, amount); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	return nil
}

// ResetCycle zeroes every counter of a membership and stamps last_reset_at,
// in one transaction. Both updates take row locks, so a concurrent guarded
// consume either commits before the reset or applies to the fresh cycle.
func (r *UsageRepository) ResetCycle(ctx context.Context, membershipID int64, resetAt time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE membership_usage SET consumed = 0, updated_at = $1 WHERE membership_id = $2`,
		resetAt, membershipID,
	); err != nil {
		return fmt.Errorf("failed to zero usage counters: %w", err)
	}

	result, err := tx.Exec(ctx,
		`UPDATE memberships SET last_reset_at = $1, updated_at = $1 WHERE id = $2`,
		resetAt, membershipID,
	)
	if err != nil {
		return fmt.Errorf("failed to stamp last reset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return tx.Commit(ctx)
}
