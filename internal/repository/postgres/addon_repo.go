// internal/repository/postgres/addon_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"maproom-service/internal/domain/membership"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AddonRepository struct {
	db *pgxpool.Pool
}

func NewAddonRepository(db *pgxpool.Pool) *AddonRepository {
	return &AddonRepository{db: db}
}

// Create inserts a new addon grant
func (r *AddonRepository) Create(ctx context.Context, a *membership.Addon) error {
	query := `
		INSERT INTO membership_addons (
			membership_id, organization_id, resource_type, quantity,
			effective_from, expires_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		a.MembershipID, a.OrganizationID, a.ResourceType, a.Quantity,
		a.EffectiveFrom, a.ExpiresAt, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create addon: %w", err)
	}

	return nil
}

// SumActiveQuantity returns the total supplemental quantity for one resource
// type whose window contains the given instant. Expired addons are excluded
// purely by the window test; they are never deleted.
func (r *AddonRepository) SumActiveQuantity(ctx context.Context, membershipID int64, resourceType string, asOf time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM membership_addons
		WHERE membership_id = $1 AND resource_type = $2 AND status = 'active'
		  AND effective_from <= $3 AND expires_at > $3
	`

	var total int64
	if err := r.db.QueryRow(ctx, query, membershipID, resourceType, asOf).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum active addons: %w", err)
	}

	return total, nil
}

// ListActive returns every addon active at the given instant for a membership
func (r *AddonRepository) ListActive(ctx context.Context, membershipID int64, asOf time.Time) ([]membership.Addon, error) {
	query := `
		SELECT id, membership_id, organization_id, resource_type, quantity,
		       effective_from, expires_at, status, created_at, updated_at
		FROM membership_addons
		WHERE membership_id = $1 AND status = 'active'
		  AND effective_from <= $2 AND expires_at > $2
		ORDER BY expires_at ASC
	`

	rows, err := r.db.Query(ctx, query, membershipID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list active addons: %w", err)
	}
	defer rows.Close()

	addons := []membership.Addon{}
	for rows.Next() {
		var a membership.Addon
		if err := rows.Scan(
			&a.ID, &a.MembershipID, &a.OrganizationID, &a.ResourceType, &a.Quantity,
			&a.EffectiveFrom, &a.ExpiresAt, &a.Status, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan addon: %w", err)
		}
		addons = append(addons, a)
	}

	return addons, rows.Err()
}
