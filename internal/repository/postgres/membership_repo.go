// internal/repository/postgres/membership_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"maproom-service/internal/domain/membership"
	xerrors "maproom-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MembershipRepository struct {
	db *pgxpool.Pool
}

func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipColumns = `id, membership_reference, user_id, organization_id, plan_id, status,
       start_date, end_date, current_period_start, current_period_end,
       auto_renew, renewal_count, last_reset_at,
       amount_paid, currency, cancelled_at, cancellation_reason,
       created_at, updated_at`

func scanMembership(row pgx.Row) (*membership.Membership, error) {
	var m membership.Membership

	err := row.Scan(
		&m.ID, &m.MembershipReference, &m.UserID, &m.OrganizationID, &m.PlanID, &m.Status,
		&m.StartDate, &m.EndDate, &m.CurrentPeriodStart, &m.CurrentPeriodEnd,
		&m.AutoRenew, &m.RenewalCount, &m.LastResetAt,
		&m.AmountPaid, &m.Currency, &m.CancelledAt, &m.CancellationReason,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}

	return &m, nil
}

// CreateWithTx creates a membership within a transaction
func (r *MembershipRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, m *membership.Membership) error {
	query := `
		INSERT INTO memberships (
			membership_reference, user_id, organization_id, plan_id, status,
			start_date, end_date, current_period_start, current_period_end,
			auto_renew, amount_paid, currency
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(
		ctx, query,
		m.MembershipReference, m.UserID, m.OrganizationID, m.PlanID, m.Status,
		m.StartDate, m.EndDate, m.CurrentPeriodStart, m.CurrentPeriodEnd,
		m.AutoRenew, m.AmountPaid, m.Currency,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return xerrors.ErrConflict
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}

	return nil
}

// FindByID retrieves a membership by ID
func (r *MembershipRepository) FindByID(ctx context.Context, id int64) (*membership.Membership, error) {
	query := fmt.Sprintf(`SELECT %s FROM memberships WHERE id = $1`, membershipColumns)
	return scanMembership(r.db.QueryRow(ctx, query, id))
}

// FindActiveByUserAndOrg retrieves the active membership for a (user, org) pair.
// At most one row can match thanks to the partial unique index on status = 'active'.
func (r *MembershipRepository) FindActiveByUserAndOrg(ctx context.Context, userID, orgID int64) (*membership.Membership, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM memberships
		WHERE user_id = $1 AND organization_id = $2 AND status = 'active'
	`, membershipColumns)
	return scanMembership(r.db.QueryRow(ctx, query, userID, orgID))
}

// FindLatestByUserAndOrg retrieves the most recent membership for a
// (user, org) pair regardless of status. Quota resolution uses this so a
// cancelled or suspended membership produces a denial instead of a 404;
// ErrNotFound here means no membership ever existed.
func (r *MembershipRepository) FindLatestByUserAndOrg(ctx context.Context, userID, orgID int64) (*membership.Membership, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM memberships
		WHERE user_id = $1 AND organization_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, membershipColumns)
	return scanMembership(r.db.QueryRow(ctx, query, userID, orgID))
}

// FindActiveByOrg retrieves every active membership under an organization
func (r *MembershipRepository) FindActiveByOrg(ctx context.Context, orgID int64) ([]membership.Membership, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM memberships
		WHERE organization_id = $1 AND status = 'active'
		ORDER BY created_at ASC
	`, membershipColumns)

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active memberships: %w", err)
	}
	defer rows.Close()

	memberships := []membership.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, *m)
	}

	return memberships, rows.Err()
}

// ListAllActive streams every active membership (for the warning sweep)
func (r *MembershipRepository) ListAllActive(ctx context.Context) ([]membership.Membership, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM memberships
		WHERE status = 'active' AND current_period_end > NOW()
		ORDER BY id ASC
	`, membershipColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active memberships: %w", err)
	}
	defer rows.Close()

	memberships := []membership.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, *m)
	}

	return memberships, rows.Err()
}

// UpdateStatus moves a membership through its lifecycle
func (r *MembershipRepository) UpdateStatus(ctx context.Context, id int64, status membership.MembershipStatus) error {
	result, err := r.db.Exec(ctx,
		`UPDATE memberships SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdateRenewalWithTx advances the billing period after a renewal payment
func (r *MembershipRepository) UpdateRenewalWithTx(ctx context.Context, tx pgx.Tx, id int64, periodStart, periodEnd time.Time, renewalCount int, amountPaid float64) error {
	query := `
		UPDATE memberships
		SET current_period_start = $1, current_period_end = $2,
		    renewal_count = $3, amount_paid = amount_paid + $4, status = 'active', updated_at = $5
		WHERE id = $6
	`

	result, err := tx.Exec(ctx, query, periodStart, periodEnd, renewalCount, amountPaid, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update renewal info: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// Cancel cancels a membership, either immediately or at period end
func (r *MembershipRepository) Cancel(ctx context.Context, id int64, reason string, immediately bool) error {
	now := time.Now()
	nullReason := sql.NullString{String: reason, Valid: reason != ""}

	var result pgconn.CommandTag
	var err error

	if immediately {
		result, err = r.db.Exec(ctx, `
			UPDATE memberships
			SET status = $1, cancelled_at = $2, cancellation_reason = $3,
			    current_period_end = $2, end_date = $2, updated_at = $2
			WHERE id = $4
		`, membership.StatusCancelled, now, nullReason, id)
	} else {
		result, err = r.db.Exec(ctx, `
			UPDATE memberships
			SET cancelled_at = $1, cancellation_reason = $2, auto_renew = FALSE, updated_at = $1
			WHERE id = $3
		`, now, nullReason, id)
	}

	if err != nil {
		return fmt.Errorf("failed to cancel membership: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// List retrieves memberships for a user with filters
func (r *MembershipRepository) List(ctx context.Context, userID int64, filters *membership.MembershipListFilters) ([]membership.Membership, int64, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{userID}
	argPos := 2

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.OrganizationID != nil {
		conditions = append(conditions, fmt.Sprintf("organization_id = $%d", argPos))
		args = append(args, *filters.OrganizationID)
		argPos++
	}

	if filters.PlanID != nil {
		conditions = append(conditions, fmt.Sprintf("plan_id = $%d", argPos))
		args = append(args, *filters.PlanID)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM memberships WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count memberships: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	sortBy := "created_at"
	switch filters.SortBy {
	case "created_at", "current_period_end", "status":
		sortBy = filters.SortBy
	}
	sortOrder := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM memberships
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, membershipColumns, whereClause, sortBy, sortOrder, argPos, argPos+1)

	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberships := []membership.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, 0, err
		}
		memberships = append(memberships, *m)
	}

	return memberships, total, rows.Err()
}

// ExpireOverdue marks active memberships whose period has lapsed without
// renewal as expired, returning the number of rows transitioned.
func (r *MembershipRepository) ExpireOverdue(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE memberships
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND current_period_end <= NOW() AND auto_renew = FALSE
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to expire memberships: %w", err)
	}

	return result.RowsAffected(), nil
}
