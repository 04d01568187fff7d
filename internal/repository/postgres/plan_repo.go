// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"maproom-service/internal/domain/plan"
	xerrors "maproom-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, plan_code, name, description, price, currency, billing_cycle,
       limits, feature_flags, status, is_public, created_at, updated_at`

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var p plan.Plan
	var limitsJSON []byte

	err := row.Scan(
		&p.ID, &p.PlanCode, &p.Name, &p.Description,
		&p.Price, &p.Currency, &p.BillingCycle,
		&limitsJSON, pq.Array(&p.FeatureFlags),
		&p.Status, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan: %w", err)
	}

	if len(limitsJSON) > 0 {
		if err := json.Unmarshal(limitsJSON, &p.Limits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan limits: %w", err)
		}
	}

	return &p, nil
}

// Create inserts a new plan
func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (plan_code, name, description, price, currency, billing_cycle,
		                   limits, feature_flags, status, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	limitsJSON, err := json.Marshal(p.Limits)
	if err != nil {
		return fmt.Errorf("failed to marshal plan limits: %w", err)
	}

	err = r.db.QueryRow(
		ctx, query,
		p.PlanCode, p.Name, p.Description, p.Price, p.Currency, p.BillingCycle,
		limitsJSON, pq.Array(p.FeatureFlags), p.Status, p.IsPublic,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create plan: %w", err)
	}

	return nil
}

// FindByID retrieves a plan by ID
func (r *PlanRepository) FindByID(ctx context.Context, id int64) (*plan.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE id = $1`, planColumns)
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

// FindByCode retrieves a plan by its code
func (r *PlanRepository) FindByCode(ctx context.Context, code string) (*plan.Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans WHERE plan_code = $1`, planColumns)
	return scanPlan(r.db.QueryRow(ctx, query, code))
}

// Update updates mutable plan fields
func (r *PlanRepository) Update(ctx context.Context, p *plan.Plan) error {
	query := `
		UPDATE plans
		SET name = $1, description = $2, price = $3, billing_cycle = $4,
		    limits = $5, feature_flags = $6, is_public = $7, updated_at = $8
		WHERE id = $9
	`

	limitsJSON, err := json.Marshal(p.Limits)
	if err != nil {
		return fmt.Errorf("failed to marshal plan limits: %w", err)
	}

	result, err := r.db.Exec(
		ctx, query,
		p.Name, p.Description, p.Price, p.BillingCycle,
		limitsJSON, pq.Array(p.FeatureFlags), p.IsPublic, time.Now(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdateStatus activates or deactivates a plan
func (r *PlanRepository) UpdateStatus(ctx context.Context, id int64, status plan.PlanStatus) error {
	result, err := r.db.Exec(ctx,
		`UPDATE plans SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update plan status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// Delete removes a plan. Plans referenced by memberships should be
// deactivated instead; the FK constraint rejects the delete in that case.
func (r *PlanRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return xerrors.ErrConflict
		}
		return fmt.Errorf("failed to delete plan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// List retrieves plans with filters
func (r *PlanRepository) List(ctx context.Context, filters *plan.PlanListFilters) ([]plan.Plan, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.IsPublic != nil {
		conditions = append(conditions, fmt.Sprintf("is_public = $%d", argPos))
		args = append(args, *filters.IsPublic)
		argPos++
	}

	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR plan_code ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM plans WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count plans: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	sortBy := "created_at"
	switch filters.SortBy {
	case "price", "name", "created_at":
		sortBy = filters.SortBy
	}
	sortOrder := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM plans
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, planColumns, whereClause, sortBy, sortOrder, argPos, argPos+1)

	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []plan.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, 0, err
		}
		plans = append(plans, *p)
	}

	return plans, total, rows.Err()
}
