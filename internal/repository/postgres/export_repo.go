// internal/repository/postgres/export_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"maproom-service/internal/domain/export"
	xerrors "maproom-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExportRepository struct {
	db *pgxpool.Pool
}

func NewExportRepository(db *pgxpool.Pool) *ExportRepository {
	return &ExportRepository{db: db}
}

const exportColumns = `id, user_id, organization_id, map_id, format, status,
       decided_by, decided_at, decision_reason, result_url, created_at, updated_at`

func scanExport(row pgx.Row) (*export.Job, error) {
	var j export.Job

	err := row.Scan(
		&j.ID, &j.UserID, &j.OrganizationID, &j.MapID, &j.Format, &j.Status,
		&j.DecidedBy, &j.DecidedAt, &j.DecisionReason, &j.ResultURL,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan export job: %w", err)
	}

	return &j, nil
}

// Create inserts a new export job
func (r *ExportRepository) Create(ctx context.Context, j *export.Job) error {
	query := `
		INSERT INTO export_jobs (user_id, organization_id, map_id, format, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		j.UserID, j.OrganizationID, j.MapID, j.Format, j.Status,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}

	return nil
}

// FindByID retrieves an export job by ID
func (r *ExportRepository) FindByID(ctx context.Context, id int64) (*export.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_jobs WHERE id = $1`, exportColumns)
	return scanExport(r.db.QueryRow(ctx, query, id))
}

// Decide moves a pending job to approved or rejected. The status guard in the
// WHERE clause makes a second decision on the same job report ErrNotFound.
func (r *ExportRepository) Decide(ctx context.Context, id, deciderID int64, status export.ExportStatus, reason string) error {
	query := `
		UPDATE export_jobs
		SET status = $1, decided_by = $2, decided_at = $3, decision_reason = $4, updated_at = $3
		WHERE id = $5 AND status = 'pending_approval'
	`

	result, err := r.db.Exec(ctx, query,
		status, deciderID, time.Now(),
		sql.NullString{String: reason, Valid: reason != ""}, id,
	)
	if err != nil {
		return fmt.Errorf("failed to decide export job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// Complete marks an approved job completed with its result location
func (r *ExportRepository) Complete(ctx context.Context, id int64, resultURL string) error {
	query := `
		UPDATE export_jobs
		SET status = 'completed', result_url = $1, updated_at = $2
		WHERE id = $3 AND status = 'approved'
	`

	result, err := r.db.Exec(ctx, query, resultURL, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to complete export job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// MarkFailed marks an approved job failed
func (r *ExportRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE export_jobs
		SET status = 'failed', decision_reason = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.Exec(ctx, query, sql.NullString{String: reason, Valid: reason != ""}, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark export job failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// ListByOrg retrieves export jobs for an organization with filters
func (r *ExportRepository) ListByOrg(ctx context.Context, orgID int64, filters *export.ExportListFilters) ([]export.Job, int64, error) {
	conditions := []string{"organization_id = $1"}
	args := []interface{}{orgID}
	argPos := 2

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.MapID != nil {
		conditions = append(conditions, fmt.Sprintf("map_id = $%d", argPos))
		args = append(args, *filters.MapID)
		argPos++
	}

	if filters.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *filters.UserID)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM export_jobs WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count export jobs: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	query := fmt.Sprintf(`
		SELECT %s FROM export_jobs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, exportColumns, whereClause, argPos, argPos+1)

	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list export jobs: %w", err)
	}
	defer rows.Close()

	jobs := []export.Job{}
	for rows.Next() {
		j, err := scanExport(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *j)
	}

	return jobs, total, rows.Err()
}
