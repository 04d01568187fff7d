// internal/repository/postgres/organization_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"maproom-service/internal/domain/organization"
	xerrors "maproom-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type OrganizationRepository struct {
	db *pgxpool.Pool
}

func NewOrganizationRepository(db *pgxpool.Pool) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create inserts an organization and its owner membership row in one transaction
func (r *OrganizationRepository) Create(ctx context.Context, org *organization.Organization) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO organizations (name, slug, description, owner_id, tags)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, org.Name, org.Slug, org.Description, org.OwnerID, pq.Array(org.Tags),
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)
	`, org.ID, org.OwnerID, organization.RoleOwner); err != nil {
		return fmt.Errorf("failed to create owner member: %w", err)
	}

	return tx.Commit(ctx)
}

// FindByID retrieves an organization by ID
func (r *OrganizationRepository) FindByID(ctx context.Context, id int64) (*organization.Organization, error) {
	query := `
		SELECT id, name, slug, description, owner_id, tags, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`

	var org organization.Organization
	err := r.db.QueryRow(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Description, &org.OwnerID,
		pq.Array(&org.Tags), &org.CreatedAt, &org.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	return &org, nil
}

// FindMember retrieves the membership row of a user in an organization
func (r *OrganizationRepository) FindMember(ctx context.Context, orgID, userID int64) (*organization.Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, joined_at
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`

	var m organization.Member
	err := r.db.QueryRow(ctx, query, orgID, userID).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.JoinedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find organization member: %w", err)
	}

	return &m, nil
}

// AddMember adds a user to an organization with a role
func (r *OrganizationRepository) AddMember(ctx context.Context, m *organization.Member) error {
	query := `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, joined_at
	`

	err := r.db.QueryRow(ctx, query, m.OrganizationID, m.UserID, m.Role).Scan(&m.ID, &m.JoinedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to add organization member: %w", err)
	}

	return nil
}

// UpdateMemberRole changes a member's role
func (r *OrganizationRepository) UpdateMemberRole(ctx context.Context, orgID, userID int64, role organization.MemberRole) error {
	result, err := r.db.Exec(ctx, `
		UPDATE organization_members SET role = $1 WHERE organization_id = $2 AND user_id = $3
	`, role, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// RemoveMember removes a user from an organization
func (r *OrganizationRepository) RemoveMember(ctx context.Context, orgID, userID int64) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove organization member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// ListMembers returns every member of an organization
func (r *OrganizationRepository) ListMembers(ctx context.Context, orgID int64) ([]organization.Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, joined_at
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization members: %w", err)
	}
	defer rows.Close()

	members := []organization.Member{}
	for rows.Next() {
		var m organization.Member
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// Touch bumps updated_at, used after membership-affecting changes
func (r *OrganizationRepository) Touch(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE organizations SET updated_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}
