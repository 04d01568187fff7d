// internal/service/orgadmin/orgadmin_service.go
package orgadmin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"maproom-service/internal/domain/membership"
	"maproom-service/internal/domain/organization"
	"maproom-service/internal/domain/plan"
	xerrors "maproom-service/internal/pkg/errors"
	"maproom-service/internal/repository/postgres"

	"go.uber.org/zap"
)

// OrgAdminService builds the organization-level views over memberships and
// usage. It only reads; authorization happens at the endpoint layer via the
// role checks it exposes.
type OrgAdminService struct {
	orgRepo        *postgres.OrganizationRepository
	membershipRepo *postgres.MembershipRepository
	usageRepo      *postgres.UsageRepository
	addonRepo      *postgres.AddonRepository
	planRepo       *postgres.PlanRepository
	logger         *zap.Logger
}

func NewOrgAdminService(
	orgRepo *postgres.OrganizationRepository,
	membershipRepo *postgres.MembershipRepository,
	usageRepo *postgres.UsageRepository,
	addonRepo *postgres.AddonRepository,
	planRepo *postgres.PlanRepository,
	logger *zap.Logger,
) *OrgAdminService {
	return &OrgAdminService{
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		usageRepo:      usageRepo,
		addonRepo:      addonRepo,
		planRepo:       planRepo,
		logger:         logger,
	}
}

// IsUserOrganizationAdmin reports whether the user holds an administering
// role (owner or admin) in the organization. A missing member row is a plain
// false, not an error.
func (s *OrgAdminService) IsUserOrganizationAdmin(ctx context.Context, userID, orgID int64) (bool, error) {
	m, err := s.orgRepo.FindMember(ctx, orgID, userID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.CanAdminister(), nil
}

// IsUserOrganizationOwner reports whether the user is the organization owner
func (s *OrgAdminService) IsUserOrganizationOwner(ctx context.Context, userID, orgID int64) (bool, error) {
	m, err := s.orgRepo.FindMember(ctx, orgID, userID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Role == organization.RoleOwner, nil
}

// GetOrganizationUsage aggregates per-membership, per-resource consumption
// against effective limits for every active membership in the organization.
func (s *OrgAdminService) GetOrganizationUsage(ctx context.Context, orgID int64) (*organization.OrganizationUsageResponse, error) {
	memberships, err := s.membershipRepo.FindActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	planCache := make(map[int64]*plan.Plan)
	members := []organization.MemberUsage{}

	for i := range memberships {
		m := &memberships[i]

		p, err := s.planFor(ctx, planCache, m.PlanID)
		if err != nil {
			s.logger.Warn("usage view skipping membership, plan lookup failed",
				zap.Int64("membership_id", m.ID), zap.Error(err))
			continue
		}

		usages, err := s.usageRepo.ListByMembership(ctx, m.ID)
		if err != nil {
			return nil, err
		}

		consumedByType := make(map[string]int64, len(usages))
		for _, u := range usages {
			consumedByType[u.ResourceType] = u.Consumed
		}

		// Plan-declared resources first, then counters for types the plan
		// no longer names (still shown with a zero allowance).
		resources := []organization.ResourceUsage{}
		seen := make(map[string]bool)
		for resourceType := range p.Limits {
			resources = append(resources, s.resourceUsage(ctx, m, p, resourceType, consumedByType[resourceType], now))
			seen[resourceType] = true
		}
		for _, u := range usages {
			if !seen[u.ResourceType] {
				resources = append(resources, s.resourceUsage(ctx, m, p, u.ResourceType, u.Consumed, now))
			}
		}

		members = append(members, organization.MemberUsage{
			MembershipID:        m.ID,
			MembershipReference: m.MembershipReference,
			UserID:              m.UserID,
			PlanID:              p.ID,
			PlanName:            p.Name,
			Resources:           resources,
		})
	}

	return &organization.OrganizationUsageResponse{
		OrganizationID: orgID,
		Members:        members,
		GeneratedAt:    now,
	}, nil
}

func (s *OrgAdminService) resourceUsage(ctx context.Context, m *membership.Membership, p *plan.Plan, resourceType string, consumed int64, now time.Time) organization.ResourceUsage {
	limit := p.LimitFor(resourceType)
	if limit == plan.Unlimited {
		return organization.ResourceUsage{
			ResourceType: resourceType,
			Consumed:     consumed,
			Limit:        plan.Unlimited,
			Remaining:    plan.Unlimited,
			Unlimited:    true,
		}
	}

	if addonQty, err := s.addonRepo.SumActiveQuantity(ctx, m.ID, resourceType, now); err == nil {
		limit += addonQty
	}

	remaining := limit - consumed
	if remaining < 0 {
		remaining = 0
	}

	return organization.ResourceUsage{
		ResourceType: resourceType,
		Consumed:     consumed,
		Limit:        limit,
		Remaining:    remaining,
	}
}

// GetOrganizationSubscription lists every active membership with its plan summary
func (s *OrgAdminService) GetOrganizationSubscription(ctx context.Context, orgID int64) (*organization.OrganizationSubscriptionResponse, error) {
	memberships, err := s.membershipRepo.FindActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	planCache := make(map[int64]*plan.Plan)
	summaries := []organization.MembershipSummary{}

	for i := range memberships {
		m := &memberships[i]

		planName := ""
		if p, err := s.planFor(ctx, planCache, m.PlanID); err == nil {
			planName = p.Name
		}

		summaries = append(summaries, organization.MembershipSummary{
			MembershipID:        m.ID,
			MembershipReference: m.MembershipReference,
			UserID:              m.UserID,
			PlanID:              m.PlanID,
			PlanName:            planName,
			Status:              string(m.Status),
			AutoRenew:           m.AutoRenew,
			CurrentPeriodEnd:    m.CurrentPeriodEnd,
		})
	}

	return &organization.OrganizationSubscriptionResponse{
		OrganizationID: orgID,
		Memberships:    summaries,
	}, nil
}

// GetOrganizationBilling aggregates paid totals and the next renewal date
func (s *OrgAdminService) GetOrganizationBilling(ctx context.Context, orgID int64) (*organization.OrganizationBillingResponse, error) {
	memberships, err := s.membershipRepo.FindActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	resp := &organization.OrganizationBillingResponse{OrganizationID: orgID}

	for i := range memberships {
		m := &memberships[i]
		resp.ActiveMemberships++
		resp.TotalPaid += m.AmountPaid
		if resp.Currency == "" {
			resp.Currency = m.Currency
		}

		if m.AutoRenew {
			if resp.NextRenewalAt == nil || m.CurrentPeriodEnd.Before(*resp.NextRenewalAt) {
				end := m.CurrentPeriodEnd
				resp.NextRenewalAt = &end
			}
		}
	}

	return resp, nil
}

// CreateOrganization creates an organization owned by the caller
func (s *OrgAdminService) CreateOrganization(ctx context.Context, ownerID int64, req *organization.CreateOrganizationRequest) (*organization.Organization, error) {
	org := &organization.Organization{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: sql.NullString{String: req.Description, Valid: req.Description != ""},
		OwnerID:     ownerID,
		Tags:        req.Tags,
	}

	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, err
	}

	s.logger.Info("organization created",
		zap.Int64("organization_id", org.ID), zap.String("slug", org.Slug))
	return org, nil
}

// GetOrganization retrieves an organization; only members may see it
func (s *OrgAdminService) GetOrganization(ctx context.Context, userID, orgID int64) (*organization.Organization, error) {
	if _, err := s.orgRepo.FindMember(ctx, orgID, userID); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrForbidden
		}
		return nil, err
	}

	return s.orgRepo.FindByID(ctx, orgID)
}

// AddMember adds a user to an organization (admin only, enforced at the route)
func (s *OrgAdminService) AddMember(ctx context.Context, orgID int64, req *organization.AddMemberRequest) (*organization.Member, error) {
	if req.Role == organization.RoleOwner {
		return nil, fmt.Errorf("%w: ownership is not assignable", xerrors.ErrInvalidInput)
	}

	m := &organization.Member{
		OrganizationID: orgID,
		UserID:         req.UserID,
		Role:           req.Role,
	}

	if err := s.orgRepo.AddMember(ctx, m); err != nil {
		return nil, err
	}

	s.orgRepo.Touch(ctx, orgID)
	return m, nil
}

// UpdateMemberRole changes a member's role
func (s *OrgAdminService) UpdateMemberRole(ctx context.Context, orgID, userID int64, role organization.MemberRole) error {
	if role == organization.RoleOwner {
		return fmt.Errorf("%w: ownership is not assignable", xerrors.ErrInvalidInput)
	}

	member, err := s.orgRepo.FindMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if member.Role == organization.RoleOwner {
		return fmt.Errorf("%w: the owner role cannot be changed", xerrors.ErrConflict)
	}

	return s.orgRepo.UpdateMemberRole(ctx, orgID, userID, role)
}

// RemoveMember removes a user from the organization; the owner cannot be removed
func (s *OrgAdminService) RemoveMember(ctx context.Context, orgID, userID int64) error {
	member, err := s.orgRepo.FindMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if member.Role == organization.RoleOwner {
		return fmt.Errorf("%w: the owner cannot be removed", xerrors.ErrConflict)
	}

	return s.orgRepo.RemoveMember(ctx, orgID, userID)
}

// ListMembers returns every member of the organization
func (s *OrgAdminService) ListMembers(ctx context.Context, orgID int64) ([]organization.Member, error) {
	return s.orgRepo.ListMembers(ctx, orgID)
}

func (s *OrgAdminService) planFor(ctx context.Context, cache map[int64]*plan.Plan, planID int64) (*plan.Plan, error) {
	if p, ok := cache[planID]; ok {
		return p, nil
	}
	p, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	cache[planID] = p
	return p, nil
}
