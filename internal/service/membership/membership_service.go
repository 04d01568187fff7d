// internal/service/membership/membership_service.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"maproom-service/internal/domain/membership"
	"maproom-service/internal/domain/plan"
	xerrors "maproom-service/internal/pkg/errors"
	"maproom-service/internal/repository/postgres"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type MembershipService struct {
	membershipRepo *postgres.MembershipRepository
	planRepo       *postgres.PlanRepository
	addonRepo      *postgres.AddonRepository
	usageRepo      *postgres.UsageRepository
	db             *postgres.DB
	logger         *zap.Logger
}

func NewMembershipService(
	membershipRepo *postgres.MembershipRepository,
	planRepo *postgres.PlanRepository,
	addonRepo *postgres.AddonRepository,
	usageRepo *postgres.UsageRepository,
	db *postgres.DB,
	logger *zap.Logger,
) *MembershipService {
	return &MembershipService{
		membershipRepo: membershipRepo,
		planRepo:       planRepo,
		addonRepo:      addonRepo,
		usageRepo:      usageRepo,
		db:             db,
		logger:         logger,
	}
}

// PurchaseMembership activates a membership after checkout completion
func (s *MembershipService) PurchaseMembership(ctx context.Context, userID int64, req *membership.PurchaseMembershipRequest) (*membership.Membership, error) {
	p, err := s.planRepo.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("plan not found: %w", err)
	}

	if p.Status != plan.StatusActive {
		return nil, fmt.Errorf("%w: plan is not active", xerrors.ErrInvalidInput)
	}
	if !p.IsPublic {
		return nil, fmt.Errorf("%w: plan is not available for purchase", xerrors.ErrInvalidInput)
	}

	// One active membership per (user, org)
	existing, err := s.membershipRepo.FindActiveByUserAndOrg(ctx, userID, req.OrganizationID)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: user already has an active membership in this organization", xerrors.ErrConflict)
	}

	if req.AmountPaid < p.Price {
		return nil, fmt.Errorf("%w: insufficient payment, expected %.2f", xerrors.ErrInvalidInput, p.Price)
	}

	startDate := time.Now()
	periodEnd := p.CyclePeriod(startDate)

	m := &membership.Membership{
		MembershipReference: s.generateMembershipReference(),
		UserID:              userID,
		OrganizationID:      req.OrganizationID,
		PlanID:              req.PlanID,
		Status:              membership.StatusActive,
		StartDate:           startDate,
		CurrentPeriodStart:  startDate,
		CurrentPeriodEnd:    periodEnd,
		AutoRenew:           req.AutoRenew,
		AmountPaid:          req.AmountPaid,
		Currency:            strings.ToUpper(req.Currency),
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.membershipRepo.CreateWithTx(ctx, tx, m); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	s.logger.Info("membership purchased",
		zap.Int64("membership_id", m.ID),
		zap.String("reference", m.MembershipReference),
		zap.Int64("user_id", userID),
		zap.Int64("organization_id", req.OrganizationID),
		zap.Int64("plan_id", req.PlanID),
	)

	return m, nil
}

// RenewMembership advances the billing period after a renewal payment and
// zeroes the usage counters for the fresh cycle.
func (s *MembershipService) RenewMembership(ctx context.Context, userID int64, req *membership.RenewMembershipRequest) (*membership.Membership, error) {
	m, err := s.membershipRepo.FindActiveByUserAndOrg(ctx, userID, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	if m.Status != membership.StatusActive && m.Status != membership.StatusPendingPayment {
		return nil, fmt.Errorf("%w: membership cannot be renewed from status %s", xerrors.ErrMembershipInactive, m.Status)
	}

	p, err := s.planRepo.FindByID(ctx, m.PlanID)
	if err != nil {
		return nil, fmt.Errorf("plan not found: %w", err)
	}

	if req.AmountPaid < p.Price {
		return nil, fmt.Errorf("%w: insufficient payment, expected %.2f", xerrors.ErrInvalidInput, p.Price)
	}

	// A renewal before period end extends from the current end; a late one
	// starts a fresh period now.
	periodStart := time.Now()
	if m.CurrentPeriodEnd.After(periodStart) {
		periodStart = m.CurrentPeriodEnd
	}
	periodEnd := p.CyclePeriod(periodStart)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.membershipRepo.UpdateRenewalWithTx(ctx, tx, m.ID, periodStart, periodEnd, m.RenewalCount+1, req.AmountPaid); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit renewal: %w", err)
	}

	// New cycle, fresh counters
	if err := s.usageRepo.ResetCycle(ctx, m.ID, time.Now()); err != nil {
		s.logger.Error("failed to reset usage after renewal",
			zap.Int64("membership_id", m.ID), zap.Error(err))
	}

	s.logger.Info("membership renewed",
		zap.Int64("membership_id", m.ID),
		zap.Time("period_end", periodEnd),
		zap.Int("renewal_count", m.RenewalCount+1),
	)

	return s.membershipRepo.FindByID(ctx, m.ID)
}

// CancelMembership cancels immediately or at period end
func (s *MembershipService) CancelMembership(ctx context.Context, userID, membershipID int64, req *membership.CancelMembershipRequest) error {
	m, err := s.membershipRepo.FindByID(ctx, membershipID)
	if err != nil {
		return err
	}

	if m.UserID != userID {
		return xerrors.ErrForbidden
	}

	if m.Status == membership.StatusCancelled || m.Status == membership.StatusExpired {
		return fmt.Errorf("%w: membership already terminated", xerrors.ErrConflict)
	}

	if err := s.membershipRepo.Cancel(ctx, membershipID, req.Reason, req.CancelImmediately); err != nil {
		return err
	}

	s.logger.Info("membership cancelled",
		zap.Int64("membership_id", membershipID),
		zap.Bool("immediately", req.CancelImmediately),
	)

	return nil
}

// MarkPaymentFailed moves a membership to pending_payment after a failed
// renewal charge. Consumption is denied while in this state; the record is
// kept so a successful retry can reactivate without repurchase.
func (s *MembershipService) MarkPaymentFailed(ctx context.Context, membershipID int64) error {
	m, err := s.membershipRepo.FindByID(ctx, membershipID)
	if err != nil {
		return err
	}

	if m.Status != membership.StatusActive {
		return fmt.Errorf("%w: only active memberships can fail payment", xerrors.ErrConflict)
	}

	if err := s.membershipRepo.UpdateStatus(ctx, membershipID, membership.StatusPendingPayment); err != nil {
		return err
	}

	s.logger.Warn("membership payment failed", zap.Int64("membership_id", membershipID))
	return nil
}

// Suspend is an admin action taking a membership out of service
func (s *MembershipService) Suspend(ctx context.Context, membershipID int64) error {
	m, err := s.membershipRepo.FindByID(ctx, membershipID)
	if err != nil {
		return err
	}

	if m.Status != membership.StatusActive && m.Status != membership.StatusPendingPayment {
		return fmt.Errorf("%w: membership cannot be suspended from status %s", xerrors.ErrConflict, m.Status)
	}

	if err := s.membershipRepo.UpdateStatus(ctx, membershipID, membership.StatusSuspended); err != nil {
		return err
	}

	s.logger.Info("membership suspended", zap.Int64("membership_id", membershipID))
	return nil
}

// Reactivate restores a suspended or pending_payment membership
func (s *MembershipService) Reactivate(ctx context.Context, membershipID int64) error {
	m, err := s.membershipRepo.FindByID(ctx, membershipID)
	if err != nil {
		return err
	}

	if m.Status != membership.StatusSuspended && m.Status != membership.StatusPendingPayment {
		return fmt.Errorf("%w: membership cannot be reactivated from status %s", xerrors.ErrConflict, m.Status)
	}

	if !m.CurrentPeriodEnd.After(time.Now()) {
		return fmt.Errorf("%w: billing period has lapsed, renewal required", xerrors.ErrConflict)
	}

	if err := s.membershipRepo.UpdateStatus(ctx, membershipID, membership.StatusActive); err != nil {
		return err
	}

	s.logger.Info("membership reactivated", zap.Int64("membership_id", membershipID))
	return nil
}

// GetActiveMembership returns the user's active membership in an organization
func (s *MembershipService) GetActiveMembership(ctx context.Context, userID, orgID int64) (*membership.Membership, error) {
	return s.membershipRepo.FindActiveByUserAndOrg(ctx, userID, orgID)
}

// GetMembership returns a membership the user owns
func (s *MembershipService) GetMembership(ctx context.Context, userID, membershipID int64) (*membership.Membership, error) {
	m, err := s.membershipRepo.FindByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, xerrors.ErrForbidden
	}
	return m, nil
}

// ListMemberships returns the user's memberships with filters and pagination
func (s *MembershipService) ListMemberships(ctx context.Context, userID int64, filters *membership.MembershipListFilters) (*membership.MembershipListResponse, error) {
	memberships, total, err := s.membershipRepo.List(ctx, userID, filters)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &membership.MembershipListResponse{
		Memberships: memberships,
		Total:       total,
		Page:        filters.Page,
		PageSize:    filters.PageSize,
		TotalPages:  totalPages,
	}, nil
}

// PurchaseAddon grants a time-bounded supplemental quota on a membership.
// The window opens immediately and closes at the requested expiry.
func (s *MembershipService) PurchaseAddon(ctx context.Context, userID int64, req *membership.PurchaseAddonRequest) (*membership.Addon, error) {
	m, err := s.membershipRepo.FindByID(ctx, req.MembershipID)
	if err != nil {
		return nil, err
	}

	if m.UserID != userID {
		return nil, xerrors.ErrForbidden
	}

	now := time.Now()
	if !m.IsActive(now) {
		return nil, fmt.Errorf("%w: addons require an active membership", xerrors.ErrMembershipInactive)
	}

	if !req.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: addon expiry must be in the future", xerrors.ErrInvalidInput)
	}

	addon := &membership.Addon{
		MembershipID:   m.ID,
		OrganizationID: m.OrganizationID,
		ResourceType:   req.ResourceType,
		Quantity:       req.Quantity,
		EffectiveFrom:  now,
		ExpiresAt:      req.ExpiresAt,
		Status:         membership.AddonActive,
	}

	if err := s.addonRepo.Create(ctx, addon); err != nil {
		return nil, err
	}

	s.logger.Info("addon purchased",
		zap.Int64("membership_id", m.ID),
		zap.String("resource_type", req.ResourceType),
		zap.Int64("quantity", req.Quantity),
		zap.Time("expires_at", req.ExpiresAt),
	)

	return addon, nil
}

// ListActiveAddons returns addons currently contributing to a membership
func (s *MembershipService) ListActiveAddons(ctx context.Context, userID, membershipID int64) ([]membership.Addon, error) {
	m, err := s.membershipRepo.FindByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, xerrors.ErrForbidden
	}

	return s.addonRepo.ListActive(ctx, membershipID, time.Now())
}

// ExpireOverdueMemberships moves lapsed non-renewing memberships to expired.
// Run periodically by the server's background loop.
func (s *MembershipService) ExpireOverdueMemberships(ctx context.Context) error {
	expired, err := s.membershipRepo.ExpireOverdue(ctx)
	if err != nil {
		return err
	}

	if expired > 0 {
		s.logger.Info("expired overdue memberships", zap.Int64("count", expired))
	}
	return nil
}

func (s *MembershipService) generateMembershipReference() string {
	return fmt.Sprintf("MEM-%s", ulid.Make().String())
}
