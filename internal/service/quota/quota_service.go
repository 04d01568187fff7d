// internal/service/quota/quota_service.go
package quota

import (
	"context"
	"fmt"
	"time"

	"maproom-service/internal/domain/membership"
	"maproom-service/internal/domain/plan"
	"maproom-service/internal/domain/quota"
	xerrors "maproom-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Store interfaces are satisfied by the postgres repositories; tests swap in
// in-memory fakes to exercise the consumption semantics without a database.

type MembershipStore interface {
	FindByID(ctx context.Context, id int64) (*membership.Membership, error)
	// FindLatestByUserAndOrg resolves the most recent membership regardless
	// of status; an inactive one must reach IsActive so it denies rather
	// than 404s. ErrNotFound is reserved for "no membership ever existed".
	FindLatestByUserAndOrg(ctx context.Context, userID, orgID int64) (*membership.Membership, error)
	ListAllActive(ctx context.Context) ([]membership.Membership, error)
}

type PlanStore interface {
	FindByID(ctx context.Context, id int64) (*plan.Plan, error)
}

type UsageStore interface {
	GetConsumed(ctx context.Context, membershipID int64, resourceType string) (int64, error)
	ListByMembership(ctx context.Context, membershipID int64) ([]membership.Usage, error)
	ConsumeGuarded(ctx context.Context, membershipID, orgID int64, resourceType string, amount, limit int64) (bool, error)
	ConsumeUnbounded(ctx context.Context, membershipID, orgID int64, resourceType string, amount int64) error
	ResetCycle(ctx context.Context, membershipID int64, resetAt time.Time) error
}

type AddonStore interface {
	SumActiveQuantity(ctx context.Context, membershipID int64, resourceType string, asOf time.Time) (int64, error)
}

// WarningNotifier is how the sweep emits quota warnings. The notification
// service implements it; the existence check is what keeps a warning from
// firing more than once per resource per cycle.
type WarningNotifier interface {
	QuotaWarningExists(ctx context.Context, identityID int64, resourceType string, since time.Time) (bool, error)
	SendQuotaWarning(ctx context.Context, identityID, orgID int64, resourceType string, consumed, limit int64) error
}

type QuotaService struct {
	membershipStore  MembershipStore
	planStore        PlanStore
	usageStore       UsageStore
	addonStore       AddonStore
	notifier         WarningNotifier
	warningThreshold float64
	logger           *zap.Logger

	now func() time.Time
}

func NewQuotaService(
	membershipStore MembershipStore,
	planStore PlanStore,
	usageStore UsageStore,
	addonStore AddonStore,
	notifier WarningNotifier,
	warningThreshold float64,
	logger *zap.Logger,
) *QuotaService {
	return &QuotaService{
		membershipStore:  membershipStore,
		planStore:        planStore,
		usageStore:       usageStore,
		addonStore:       addonStore,
		notifier:         notifier,
		warningThreshold: warningThreshold,
		logger:           logger,
		now:              time.Now,
	}
}

// effectiveLimit resolves the allowance for one resource type: the plan limit
// plus the sum of addon quantities whose window contains now. A resource the
// plan does not name has a zero allowance. Unlimited short-circuits; addons
// cannot add to it.
func (s *QuotaService) effectiveLimit(ctx context.Context, m *membership.Membership, resourceType string, now time.Time) (int64, bool, error) {
	p, err := s.planStore.FindByID(ctx, m.PlanID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve plan: %w", err)
	}

	planLimit := p.LimitFor(resourceType)
	if planLimit == plan.Unlimited {
		return plan.Unlimited, true, nil
	}

	addonQty, err := s.addonStore.SumActiveQuantity(ctx, m.ID, resourceType, now)
	if err != nil {
		return 0, false, fmt.Errorf("failed to sum addons: %w", err)
	}

	return planLimit + addonQty, false, nil
}

// CheckQuota reports whether a consume of the given amount would succeed,
// without mutating anything. The answer can go stale the moment it is
// returned; ConsumeQuota is the authority.
func (s *QuotaService) CheckQuota(ctx context.Context, userID, orgID int64, resourceType string, amount int64) (*quota.CheckQuotaResult, error) {
	if amount < 1 {
		return nil, xerrors.ErrInvalidInput
	}

	m, err := s.membershipStore.FindLatestByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !m.IsActive(now) {
		return &quota.CheckQuotaResult{Allowed: false}, nil
	}

	limit, unlimited, err := s.effectiveLimit(ctx, m, resourceType, now)
	if err != nil {
		return nil, err
	}

	consumed, err := s.usageStore.GetConsumed(ctx, m.ID, resourceType)
	if err != nil {
		return nil, err
	}

	if unlimited {
		return &quota.CheckQuotaResult{
			Allowed:   true,
			Unlimited: true,
			Limit:     plan.Unlimited,
			Consumed:  consumed,
			Remaining: plan.Unlimited,
		}, nil
	}

	remaining := limit - consumed
	if remaining < 0 {
		remaining = 0
	}

	return &quota.CheckQuotaResult{
		Allowed:   consumed+amount <= limit,
		Unlimited: false,
		Limit:     limit,
		Consumed:  consumed,
		Remaining: remaining,
	}, nil
}

// ConsumeQuota atomically records usage if and only if the post-consume total
// stays within the effective limit. The guarded upsert serializes concurrent
// consumers on the counter row, so of N racing requests against remaining
// capacity K exactly K units get through. Returns false without mutation on
// denial; an inactive membership denies rather than errors.
func (s *QuotaService) ConsumeQuota(ctx context.Context, userID, orgID int64, resourceType string, amount int64) (bool, error) {
	if amount < 1 {
		return false, xerrors.ErrInvalidInput
	}

	m, err := s.membershipStore.FindLatestByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return false, err
	}

	now := s.now()
	if !m.IsActive(now) {
		s.logger.Debug("consume denied on inactive membership",
			zap.Int64("membership_id", m.ID), zap.String("status", string(m.Status)))
		return false, nil
	}

	limit, unlimited, err := s.effectiveLimit(ctx, m, resourceType, now)
	if err != nil {
		return false, err
	}

	if unlimited {
		if err := s.usageStore.ConsumeUnbounded(ctx, m.ID, orgID, resourceType, amount); err != nil {
			return false, err
		}
		return true, nil
	}

	// The guard inside ConsumeGuarded only applies when a counter row already
	// exists; the first insert goes through unconditionally. Rejecting
	// amount > limit here closes that path.
	if amount > limit {
		return false, nil
	}

	ok, err := s.usageStore.ConsumeGuarded(ctx, m.ID, orgID, resourceType, amount, limit)
	if err != nil {
		return false, err
	}

	if !ok {
		s.logger.Info("quota consume denied",
			zap.Int64("membership_id", m.ID),
			zap.String("resource_type", resourceType),
			zap.Int64("amount", amount),
			zap.Int64("limit", limit),
		)
	}

	return ok, nil
}

// HasFeature reports whether the user's active plan carries a feature flag
func (s *QuotaService) HasFeature(ctx context.Context, userID, orgID int64, flag string) (bool, error) {
	m, err := s.membershipStore.FindLatestByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return false, err
	}

	if !m.IsActive(s.now()) {
		return false, nil
	}

	p, err := s.planStore.FindByID(ctx, m.PlanID)
	if err != nil {
		return false, err
	}

	return p.HasFeature(flag), nil
}

// GetUsage returns every counter of the user's active membership
func (s *QuotaService) GetUsage(ctx context.Context, userID, orgID int64) ([]membership.Usage, error) {
	m, err := s.membershipStore.FindLatestByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	return s.usageStore.ListByMembership(ctx, m.ID)
}

// ResetUsageCycle zeroes every counter of a membership and stamps the reset
// time. The caller (renewal, or a billing scheduler) decides when a cycle
// boundary has been crossed; calling this twice for one boundary just zeroes
// an already-zero counter.
func (s *QuotaService) ResetUsageCycle(ctx context.Context, membershipID int64) error {
	if err := s.usageStore.ResetCycle(ctx, membershipID, s.now()); err != nil {
		return err
	}

	s.logger.Info("usage cycle reset", zap.Int64("membership_id", membershipID))
	return nil
}

// CheckAndNotifyQuotaWarnings sweeps every active membership and emits a
// warning notification for each finite resource at or past the threshold.
// Warnings already sent since the cycle started are skipped, so a membership
// gets at most one warning per resource per cycle.
func (s *QuotaService) CheckAndNotifyQuotaWarnings(ctx context.Context) error {
	memberships, err := s.membershipStore.ListAllActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list memberships for sweep: %w", err)
	}

	now := s.now()
	planCache := make(map[int64]*plan.Plan)
	warned := 0

	for i := range memberships {
		m := &memberships[i]
		if !m.IsActive(now) {
			continue
		}

		p, ok := planCache[m.PlanID]
		if !ok {
			p, err = s.planStore.FindByID(ctx, m.PlanID)
			if err != nil {
				s.logger.Warn("sweep skipping membership, plan lookup failed",
					zap.Int64("membership_id", m.ID), zap.Error(err))
				continue
			}
			planCache[m.PlanID] = p
		}

		usages, err := s.usageStore.ListByMembership(ctx, m.ID)
		if err != nil {
			s.logger.Warn("sweep skipping membership, usage lookup failed",
				zap.Int64("membership_id", m.ID), zap.Error(err))
			continue
		}

		cycleStart := m.CurrentPeriodStart
		if m.LastResetAt.Valid && m.LastResetAt.Time.After(cycleStart) {
			cycleStart = m.LastResetAt.Time
		}

		for _, u := range usages {
			planLimit := p.LimitFor(u.ResourceType)
			if planLimit == plan.Unlimited {
				continue
			}

			addonQty, err := s.addonStore.SumActiveQuantity(ctx, m.ID, u.ResourceType, now)
			if err != nil {
				continue
			}
			limit := planLimit + addonQty
			if limit <= 0 {
				continue
			}

			if float64(u.Consumed) < s.warningThreshold*float64(limit) {
				continue
			}

			exists, err := s.notifier.QuotaWarningExists(ctx, m.UserID, u.ResourceType, cycleStart)
			if err != nil || exists {
				continue
			}

			if err := s.notifier.SendQuotaWarning(ctx, m.UserID, m.OrganizationID, u.ResourceType, u.Consumed, limit); err != nil {
				s.logger.Warn("failed to send quota warning",
					zap.Int64("membership_id", m.ID),
					zap.String("resource_type", u.ResourceType),
					zap.Error(err))
				continue
			}
			warned++
		}
	}

	if warned > 0 {
		s.logger.Info("quota warning sweep complete", zap.Int("warnings_sent", warned))
	}

	return nil
}
