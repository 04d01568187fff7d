// internal/service/quota/quota_service_test.go
package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"maproom-service/internal/domain/membership"
	"maproom-service/internal/domain/plan"
	xerrors "maproom-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- in-memory fakes ---

type fakeMembershipStore struct {
	memberships map[int64]*membership.Membership // by membership ID
}

func (f *fakeMembershipStore) FindByID(_ context.Context, id int64) (*membership.Membership, error) {
	m, ok := f.memberships[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return m, nil
}

// FindLatestByUserAndOrg mirrors the repository's ORDER BY created_at DESC
// LIMIT 1: any status matches, the newest row wins.
func (f *fakeMembershipStore) FindLatestByUserAndOrg(_ context.Context, userID, orgID int64) (*membership.Membership, error) {
	var latest *membership.Membership
	for _, m := range f.memberships {
		if m.UserID != userID || m.OrganizationID != orgID {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, xerrors.ErrNotFound
	}
	return latest, nil
}

func (f *fakeMembershipStore) ListAllActive(_ context.Context) ([]membership.Membership, error) {
	out := []membership.Membership{}
	for _, m := range f.memberships {
		if m.Status == membership.StatusActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakePlanStore struct {
	plans map[int64]*plan.Plan
}

func (f *fakePlanStore) FindByID(_ context.Context, id int64) (*plan.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return p, nil
}

type usageKey struct {
	membershipID int64
	resourceType string
}

// fakeUsageStore mirrors the guarded-upsert semantics: check and increment
// happen under one lock, exactly like the single SQL statement does per row.
type fakeUsageStore struct {
	mu       sync.Mutex
	consumed map[usageKey]int64
	resets   map[int64]time.Time
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{
		consumed: make(map[usageKey]int64),
		resets:   make(map[int64]time.Time),
	}
}

func (f *fakeUsageStore) GetConsumed(_ context.Context, membershipID int64, resourceType string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumed[usageKey{membershipID, resourceType}], nil
}

func (f *fakeUsageStore) ListByMembership(_ context.Context, membershipID int64) ([]membership.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []membership.Usage{}
	for k, v := range f.consumed {
		if k.membershipID == membershipID {
			out = append(out, membership.Usage{
				MembershipID: membershipID,
				ResourceType: k.resourceType,
				Consumed:     v,
			})
		}
	}
	return out, nil
}

func (f *fakeUsageStore) ConsumeGuarded(_ context.Context, membershipID, _ int64, resourceType string, amount, limit int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := usageKey{membershipID, resourceType}
	if f.consumed[key]+amount > limit {
		return false, nil
	}
	f.consumed[key] += amount
	return true, nil
}

func (f *fakeUsageStore) ConsumeUnbounded(_ context.Context, membershipID, _ int64, resourceType string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumed[usageKey{membershipID, resourceType}] += amount
	return nil
}

func (f *fakeUsageStore) ResetCycle(_ context.Context, membershipID int64, resetAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.consumed {
		if k.membershipID == membershipID {
			f.consumed[k] = 0
		}
	}
	f.resets[membershipID] = resetAt
	return nil
}

type fakeAddonStore struct {
	addons []membership.Addon
}

func (f *fakeAddonStore) SumActiveQuantity(_ context.Context, membershipID int64, resourceType string, asOf time.Time) (int64, error) {
	var total int64
	for i := range f.addons {
		a := &f.addons[i]
		if a.MembershipID == membershipID && a.ResourceType == resourceType && a.ActiveAt(asOf) {
			total += a.Quantity
		}
	}
	return total, nil
}

type sentWarning struct {
	identityID   int64
	resourceType string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentWarning
}

func (f *fakeNotifier) QuotaWarningExists(_ context.Context, identityID int64, resourceType string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.sent {
		if w.identityID == identityID && w.resourceType == resourceType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifier) SendQuotaWarning(_ context.Context, identityID, _ int64, resourceType string, _, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentWarning{identityID, resourceType})
	return nil
}

// --- fixture ---

type fixture struct {
	svc         *QuotaService
	memberships *fakeMembershipStore
	plans       *fakePlanStore
	usage       *fakeUsageStore
	addons      *fakeAddonStore
	notifier    *fakeNotifier
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	f := &fixture{
		memberships: &fakeMembershipStore{memberships: map[int64]*membership.Membership{
			1: {
				ID: 1, UserID: 100, OrganizationID: 10, PlanID: 1,
				Status:             membership.StatusActive,
				CurrentPeriodStart: now.AddDate(0, 0, -10),
				CurrentPeriodEnd:   now.AddDate(0, 0, 20),
			},
		}},
		plans: &fakePlanStore{plans: map[int64]*plan.Plan{
			1: {
				ID: 1, PlanCode: "pro", Status: plan.StatusActive,
				Limits: map[string]int64{
					plan.ResourceExport:  10,
					plan.ResourceAPICall: plan.Unlimited,
				},
				FeatureFlags: []string{"offline_maps"},
			},
		}},
		usage:    newFakeUsageStore(),
		addons:   &fakeAddonStore{},
		notifier: &fakeNotifier{},
		now:      now,
	}

	f.svc = NewQuotaService(f.memberships, f.plans, f.usage, f.addons, f.notifier, 0.8, zap.NewNop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

// --- tests ---

func TestCheckQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CheckQuota(ctx, 100, 10, plan.ResourceExport, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(10), res.Limit)
	assert.Equal(t, int64(0), res.Consumed)
	assert.Equal(t, int64(10), res.Remaining)

	f.usage.consumed[usageKey{1, plan.ResourceExport}] = 8

	res, err = f.svc.CheckQuota(ctx, 100, 10, plan.ResourceExport, 2)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(2), res.Remaining)

	res, err = f.svc.CheckQuota(ctx, 100, 10, plan.ResourceExport, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(8), res.Consumed)
}

func TestCheckQuotaUnknownResourceHasZeroAllowance(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CheckQuota(context.Background(), 100, 10, "widget", 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Limit)
}

func TestCheckQuotaUnlimited(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CheckQuota(context.Background(), 100, 10, plan.ResourceAPICall, 1_000_000)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.True(t, res.Unlimited)
	assert.Equal(t, plan.Unlimited, res.Limit)
	assert.Equal(t, plan.Unlimited, res.Remaining)
}

func TestCheckQuotaNoMembership(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckQuota(context.Background(), 999, 10, plan.ResourceExport, 1)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestConsumeQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 6)
	require.NoError(t, err)
	assert.True(t, ok)

	// at the ceiling now, denial must not mutate
	ok, err = f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	consumed, _ := f.usage.GetConsumed(ctx, 1, plan.ResourceExport)
	assert.Equal(t, int64(10), consumed)
}

func TestConsumeQuotaFirstRequestOverLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// no counter row exists yet; the request alone exceeds the limit
	ok, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 11)
	require.NoError(t, err)
	assert.False(t, ok)

	consumed, _ := f.usage.GetConsumed(ctx, 1, plan.ResourceExport)
	assert.Equal(t, int64(0), consumed)
}

func TestConsumeQuotaInactiveMembershipDenies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, status := range []membership.MembershipStatus{
		membership.StatusCancelled,
		membership.StatusSuspended,
		membership.StatusPendingPayment,
		membership.StatusExpired,
	} {
		f.memberships.memberships[1].Status = status

		// a denial, never an error: the membership exists, it just cannot consume
		ok, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 1)
		require.NoError(t, err, string(status))
		assert.False(t, ok, string(status))

		res, err := f.svc.CheckQuota(ctx, 100, 10, plan.ResourceExport, 1)
		require.NoError(t, err, string(status))
		assert.False(t, res.Allowed, string(status))

		has, err := f.svc.HasFeature(ctx, 100, 10, "offline_maps")
		require.NoError(t, err, string(status))
		assert.False(t, has, string(status))
	}

	consumed, _ := f.usage.GetConsumed(ctx, 1, plan.ResourceExport)
	assert.Equal(t, int64(0), consumed)
}

func TestConsumeQuotaNoMembershipEverIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConsumeQuota(context.Background(), 999, 10, plan.ResourceExport, 1)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestConsumeQuotaResolvesLatestMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// an old active-looking row must not shadow the newer cancelled one
	f.memberships.memberships[1].CreatedAt = f.now.AddDate(0, -2, 0)
	f.memberships.memberships[2] = &membership.Membership{
		ID: 2, UserID: 100, OrganizationID: 10, PlanID: 1,
		Status:             membership.StatusCancelled,
		CurrentPeriodStart: f.now.AddDate(0, 0, -10),
		CurrentPeriodEnd:   f.now.AddDate(0, 0, 20),
		CreatedAt:          f.now.AddDate(0, -1, 0),
	}

	ok, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeQuotaLapsedPeriodDenies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.memberships.memberships[1].CurrentPeriodEnd = f.now.Add(-time.Hour)

	ok, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeQuotaUnlimitedAlwaysRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceAPICall, 1000)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	consumed, _ := f.usage.GetConsumed(ctx, 1, plan.ResourceAPICall)
	assert.Equal(t, int64(5000), consumed)
}

func TestConcurrentConsumesNeverExceedLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 50 // against a limit of 10

	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 1)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for ok := range results {
		if ok {
			successes++
		}
	}

	assert.Equal(t, 10, successes)
	consumed, _ := f.usage.GetConsumed(ctx, 1, plan.ResourceExport)
	assert.Equal(t, int64(10), consumed)
}

func TestAddonExtendsLimitInsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addons.addons = []membership.Addon{
		{
			MembershipID: 1, ResourceType: plan.ResourceExport, Quantity: 5,
			EffectiveFrom: f.now.AddDate(0, 0, -1), ExpiresAt: f.now.AddDate(0, 0, 1),
			Status: membership.AddonActive,
		},
		{
			// already out of window, must not contribute
			MembershipID: 1, ResourceType: plan.ResourceExport, Quantity: 100,
			EffectiveFrom: f.now.AddDate(0, 0, -10), ExpiresAt: f.now.AddDate(0, 0, -5),
			Status: membership.AddonActive,
		},
	}

	res, err := f.svc.CheckQuota(ctx, 100, 10, plan.ResourceExport, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.Limit)

	ok, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 15)
	require.NoError(t, err)
	assert.True(t, ok)

	// addon window closes, limit drops back below what is consumed
	f.now = f.now.AddDate(0, 0, 2)

	ok, err = f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddonCannotRaiseUnlimited(t *testing.T) {
	f := newFixture(t)

	f.addons.addons = []membership.Addon{{
		MembershipID: 1, ResourceType: plan.ResourceAPICall, Quantity: 5,
		EffectiveFrom: f.now.AddDate(0, 0, -1), ExpiresAt: f.now.AddDate(0, 0, 1),
		Status: membership.AddonActive,
	}}

	res, err := f.svc.CheckQuota(context.Background(), 100, 10, plan.ResourceAPICall, 1)
	require.NoError(t, err)
	assert.True(t, res.Unlimited)
	assert.Equal(t, plan.Unlimited, res.Limit)
}

func TestHasFeature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	has, err := f.svc.HasFeature(ctx, 100, 10, "offline_maps")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.svc.HasFeature(ctx, 100, 10, "3d_terrain")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestResetUsageCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 10)
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetUsageCycle(ctx, 1))

	consumed, _ := f.usage.GetConsumed(ctx, 1, plan.ResourceExport)
	assert.Equal(t, int64(0), consumed)
	assert.Equal(t, f.now, f.usage.resets[1])

	// a fresh cycle has the full allowance again
	ok, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWarningSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 8 of 10 consumed, exactly at the 0.8 threshold
	_, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 8)
	require.NoError(t, err)

	require.NoError(t, f.svc.CheckAndNotifyQuotaWarnings(ctx))
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sentWarning{100, plan.ResourceExport}, f.notifier.sent[0])

	// a second sweep in the same cycle must not warn again
	require.NoError(t, f.svc.CheckAndNotifyQuotaWarnings(ctx))
	assert.Len(t, f.notifier.sent, 1)
}

func TestWarningSweepBelowThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceExport, 7)
	require.NoError(t, err)

	require.NoError(t, f.svc.CheckAndNotifyQuotaWarnings(ctx))
	assert.Empty(t, f.notifier.sent)
}

func TestWarningSweepSkipsUnlimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConsumeQuota(ctx, 100, 10, plan.ResourceAPICall, 1_000_000)
	require.NoError(t, err)

	require.NoError(t, f.svc.CheckAndNotifyQuotaWarnings(ctx))
	assert.Empty(t, f.notifier.sent)
}
