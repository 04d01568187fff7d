// internal/domain/plan/entity_test.go
package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimitFor(t *testing.T) {
	p := &Plan{Limits: map[string]int64{
		ResourceExport:  10,
		ResourceAPICall: Unlimited,
	}}

	assert.Equal(t, int64(10), p.LimitFor(ResourceExport))
	assert.Equal(t, Unlimited, p.LimitFor(ResourceAPICall))

	// unknown resource reads as zero allowance
	assert.Equal(t, int64(0), p.LimitFor("geocode"))
	assert.Equal(t, int64(0), (&Plan{}).LimitFor(ResourceExport))
}

func TestHasFeature(t *testing.T) {
	p := &Plan{FeatureFlags: []string{"offline_maps", "custom_branding"}}

	assert.True(t, p.HasFeature("offline_maps"))
	assert.False(t, p.HasFeature("sso"))
	assert.False(t, (&Plan{}).HasFeature("offline_maps"))
}

func TestCyclePeriod(t *testing.T) {
	start := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		cycle BillingCycle
		want  time.Time
	}{
		{CycleMonthly, start.AddDate(0, 1, 0)},
		{CycleQuarterly, start.AddDate(0, 3, 0)},
		{CycleYearly, start.AddDate(1, 0, 0)},
		{BillingCycle(""), start.AddDate(0, 1, 0)}, // defaults to monthly
	}

	for _, tt := range tests {
		p := &Plan{BillingCycle: tt.cycle}
		assert.Equal(t, tt.want, p.CyclePeriod(start), string(tt.cycle))
	}
}
