package powerinfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name    string
		snap    Snapshot
		wantErr bool
	}{
		{
			name: "heuristic on battery",
			snap: Snapshot{Source: OnBattery, BatteryPercentage: 45, PowerDrawWatts: ptr.To(15.0), DetectionTier: TierHeuristicEstimate, RemainingTimeMinutes: ptr.To(90)},
		},
		{
			name: "no power draw",
			snap: Snapshot{Source: OnACPower, BatteryPercentage: 100},
		},
		{
			name:    "percentage above range",
			snap:    Snapshot{Source: OnACPower, BatteryPercentage: 101},
			wantErr: true,
		},
		{
			name:    "negative watts",
			snap:    Snapshot{Source: OnACPower, BatteryPercentage: 50, PowerDrawWatts: ptr.To(-1.0), DetectionTier: TierDetailedQuery},
			wantErr: true,
		},
		{
			name:    "watts without tier",
			snap:    Snapshot{Source: OnACPower, BatteryPercentage: 50, PowerDrawWatts: ptr.To(3.0)},
			wantErr: true,
		},
		{
			name:    "remaining time on AC",
			snap:    Snapshot{Source: OnACPower, BatteryPercentage: 50, RemainingTimeMinutes: ptr.To(10)},
			wantErr: true,
		},
		{
			name:    "charge rate on battery",
			snap:    Snapshot{Source: OnBattery, BatteryPercentage: 50, ChargeRateWatts: ptr.To(10.0)},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAsStaleKeepsReadings(t *testing.T) {
	orig := Snapshot{
		Timestamp:         time.Unix(100, 0),
		Source:            OnBattery,
		BatteryPercentage: 60,
		PowerDrawWatts:    ptr.To(12.5),
		DetectionTier:     TierDetailedQuery,
	}
	ts := time.Unix(110, 0)
	stale := orig.AsStale(ts)

	require.True(t, stale.Stale)
	assert.Equal(t, ts, stale.Timestamp)
	assert.Equal(t, orig.BatteryPercentage, stale.BatteryPercentage)
	assert.Equal(t, *orig.PowerDrawWatts, *stale.PowerDrawWatts)
	assert.False(t, orig.Stale)
}

func TestAlert(t *testing.T) {
	a, ok := Snapshot{Source: OnACPower, BatteryPercentage: 15}.Alert(20)
	require.True(t, ok)
	assert.Equal(t, AlertLowBattery, a.Kind)

	a, ok = Snapshot{Source: OnBattery, BatteryPercentage: 50}.Alert(20)
	require.True(t, ok)
	assert.Equal(t, AlertUnplugged, a.Kind)

	_, ok = Snapshot{Source: OnACPower, BatteryPercentage: 50}.Alert(20)
	assert.False(t, ok)
}
