package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

func TestWin32Basic(t *testing.T) {
	basic, err := basicFromWin32([]win32Battery{{BatteryStatus: 1, EstimatedChargeRemaining: ptr.To(uint16(45))}})
	require.NoError(t, err)
	assert.Equal(t, powerinfo.OnBattery, basic.Source)
	assert.Equal(t, 45, basic.BatteryPercentage)

	basic, err = basicFromWin32([]win32Battery{{BatteryStatus: 2, EstimatedChargeRemaining: ptr.To(uint16(80))}})
	require.NoError(t, err)
	assert.Equal(t, powerinfo.OnACPower, basic.Source)

	_, err = basicFromWin32(nil)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = basicFromWin32([]win32Battery{{BatteryStatus: 2}})
	assert.ErrorIs(t, err, ErrParse)
}

func TestWMIDetailed(t *testing.T) {
	block, err := detailedFromWMI(
		[]win32Battery{{
			BatteryStatus:            1,
			EstimatedChargeRemaining: ptr.To(uint16(60)),
			DesignCapacity:           ptr.To(uint32(50000)),
			EstimatedRunTime:         ptr.To(uint32(150)),
		}},
		[]wmiBatteryStatus{{Discharging: true, DischargeRate: ptr.To(int32(14200)), Voltage: ptr.To(uint32(11800))}},
	)
	require.NoError(t, err)
	assert.Equal(t, 14200.0, *block.DischargeRateMW)
	assert.InDelta(t, 11.8, *block.VoltageV, 1e-9)
	assert.Equal(t, 150, *block.EstimatedRuntimeMinutes)
	assert.Equal(t, 50000.0, *block.DesignCapacityMWh)
}

func TestWMIDetailedNullRate(t *testing.T) {
	block, err := detailedFromWMI(
		[]win32Battery{{BatteryStatus: 2, EstimatedRunTime: ptr.To(uint32(win32RuntimeUnknown))}},
		nil,
	)
	require.NoError(t, err)
	assert.Nil(t, block.DischargeRateMW)
	assert.Nil(t, block.EstimatedRuntimeMinutes)
}
