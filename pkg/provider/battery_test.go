package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/distatus/battery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isbattery/isbattery/pkg/powerinfo"
)

func fakeBatterySource(bats []*battery.Battery, err error) *BatterySource {
	return &BatterySource{getAll: func() ([]*battery.Battery, error) { return bats, err }}
}

func TestBatterySourceDischarging(t *testing.T) {
	s := fakeBatterySource([]*battery.Battery{{
		State:      battery.State{Raw: battery.Discharging},
		Current:    27000,
		Full:       60000,
		Design:     65000,
		ChargeRate: 12500,
		Voltage:    11.4,
	}}, nil)

	basic, err := s.BasicStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, powerinfo.OnBattery, basic.Source)
	assert.Equal(t, 45, basic.BatteryPercentage)

	block, err := s.DetailedBlock(context.Background())
	require.NoError(t, err)
	require.NotNil(t, block.DischargeRateMW)
	assert.Equal(t, 12500.0, *block.DischargeRateMW)
	require.NotNil(t, block.DesignCapacityMWh)
	assert.Equal(t, 65000.0, *block.DesignCapacityMWh)
	assert.Nil(t, block.EstimatedRuntimeMinutes)
}

func TestBatterySourceCharging(t *testing.T) {
	s := fakeBatterySource([]*battery.Battery{{
		State:   battery.State{Raw: battery.Charging},
		Current: 6000,
		Full:    60000,
	}}, nil)

	basic, err := s.BasicStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, powerinfo.OnACPower, basic.Source)
	assert.Equal(t, 10, basic.BatteryPercentage)
}

func TestBatterySourcePartialChargeRate(t *testing.T) {
	s := fakeBatterySource([]*battery.Battery{{
		State:      battery.State{Raw: battery.Discharging},
		Current:    30000,
		Full:       60000,
		ChargeRate: 999,
	}}, battery.Errors{battery.ErrPartial{ChargeRate: errors.New("not supported")}})

	block, err := s.DetailedBlock(context.Background())
	require.NoError(t, err)
	assert.Nil(t, block.DischargeRateMW)
}

func TestBatterySourceNoBattery(t *testing.T) {
	s := fakeBatterySource(nil, nil)

	_, err := s.BasicStatus(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestBatterySourceFatal(t *testing.T) {
	s := fakeBatterySource(nil, errors.New("no power supply class"))

	_, err := s.DetailedBlock(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
