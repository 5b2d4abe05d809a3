package provider

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

const (
	win32BatteryQuery = "SELECT BatteryStatus, EstimatedChargeRemaining, DesignCapacity, EstimatedRunTime FROM Win32_Battery"
	wmiStatusQuery    = "SELECT PowerOnline, Discharging, DischargeRate, ChargeRate, Voltage FROM BatteryStatus"
	wmiNamespace      = `root\WMI`

	// Win32_Battery reports this runtime while on AC or still estimating.
	win32RuntimeUnknown = 71582788
)

// win32Battery mirrors the Win32_Battery columns we query.
type win32Battery struct {
	BatteryStatus            uint16
	EstimatedChargeRemaining *uint16
	DesignCapacity           *uint32
	EstimatedRunTime         *uint32
}

// wmiBatteryStatus mirrors root\WMI BatteryStatus.
type wmiBatteryStatus struct {
	PowerOnline   bool
	Discharging   bool
	DischargeRate *int32
	ChargeRate    *int32
	Voltage       *uint32
}

func basicFromWin32(bats []win32Battery) (BasicStatus, error) {
	if len(bats) == 0 {
		return BasicStatus{}, pkgerrors.Wrap(ErrSourceUnavailable, "wmi: no Win32_Battery instance")
	}
	b := bats[0]
	if b.EstimatedChargeRemaining == nil {
		return BasicStatus{}, pkgerrors.Wrap(ErrParse, "wmi: EstimatedChargeRemaining is null")
	}

	// BatteryStatus 1 = discharging, 2 = on AC, 3.. = charging/full variants.
	source := powerinfo.OnACPower
	if b.BatteryStatus == 1 {
		source = powerinfo.OnBattery
	}

	return BasicStatus{
		Source:            source,
		BatteryPercentage: clampPercentage(float64(*b.EstimatedChargeRemaining)),
	}, nil
}

func detailedFromWMI(bats []win32Battery, statuses []wmiBatteryStatus) (DetailedBlock, error) {
	var block DetailedBlock
	if len(bats) == 0 && len(statuses) == 0 {
		return block, pkgerrors.Wrap(ErrSourceUnavailable, "wmi: no battery instance")
	}

	if len(bats) > 0 {
		b := bats[0]
		if b.DesignCapacity != nil && *b.DesignCapacity > 0 {
			block.DesignCapacityMWh = ptr.To(float64(*b.DesignCapacity))
		}
		if b.EstimatedRunTime != nil && *b.EstimatedRunTime != win32RuntimeUnknown {
			block.EstimatedRuntimeMinutes = ptr.To(int(*b.EstimatedRunTime))
		}
		if b.EstimatedChargeRemaining != nil {
			block.EstimatedChargeRemaining = ptr.To(int(*b.EstimatedChargeRemaining))
		}
	}

	if len(statuses) > 0 {
		s := statuses[0]
		rate := s.DischargeRate
		if !s.Discharging {
			rate = s.ChargeRate
		}
		if rate != nil && *rate > 0 {
			block.DischargeRateMW = ptr.To(float64(*rate))
		}
		if s.Voltage != nil && *s.Voltage > 0 {
			block.VoltageV = ptr.To(float64(*s.Voltage) / 1000)
		}
	}

	return block, nil
}
