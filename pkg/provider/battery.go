package provider

import (
	"context"
	"errors"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

var _ BasicReader = &BatterySource{}
var _ DetailedReader = &BatterySource{}

// BatterySource reads the first battery reported by the operating system
// through distatus/battery. It works on linux (sysfs), darwin (IOKit),
// windows and the BSDs.
type BatterySource struct {
	// getAll is a test seam; defaults to battery.GetAll.
	getAll func() ([]*battery.Battery, error)
}

// NewBatterySource returns a BatterySource.
func NewBatterySource() *BatterySource {
	return &BatterySource{getAll: battery.GetAll}
}

func (s *BatterySource) first(ctx context.Context) (*battery.Battery, *battery.ErrPartial, error) {
	type reading struct {
		bat     *battery.Battery
		partial *battery.ErrPartial
	}

	r, err := runCtx(ctx, func() (reading, error) {
		batteries, err := s.getAll()

		var partial *battery.ErrPartial
		if err != nil {
			var errs battery.Errors
			if !errors.As(err, &errs) {
				return reading{}, pkgerrors.Wrapf(ErrSourceUnavailable, "battery: %v", err)
			}
			if len(errs) > 0 && errs[0] != nil {
				switch e := errs[0].(type) {
				case battery.ErrPartial:
					partial = &e
				default:
					return reading{}, pkgerrors.Wrapf(ErrSourceUnavailable, "battery: %v", e)
				}
			}
		}

		// Only the first battery is considered; multi-battery aggregation is
		// not supported.
		if len(batteries) == 0 || batteries[0] == nil {
			return reading{}, pkgerrors.Wrap(ErrSourceUnavailable, "battery: no batteries found")
		}
		return reading{bat: batteries[0], partial: partial}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"state":      r.bat.State,
		"current":    r.bat.Current,
		"full":       r.bat.Full,
		"design":     r.bat.Design,
		"chargeRate": r.bat.ChargeRate,
		"voltage":    r.bat.Voltage,
	}).Trace("battery read")

	return r.bat, r.partial, nil
}

// BasicStatus implements BasicReader.
func (s *BatterySource) BasicStatus(ctx context.Context) (BasicStatus, error) {
	bat, partial, err := s.first(ctx)
	if err != nil {
		return BasicStatus{}, err
	}
	return basicFromBattery(bat, partial)
}

// DetailedBlock implements DetailedReader.
func (s *BatterySource) DetailedBlock(ctx context.Context) (DetailedBlock, error) {
	bat, partial, err := s.first(ctx)
	if err != nil {
		return DetailedBlock{}, err
	}
	return detailedFromBattery(bat, partial), nil
}

func basicFromBattery(bat *battery.Battery, partial *battery.ErrPartial) (BasicStatus, error) {
	if partial != nil && partial.State != nil {
		return BasicStatus{}, pkgerrors.Wrapf(ErrParse, "battery state: %v", partial.State)
	}

	capacity := bat.Full
	if capacity <= 0 || (partial != nil && partial.Full != nil) {
		capacity = bat.Design
	}
	if capacity <= 0 || (partial != nil && partial.Current != nil) {
		return BasicStatus{}, pkgerrors.Wrap(ErrParse, "battery: charge level not reported")
	}

	source := powerinfo.OnACPower
	if bat.State.Raw == battery.Discharging {
		source = powerinfo.OnBattery
	}

	return BasicStatus{
		Source:            source,
		BatteryPercentage: clampPercentage(bat.Current / capacity * 100),
	}, nil
}

func detailedFromBattery(bat *battery.Battery, partial *battery.ErrPartial) DetailedBlock {
	var block DetailedBlock
	if partial == nil {
		partial = &battery.ErrPartial{}
	}

	if partial.Design == nil && bat.Design > 0 {
		block.DesignCapacityMWh = ptr.To(bat.Design)
	}
	// distatus reports the rate as an unsigned value in mW for both
	// directions.
	if partial.ChargeRate == nil && bat.ChargeRate > 0 {
		block.DischargeRateMW = ptr.To(bat.ChargeRate)
	}
	if partial.Voltage == nil && bat.Voltage > 0 {
		block.VoltageV = ptr.To(bat.Voltage)
	}
	if partial.Current == nil && partial.Full == nil && bat.Full > 0 {
		block.EstimatedChargeRemaining = ptr.To(clampPercentage(bat.Current / bat.Full * 100))
	}

	return block
}
