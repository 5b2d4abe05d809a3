//go:build darwin

package provider

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/smc"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

var _ BasicReader = &SMCSource{}
var _ DetailedReader = &SMCSource{}

// SMCSource reads charge, adapter state and power flows from the Apple SMC.
type SMCSource struct {
	conn *smc.AppleSMC
}

// NewSMCSource opens the SMC.
func NewSMCSource() (*SMCSource, error) {
	conn := smc.New()
	if err := conn.Open(); err != nil {
		return nil, pkgerrors.Wrapf(ErrSourceUnavailable, "smc: %v", err)
	}
	return &SMCSource{conn: conn}, nil
}

// Close closes the SMC connection.
func (s *SMCSource) Close() error {
	return s.conn.Close()
}

// BasicStatus implements BasicReader.
func (s *SMCSource) BasicStatus(ctx context.Context) (BasicStatus, error) {
	return runCtx(ctx, func() (BasicStatus, error) {
		charge, err := s.conn.GetBatteryCharge()
		if err != nil {
			return BasicStatus{}, pkgerrors.Wrapf(ErrSourceUnavailable, "smc charge: %v", err)
		}
		pluggedIn, err := s.conn.IsPluggedIn()
		if err != nil {
			return BasicStatus{}, pkgerrors.Wrapf(ErrSourceUnavailable, "smc adapter: %v", err)
		}
		source := powerinfo.OnBattery
		if pluggedIn {
			source = powerinfo.OnACPower
		}
		return BasicStatus{Source: source, BatteryPercentage: clampPercentage(float64(charge))}, nil
	})
}

// DetailedBlock implements DetailedReader. The SMC has no runtime estimate;
// the rate reported is the whole system draw.
func (s *SMCSource) DetailedBlock(ctx context.Context) (DetailedBlock, error) {
	return runCtx(ctx, func() (DetailedBlock, error) {
		t, err := s.conn.GetPowerTelemetry()
		if err != nil {
			return DetailedBlock{}, pkgerrors.Wrapf(ErrSourceUnavailable, "smc telemetry: %v", err)
		}
		var block DetailedBlock
		if t.SystemPower > 0 {
			block.DischargeRateMW = ptr.To(t.SystemPower * 1000)
		}
		if t.BatteryVoltage > 0 {
			block.VoltageV = ptr.To(t.BatteryVoltage)
		}
		return block, nil
	})
}
