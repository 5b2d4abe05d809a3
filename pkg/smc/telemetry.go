//go:build darwin

package smc

import (
	"github.com/pkg/errors"
)

// GetPowerTelemetry reads the raw SMC keys and returns calculated power metrics.
func (c *AppleSMC) GetPowerTelemetry() (*PowerTelemetry, error) {
	dcinCurrent, err := c.Read(DCInCurrentKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dcin current")
	}
	dcinVoltage, err := c.Read(DCInVoltageKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dcin voltage")
	}
	battCurrent, err := c.Read(BatteryCurrentKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read battery current")
	}
	battVoltage, err := c.Read(BatteryVoltageKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read battery voltage")
	}

	t := CalculateTelemetry(dcinCurrent.Bytes, dcinVoltage.Bytes, battCurrent.Bytes, battVoltage.Bytes)
	return &t, nil
}
