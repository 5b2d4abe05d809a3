package config

import (
	"github.com/isbattery/isbattery/pkg/detect"
	"github.com/isbattery/isbattery/pkg/monitor"
)

// CascadeConfig extracts the detection tuning from c.
func CascadeConfig(c Config) detect.Config {
	return detect.Config{
		DetailedQueryTimeout:   c.DetailedQueryTimeout(),
		CalibrationCoefficient: c.CalibrationCoefficient(),
		MaxPlausibleWatts:      c.MaxPlausibleWatts(),
		TypicalCapacityMWh:     c.TypicalCapacityMWh(),
		Heuristic:              c.Heuristic(),
	}
}

// MonitorSettings extracts the loop settings from c.
func MonitorSettings(c Config) monitor.Settings {
	return monitor.Settings{
		Interval:            c.CheckInterval(),
		LowBatteryThreshold: c.LowBatteryThreshold(),
		NotifyTransitions:   c.NotifyTransitions(),
	}
}
