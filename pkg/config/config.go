package config

import (
	"time"

	"github.com/isbattery/isbattery/pkg/detect"
)

type Config interface {
	CheckInterval() time.Duration
	DetailedQueryTimeout() time.Duration
	CalibrationCoefficient() float64
	MaxPlausibleWatts() float64
	TypicalCapacityMWh() float64
	Heuristic() detect.HeuristicTable
	LowBatteryThreshold() int
	NotifyTransitions() bool
	SubscriberBuffer() int
	Provider() string
	AllowNonRootAccess() bool

	SetCheckInterval(seconds int) error
	SetLowBatteryThreshold(percentage int) error
	SetNotifyTransitions(bool)
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
