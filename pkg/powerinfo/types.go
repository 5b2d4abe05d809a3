package powerinfo

import (
	"fmt"
	"time"
)

// PowerSource represents where the device currently draws power from.
type PowerSource string

const (
	// OnACPower indicates the device is plugged in.
	OnACPower PowerSource = "OnACPower"
	// OnBattery indicates the device runs from its battery.
	OnBattery PowerSource = "OnBattery"
)

// Tier records which detection method produced PowerDrawWatts, in order of
// trustworthiness.
type Tier string

const (
	TierNone                       Tier = ""
	TierDetailedQuery              Tier = "DetailedQuery"
	TierPerformanceCounterEstimate Tier = "PerformanceCounterEstimate"
	TierHeuristicEstimate          Tier = "HeuristicEstimate"
)

// Snapshot is one immutable, timestamped observation of power state.
// Units:
// - PowerDrawWatts, ChargeRateWatts: W
// - RemainingTimeMinutes: minutes
type Snapshot struct {
	Timestamp            time.Time   `json:"timestamp"`
	Source               PowerSource `json:"source"`
	BatteryPercentage    int         `json:"batteryPercentage"`
	PowerDrawWatts       *float64    `json:"powerDrawWatts,omitempty"`
	RemainingTimeMinutes *int        `json:"remainingTimeMinutes,omitempty"`
	ChargeRateWatts      *float64    `json:"chargeRateWatts,omitempty"`
	DetectionTier        Tier        `json:"detectionTier,omitempty"`
	Stale                bool        `json:"stale"`
}

// AsStale returns a copy of s carrying the same readings, marked stale and
// stamped with ts.
func (s Snapshot) AsStale(ts time.Time) Snapshot {
	c := s
	c.Timestamp = ts
	c.Stale = true
	return c
}

// Validate checks the snapshot invariants.
func (s Snapshot) Validate() error {
	if s.BatteryPercentage < 0 || s.BatteryPercentage > 100 {
		return fmt.Errorf("battery percentage %d out of range [0,100]", s.BatteryPercentage)
	}
	if s.Source != OnACPower && s.Source != OnBattery {
		return fmt.Errorf("unknown power source %q", s.Source)
	}
	if s.PowerDrawWatts != nil {
		if *s.PowerDrawWatts < 0 {
			return fmt.Errorf("negative power draw %f", *s.PowerDrawWatts)
		}
		if s.DetectionTier == TierNone {
			return fmt.Errorf("power draw present without detection tier")
		}
	} else if s.DetectionTier != TierNone {
		return fmt.Errorf("detection tier %s recorded without power draw", s.DetectionTier)
	}
	if s.RemainingTimeMinutes != nil && s.Source != OnBattery {
		return fmt.Errorf("remaining time set while on %s", s.Source)
	}
	if s.ChargeRateWatts != nil && s.Source != OnACPower {
		return fmt.Errorf("charge rate set while on %s", s.Source)
	}
	return nil
}

// WattsString formats the power draw for humans, "-" when unknown.
func (s Snapshot) WattsString() string {
	if s.PowerDrawWatts == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f W", *s.PowerDrawWatts)
}
