package detect

import (
	"time"

	"github.com/isbattery/isbattery/pkg/powerinfo"
)

// Bracket maps AC charge levels up to and including MaxPercentage to a
// fixed wattage.
type Bracket struct {
	MaxPercentage int     `json:"max_percentage" toml:"max_percentage"`
	Watts         float64 `json:"watts" toml:"watts"`
}

// HeuristicTable is the last-resort wattage lookup.
type HeuristicTable struct {
	// ACBrackets must be sorted by MaxPercentage, ascending. The last
	// bracket should reach 100.
	ACBrackets   []Bracket `json:"ac_brackets" toml:"ac_brackets"`
	BatteryWatts float64   `json:"battery_watts" toml:"battery_watts"`
}

// DefaultHeuristicTable returns the built-in wattage table.
func DefaultHeuristicTable() HeuristicTable {
	return HeuristicTable{
		ACBrackets: []Bracket{
			{MaxPercentage: 20, Watts: 25},
			{MaxPercentage: 80, Watts: 20},
			{MaxPercentage: 100, Watts: 10},
		},
		BatteryWatts: 15,
	}
}

// Watts never fails. An AC percentage above every bracket takes the last
// one.
func (h HeuristicTable) Watts(source powerinfo.PowerSource, percentage int) float64 {
	if source == powerinfo.OnBattery {
		return h.BatteryWatts
	}
	if len(h.ACBrackets) == 0 {
		return 0
	}
	for _, b := range h.ACBrackets {
		if percentage <= b.MaxPercentage {
			return b.Watts
		}
	}
	return h.ACBrackets[len(h.ACBrackets)-1].Watts
}

// Config tunes the cascade.
type Config struct {
	// DetailedQueryTimeout bounds the tier-1 query.
	DetailedQueryTimeout time.Duration
	// CalibrationCoefficient is the wattage per utilization point.
	CalibrationCoefficient float64
	// MaxPlausibleWatts is the upper bound of an accepted tier-1 reading.
	MaxPlausibleWatts float64
	// TypicalCapacityMWh is used for remaining-time estimates when the
	// battery does not report its design capacity.
	TypicalCapacityMWh float64
	Heuristic          HeuristicTable
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		DetailedQueryTimeout:   2 * time.Second,
		CalibrationCoefficient: 0.3,
		MaxPlausibleWatts:      150,
		TypicalCapacityMWh:     50000,
		Heuristic:              DefaultHeuristicTable(),
	}
}
