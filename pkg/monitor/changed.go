package monitor

import (
	"github.com/isbattery/isbattery/pkg/events"
	"github.com/isbattery/isbattery/pkg/powerinfo"
)

// Changed reports whether cur differs materially from prev: the power draw
// or the battery percentage. Power draw is compared exactly and a missing
// draw differs from any present one. Without a previous snapshot
// everything is a change.
func Changed(prev *powerinfo.Snapshot, cur powerinfo.Snapshot) bool {
	if prev == nil {
		return true
	}
	if prev.BatteryPercentage != cur.BatteryPercentage {
		return true
	}
	switch {
	case prev.PowerDrawWatts == nil && cur.PowerDrawWatts == nil:
		return false
	case prev.PowerDrawWatts == nil || cur.PowerDrawWatts == nil:
		return true
	default:
		return *prev.PowerDrawWatts != *cur.PowerDrawWatts
	}
}

// Transitions derives the power-source and low-battery transitions between
// two snapshots. On the first snapshot (prev == nil) it reports the alert
// condition that is already active, if any.
func Transitions(prev *powerinfo.Snapshot, cur powerinfo.Snapshot, lowThreshold int) []events.Kind {
	if prev == nil {
		alert, ok := cur.Alert(lowThreshold)
		if !ok {
			return nil
		}
		switch alert.Kind {
		case powerinfo.AlertLowBattery:
			return []events.Kind{events.BatteryLow}
		case powerinfo.AlertUnplugged:
			return []events.Kind{events.ACDisconnected}
		}
		return nil
	}

	var kinds []events.Kind
	if prev.Source != cur.Source {
		if cur.Source == powerinfo.OnACPower {
			kinds = append(kinds, events.ACConnected)
		} else {
			kinds = append(kinds, events.ACDisconnected)
		}
	}

	wasLow := prev.BatteryPercentage <= lowThreshold
	isLow := cur.BatteryPercentage <= lowThreshold
	switch {
	case !wasLow && isLow:
		kinds = append(kinds, events.BatteryLow)
	case wasLow && !isLow:
		kinds = append(kinds, events.BatteryNormal)
	}

	return kinds
}
