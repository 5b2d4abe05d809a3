package powerinfo

// AlertKind identifies a condition a presentation layer should surface.
type AlertKind string

const (
	AlertNone       AlertKind = ""
	AlertLowBattery AlertKind = "LowBattery"
	AlertUnplugged  AlertKind = "Unplugged"
)

// Alert is a user-facing reminder derived from a snapshot.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
}

// Alert reports whether s warrants a reminder. Low battery wins over a
// disconnected adapter, even when plugged in.
func (s Snapshot) Alert(lowThreshold int) (Alert, bool) {
	if s.BatteryPercentage <= lowThreshold {
		return Alert{
			Kind:    AlertLowBattery,
			Message: "Battery low, please charge soon",
		}, true
	}
	if s.Source == OnBattery {
		return Alert{
			Kind:    AlertUnplugged,
			Message: "Please connect the power adapter",
		}, true
	}
	return Alert{}, false
}
