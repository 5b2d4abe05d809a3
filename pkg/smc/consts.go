package smc

// SMC keys on Apple Silicon.
const (
	ACPowerKey        = "AC-W"
	BatteryChargeKey  = "BUIC"
	BatteryCurrentKey = "B0AC" // int16, mA, negative when discharging
	BatteryVoltageKey = "B0AV" // uint16, mV
	DCInCurrentKey    = "ID0R" // float32, A
	DCInVoltageKey    = "VD0R" // float32, V
)
