package smc

import (
	"encoding/binary"
	"math"
)

// PowerTelemetry holds the calculated power data from the SMC.
type PowerTelemetry struct {
	ACPower        float64 `json:"ac_power"`
	BatteryPower   float64 `json:"battery_power"`
	SystemPower    float64 `json:"system_power"`
	ACVoltage      float64 `json:"ac_voltage"`
	ACAmperage     float64 `json:"ac_amperage"`
	BatteryVoltage float64 `json:"battery_voltage"`
}

// CalculateTelemetry derives power flows from raw key values. Battery power
// is positive while charging.
func CalculateTelemetry(dcinCurrent, dcinVoltage, battCurrent, battVoltage []byte) PowerTelemetry {
	acAmperage := decodeFloat(dcinCurrent)
	acVoltage := decodeFloat(dcinVoltage)
	pAC := acAmperage * acVoltage

	vBatt := float64(decodeUint(battVoltage)) / 1000.0
	pBatt := (float64(decodeInt(battCurrent)) / 1000.0) * vBatt

	return PowerTelemetry{
		ACPower:        pAC,
		BatteryPower:   pBatt,
		SystemPower:    pAC - pBatt,
		ACVoltage:      acVoltage,
		ACAmperage:     acAmperage,
		BatteryVoltage: vBatt,
	}
}

// decodeFloat decodes a 4-byte slice into a little-endian float32.
func decodeFloat(b []byte) float64 {
	if len(b) != 4 {
		return 0
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

// decodeInt decodes a 2-byte slice into a little-endian int16.
func decodeInt(b []byte) int16 {
	if len(b) != 2 {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(b))
}

// decodeUint decodes a 2-byte slice into a little-endian uint16.
func decodeUint(b []byte) uint16 {
	if len(b) != 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}
