package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isbattery/isbattery/pkg/config"
	"github.com/isbattery/isbattery/pkg/detect"
	"github.com/isbattery/isbattery/pkg/events"
	"github.com/isbattery/isbattery/pkg/monitor"
	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/provider"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

func init() {
	color.NoColor = true
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "45m", formatMinutes(45))
	assert.Equal(t, "1h30m", formatMinutes(90))
	assert.Equal(t, "2h05m", formatMinutes(125))
}

func TestPrintStatus(t *testing.T) {
	snap := powerinfo.Snapshot{
		Source:               powerinfo.OnBattery,
		BatteryPercentage:    45,
		PowerDrawWatts:       ptr.To(15.0),
		RemainingTimeMinutes: ptr.To(90),
		DetectionTier:        powerinfo.TierHeuristicEstimate,
		Stale:                true,
	}
	st := &monitor.Status{
		State:        monitor.Paused,
		Snapshot:     &snap,
		Alert:        &powerinfo.Alert{Kind: powerinfo.AlertUnplugged, Message: "Please connect the power adapter"},
		IntervalSecs: 10,
		Polls:        3,
		Published:    1,
		MissedPolls:  2,
	}

	var buf bytes.Buffer
	printStatus(&buf, st, config.NewFileFromConfig(nil, ""))
	out := buf.String()

	assert.Contains(t, out, "Power source: battery")
	assert.Contains(t, out, "Battery: 45%")
	assert.Contains(t, out, "Power draw: 15.0 W (rough estimate)")
	assert.Contains(t, out, "Remaining time: 1h30m")
	assert.Contains(t, out, "Stale:")
	assert.Contains(t, out, "Alert: Please connect the power adapter")
	assert.Contains(t, out, "State: paused")
	assert.Contains(t, out, "possibly missed: 2")
	assert.Contains(t, out, "Low battery threshold: 20%")
	assert.NotContains(t, out, "Charge rate")
}

func TestPrintStatusWithoutSnapshot(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, &monitor.Status{State: monitor.Running, IntervalSecs: 10}, config.NewFileFromConfig(nil, ""))
	assert.Contains(t, buf.String(), "not available yet")
	assert.Contains(t, buf.String(), "State: running")
}

func TestPrintSnapshotOnAC(t *testing.T) {
	var buf bytes.Buffer
	printSnapshot(&buf, powerinfo.Snapshot{
		Source:            powerinfo.OnACPower,
		BatteryPercentage: 15,
		PowerDrawWatts:    ptr.To(25.0),
		ChargeRateWatts:   ptr.To(25.0),
		DetectionTier:     powerinfo.TierDetailedQuery,
	})
	out := buf.String()
	assert.Contains(t, out, "Power source: AC power")
	assert.Contains(t, out, "Power draw: 25.0 W (measured)")
	assert.Contains(t, out, "Charge rate: +25.0 W")
	assert.NotContains(t, out, "Remaining time")
}

func TestPrintEvent(t *testing.T) {
	snap := powerinfo.Snapshot{Timestamp: time.Unix(100, 0), Source: powerinfo.OnBattery, BatteryPercentage: 10}
	e, err := events.MonitorEvent{Kind: events.StatusUpdate, Snapshot: snap}.Wire()
	require.NoError(t, err)

	var buf bytes.Buffer
	printEvent(&buf, e, 20)
	assert.Contains(t, buf.String(), "status update")
	assert.Contains(t, buf.String(), "Battery: 10%")
	assert.Contains(t, buf.String(), "Alert: Battery low")

	buf.Reset()
	require.NoError(t, printEventJSON(&buf, e))
	var line struct {
		Event string              `json:"event"`
		Data  events.MonitorEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "status.update", line.Event)
	assert.Equal(t, 10, line.Data.Snapshot.BatteryPercentage)
}

func TestPrintDetailedQuery(t *testing.T) {
	var buf bytes.Buffer
	printDetailedQuery(&buf, &detect.DetailedQueryResult{
		Block:     &provider.DetailedBlock{VoltageV: ptr.To(12.0)},
		Error:     "discharge rate not reported",
		ErrorKind: "ParseError",
		Duration:  "1ms",
	})
	out := buf.String()
	assert.Contains(t, out, "Accepted: ✘")
	assert.Contains(t, out, "discharge rate not reported")
	assert.Contains(t, out, "Voltage: 12.00 V")
	assert.Contains(t, out, "Discharge rate: not reported")
}

func TestCommandTree(t *testing.T) {
	cmd := NewCommand()
	for _, name := range []string{
		"daemon", "status", "watch", "detect", "pause", "resume", "refresh",
		"test-detailed", "set-interval", "set-low-threshold", "version",
		"install", "uninstall",
	} {
		c, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}
