// Package metrics provides Prometheus metrics for isbattery.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/isbattery/isbattery/pkg/events"
	"github.com/isbattery/isbattery/pkg/monitor"
	"github.com/isbattery/isbattery/pkg/powerinfo"
)

const namespace = "isbattery"

// ─── Power state ────────────────────────────────────────────────────────────

// BatteryPercentage is the last observed charge level.
var BatteryPercentage = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "battery_percentage",
	Help:      "Last observed battery charge in percent.",
})

// PowerDrawWatts is the last observed power draw.
var PowerDrawWatts = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "power_draw_watts",
	Help:      "Last observed power draw in watts, labelled by detection tier.",
}, []string{"tier"})

// OnACPower is 1 while plugged in.
var OnACPower = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "on_ac_power",
	Help:      "1 when the device runs from AC power, 0 on battery.",
})

// RemainingTimeMinutes is the last remaining-time estimate on battery.
var RemainingTimeMinutes = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "remaining_time_minutes",
	Help:      "Estimated battery runtime in minutes, 0 when unknown or on AC.",
})

// SnapshotStale is 1 while the last snapshot repeats old values.
var SnapshotStale = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "snapshot_stale",
	Help:      "1 when the power status could not be read on the last poll.",
})

// ─── Monitor ────────────────────────────────────────────────────────────────

// Polls counts polls by result.
var Polls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "polls_total",
	Help:      "Total polls by result.",
}, []string{"result"})

// DetectionTiers counts accepted detection tiers.
var DetectionTiers = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "detection_tier_total",
	Help:      "Total snapshots by the detection tier that produced the power draw.",
}, []string{"tier"})

// PollDuration tracks how long one cascade run takes.
var PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "poll_duration_seconds",
	Help:      "Duration of one detection cascade run.",
	Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
})

// MonitorPaused is 1 while the loop is paused.
var MonitorPaused = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "monitor_paused",
	Help:      "1 while monitoring is paused.",
})

// Events counts events delivered to the metrics subscriber by kind.
var Events = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "events_total",
	Help:      "Total monitor events by kind.",
}, []string{"kind"})

var allTiers = []powerinfo.Tier{
	powerinfo.TierDetailedQuery,
	powerinfo.TierPerformanceCounterEstimate,
	powerinfo.TierHeuristicEstimate,
}

var _ monitor.Observer = Observer{}

// Observer records loop activity.
type Observer struct{}

func (Observer) ObservePoll(snap powerinfo.Snapshot, ok, _ bool, took time.Duration) {
	PollDuration.Observe(took.Seconds())
	if !ok {
		Polls.WithLabelValues("no_snapshot").Inc()
		return
	}
	if snap.Stale {
		Polls.WithLabelValues("stale").Inc()
	} else {
		Polls.WithLabelValues("ok").Inc()
	}
	SetSnapshot(snap)
}

func (Observer) ObserveState(s monitor.State) {
	MonitorPaused.Set(boolFloat(s == monitor.Paused))
}

// SetSnapshot exports snap as gauges.
func SetSnapshot(snap powerinfo.Snapshot) {
	BatteryPercentage.Set(float64(snap.BatteryPercentage))
	OnACPower.Set(boolFloat(snap.Source == powerinfo.OnACPower))
	SnapshotStale.Set(boolFloat(snap.Stale))

	for _, t := range allTiers {
		if t != snap.DetectionTier {
			PowerDrawWatts.DeleteLabelValues(string(t))
		}
	}
	if snap.PowerDrawWatts != nil {
		PowerDrawWatts.WithLabelValues(string(snap.DetectionTier)).Set(*snap.PowerDrawWatts)
		if !snap.Stale {
			DetectionTiers.WithLabelValues(string(snap.DetectionTier)).Inc()
		}
	}

	if snap.RemainingTimeMinutes != nil {
		RemainingTimeMinutes.Set(float64(*snap.RemainingTimeMinutes))
	} else {
		RemainingTimeMinutes.Set(0)
	}
}

// Consume counts the events of sub until it is closed.
func Consume(sub *events.Subscription) {
	for ev := range sub.C {
		Events.WithLabelValues(string(ev.Kind)).Inc()
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
