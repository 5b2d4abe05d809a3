package daemon

import (
	"github.com/sirupsen/logrus"

	"github.com/isbattery/isbattery/pkg/events"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

// logEvents writes every event of sub to the log until it is closed.
func logEvents(sub *events.Subscription) {
	for ev := range sub.C {
		s := ev.Snapshot
		entry := logrus.WithFields(logrus.Fields{
			"event":      ev.Kind,
			"source":     s.Source,
			"percentage": s.BatteryPercentage,
			"watts":      s.WattsString(),
			"tier":       s.DetectionTier,
			"stale":      s.Stale,
		})
		if s.RemainingTimeMinutes != nil {
			entry = entry.WithField("remainingMinutes", ptr.Deref(s.RemainingTimeMinutes, 0))
		}

		switch ev.Kind {
		case events.StatusUpdate:
			entry.Info("power status changed")
		case events.BatteryLow:
			entry.Warn("battery low")
		default:
			entry.Info("power transition")
		}
	}
}
