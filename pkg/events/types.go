package events

import (
	"encoding/json"

	"github.com/isbattery/isbattery/pkg/powerinfo"
)

// Kind names a monitor event. It doubles as the SSE event name.
type Kind string

const (
	// StatusUpdate carries a snapshot that differs from the previously
	// observed one, or the first snapshot, or a forced refresh.
	StatusUpdate Kind = "status.update"

	ACConnected    Kind = "power.ac_connected"
	ACDisconnected Kind = "power.ac_disconnected"
	BatteryLow     Kind = "battery.low"
	BatteryNormal  Kind = "battery.normal"
)

// MonitorEvent is what the monitor loop publishes.
type MonitorEvent struct {
	Kind     Kind               `json:"kind"`
	Snapshot powerinfo.Snapshot `json:"snapshot"`
}

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// Wire converts a monitor event for out-of-process subscribers.
func (e MonitorEvent) Wire() (Event, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: string(e.Kind), Data: b}, nil
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	ev, err := events.DecodeAs[events.MonitorEvent](e)
//	if err != nil { /* handle */ }
//	fmt.Println(ev.Kind, ev.Snapshot.BatteryPercentage)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
