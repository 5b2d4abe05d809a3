package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

func statusEvent(pct int) MonitorEvent {
	return MonitorEvent{
		Kind: StatusUpdate,
		Snapshot: powerinfo.Snapshot{
			Timestamp:         time.Unix(int64(pct), 0),
			Source:            powerinfo.OnBattery,
			BatteryPercentage: pct,
		},
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub(4)
	a := h.Subscribe("a")
	b := h.Subscribe("b")
	require.NotEqual(t, a.ID, b.ID)

	n := h.Publish(statusEvent(50))
	assert.Equal(t, 2, n)

	assert.Equal(t, 50, (<-a.C).Snapshot.BatteryPercentage)
	assert.Equal(t, 50, (<-b.C).Snapshot.BatteryPercentage)
}

func TestHubOrder(t *testing.T) {
	h := NewHub(8)
	s := h.Subscribe("ordered")
	for i := 1; i <= 5; i++ {
		h.Publish(statusEvent(i))
	}
	for i := 1; i <= 5; i++ {
		assert.Equal(t, i, (<-s.C).Snapshot.BatteryPercentage)
	}
}

func TestHubLaggingSubscriberGetsEverything(t *testing.T) {
	h := NewHub(2)
	slow := h.Subscribe("slow")

	done := make(chan int)
	go func() {
		n := 0
		for i := 1; i <= 5; i++ {
			n += h.Publish(statusEvent(i))
		}
		done <- n
	}()

	select {
	case n := <-done:
		assert.Equal(t, 5, n)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a subscriber that is not reading")
	}

	for i := 1; i <= 5; i++ {
		select {
		case ev := <-slow.C:
			assert.Equal(t, i, ev.Snapshot.BatteryPercentage)
		case <-time.After(time.Second):
			t.Fatalf("event %d was not delivered", i)
		}
	}
	assert.Equal(t, 0, slow.Pending())
}

func TestHubSlowSubscriberDoesNotDelayOthers(t *testing.T) {
	h := NewHub(1)
	h.Subscribe("stuck")
	fast := h.Subscribe("fast")

	for i := 1; i <= 10; i++ {
		h.Publish(statusEvent(i))
		select {
		case ev := <-fast.C:
			assert.Equal(t, i, ev.Snapshot.BatteryPercentage)
		case <-time.After(time.Second):
			t.Fatal("fast subscriber starved")
		}
	}
}

func TestHubCloseFlushes(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("sink")
	for i := 1; i <= 4; i++ {
		h.Publish(statusEvent(i))
	}
	h.Close()

	var got []int
	for ev := range s.C {
		got = append(got, ev.Snapshot.BatteryPercentage)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestHubUnsubscribeDiscardsQueued(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("leaving")
	for i := 1; i <= 4; i++ {
		h.Publish(statusEvent(i))
	}
	h.Unsubscribe(s)

	n := 0
	for range s.C {
		n++
	}
	assert.LessOrEqual(t, n, 4)
	assert.Equal(t, 0, h.Len())
}

func TestHubUnsubscribeAfterClose(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("sse")
	h.Publish(statusEvent(1))
	h.Publish(statusEvent(2))
	h.Close()
	// The consumer went away without reading; its channel still closes.
	h.Unsubscribe(s)

	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-s.C:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("channel was not closed")
		}
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(0)
	s := h.Subscribe("gone")
	h.Unsubscribe(s)
	h.Unsubscribe(s)

	_, ok := <-s.C
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0, h.Publish(statusEvent(1)))
}

func TestHubClose(t *testing.T) {
	h := NewHub(2)
	s := h.Subscribe("x")
	h.Close()

	_, ok := <-s.C
	assert.False(t, ok)

	late := h.Subscribe("late")
	_, ok = <-late.C
	assert.False(t, ok)
	assert.Equal(t, 0, h.Publish(statusEvent(1)))
}

func TestWireRoundTrip(t *testing.T) {
	ev := statusEvent(42)
	ev.Snapshot.PowerDrawWatts = ptr.To(15.0)
	ev.Snapshot.DetectionTier = powerinfo.TierHeuristicEstimate

	w, err := ev.Wire()
	require.NoError(t, err)
	assert.Equal(t, "status.update", w.Name)

	got, err := DecodeAs[MonitorEvent](w)
	require.NoError(t, err)
	assert.Equal(t, ev.Kind, got.Kind)
	assert.Equal(t, 42, got.Snapshot.BatteryPercentage)
	assert.Equal(t, 15.0, *got.Snapshot.PowerDrawWatts)
	assert.True(t, ev.Snapshot.Timestamp.Equal(got.Snapshot.Timestamp))

	empty, err := DecodeAs[MonitorEvent](Event{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, MonitorEvent{}, empty)
}
