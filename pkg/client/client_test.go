package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isbattery/isbattery/pkg/events"
	"github.com/isbattery/isbattery/pkg/monitor"
	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestClient(t *testing.T, router http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return newClient("", srv.URL, srv.Client())
}

func snapshot() powerinfo.Snapshot {
	return powerinfo.Snapshot{
		Timestamp:            time.Unix(1700000000, 0).UTC(),
		Source:               powerinfo.OnBattery,
		BatteryPercentage:    45,
		PowerDrawWatts:       ptr.To(15.0),
		RemainingTimeMinutes: ptr.To(90),
		DetectionTier:        powerinfo.TierHeuristicEstimate,
	}
}

func TestGetStatus(t *testing.T) {
	snap := snapshot()
	router := gin.New()
	router.GET("/status", func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, monitor.Status{State: monitor.Running, Snapshot: &snap, IntervalSecs: 10})
	})
	c := newTestClient(t, router)

	st, err := c.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, monitor.Running, st.State)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, 45, st.Snapshot.BatteryPercentage)
	assert.Equal(t, 15.0, *st.Snapshot.PowerDrawWatts)
	assert.Equal(t, 10, st.IntervalSecs)
}

func TestGetStatusUnavailable(t *testing.T) {
	router := gin.New()
	router.GET("/status", func(c *gin.Context) {
		c.IndentedJSON(http.StatusServiceUnavailable, monitor.Status{State: monitor.Paused})
	})
	c := newTestClient(t, router)

	st, err := c.GetStatus()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	require.NotNil(t, st)
	assert.Equal(t, monitor.Paused, st.State)
	assert.Nil(t, st.Snapshot)
}

func TestErrorResponses(t *testing.T) {
	router := gin.New()
	router.PUT("/check-interval", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		if string(b) != "0" {
			c.IndentedJSON(http.StatusCreated, "ok")
			return
		}
		c.IndentedJSON(http.StatusBadRequest, "check interval must be positive")
	})
	c := newTestClient(t, router)

	_, err := c.SetCheckInterval(30)
	assert.NoError(t, err)

	_, err = c.SetCheckInterval(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "must be positive")

	_, err = c.Refresh()
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSimpleAPIs(t *testing.T) {
	var got []string
	router := gin.New()
	record := func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		got = append(got, c.Request.Method+" "+c.Request.URL.Path+" "+string(b))
		c.IndentedJSON(http.StatusCreated, "ok")
	}
	router.POST("/pause", record)
	router.POST("/resume", record)
	router.POST("/refresh", record)
	router.PUT("/low-battery-threshold", record)
	router.GET("/version", func(c *gin.Context) { c.IndentedJSON(http.StatusOK, "v1.2.3") })
	router.GET("/detailed-query", func(c *gin.Context) {
		c.String(http.StatusOK, `{"watts": 12.5, "duration": "3ms"}`)
	})
	c := newTestClient(t, router)

	_, err := c.Pause()
	require.NoError(t, err)
	_, err = c.Resume()
	require.NoError(t, err)
	_, err = c.Refresh()
	require.NoError(t, err)
	_, err = c.SetLowBatteryThreshold(25)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"POST /pause ",
		"POST /resume ",
		"POST /refresh ",
		"PUT /low-battery-threshold 25",
	}, got)

	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)

	r, err := c.TestDetailedQuery()
	require.NoError(t, err)
	require.NotNil(t, r.Watts)
	assert.Equal(t, 12.5, *r.Watts)
	assert.Equal(t, "3ms", r.Duration)
}

func TestWatchEvents(t *testing.T) {
	snap := snapshot()
	router := gin.New()
	router.GET("/events", func(c *gin.Context) {
		c.SSEvent(string(events.StatusUpdate), events.MonitorEvent{Kind: events.StatusUpdate, Snapshot: snap})
		c.SSEvent(string(events.ACConnected), events.MonitorEvent{Kind: events.ACConnected, Snapshot: snap})
		c.Writer.Flush()
	})
	c := newTestClient(t, router)

	var got []events.MonitorEvent
	var names []string
	err := c.WatchEvents(context.Background(), func(e events.Event) error {
		names = append(names, e.Name)
		ev, err := events.DecodeAs[events.MonitorEvent](e)
		if err != nil {
			return err
		}
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"status.update", "power.ac_connected"}, names)
	require.Len(t, got, 2)
	assert.Equal(t, events.ACConnected, got[1].Kind)
	assert.Equal(t, 45, got[0].Snapshot.BatteryPercentage)
}

func TestWatchEventsCallbackError(t *testing.T) {
	router := gin.New()
	router.GET("/events", func(c *gin.Context) {
		c.SSEvent("a", "1")
		c.SSEvent("b", "2")
	})
	c := newTestClient(t, router)

	stop := errors.New("stop")
	calls := 0
	err := c.WatchEvents(context.Background(), func(events.Event) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestWatchEventsContextCancel(t *testing.T) {
	router := gin.New()
	router.GET("/events", func(c *gin.Context) {
		c.SSEvent("hello", "world")
		c.Writer.Flush()
		<-c.Request.Context().Done()
	})
	c := newTestClient(t, router)

	ctx, cancel := context.WithCancel(context.Background())
	err := c.WatchEvents(ctx, func(e events.Event) error {
		assert.Equal(t, "hello", e.Name)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"event: multi",
		"data: line1",
		"data: line2",
		"",
		"",
		"data:{\"x\":1}",
	}, "\n")

	var got []events.Event
	err := readEvents(strings.NewReader(stream), func(e events.Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "multi", got[0].Name)
	assert.Equal(t, "line1\nline2", string(got[0].Data))
	assert.Equal(t, "message", got[1].Name)
	assert.JSONEq(t, `{"x":1}`, string(got[1].Data))
}

func TestDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))

	_, err := c.GetVersion()
	assert.ErrorIs(t, err, ErrDaemonNotRunning)

	err = c.WatchEvents(context.Background(), func(events.Event) error { return nil })
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}
