package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isbattery/isbattery/pkg/config"
	"github.com/isbattery/isbattery/pkg/events"
	"github.com/isbattery/isbattery/pkg/monitor"
	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/provider"
	"github.com/isbattery/isbattery/pkg/provider/fake"
)

type chanTicker chan time.Time

func (t chanTicker) C() <-chan time.Time { return t }
func (chanTicker) Reset(time.Duration)   {}
func (chanTicker) Stop()                 {}

type testDaemon struct {
	*Daemon
	p        *fake.Provider
	tick     chanTicker
	confPath string
}

func newTestDaemon(t *testing.T, configure func(p *fake.Provider)) *testDaemon {
	t.Helper()

	confPath := filepath.Join(t.TempDir(), "isbattery.json")
	conf, err := config.NewFile(confPath)
	require.NoError(t, err)

	td := &testDaemon{
		p:        fake.New(powerinfo.OnBattery, 45),
		tick:     make(chanTicker),
		confPath: confPath,
	}
	if configure != nil {
		configure(td.p)
	}
	td.Daemon = New(conf, td.p, monitor.WithTicker(func(time.Duration) monitor.Ticker { return td.tick }))

	ctx, cancel := context.WithCancel(context.Background())
	td.Start(ctx)
	t.Cleanup(func() {
		cancel()
		td.Stop()
	})
	return td
}

func (td *testDaemon) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	td.Handler().ServeHTTP(w, req)
	return w
}

func (td *testDaemon) status(t *testing.T) monitor.Status {
	t.Helper()
	var st monitor.Status
	require.Eventually(t, func() bool {
		w := td.do(t, http.MethodGet, "/status", "")
		if w.Code != http.StatusOK {
			return false
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestGetStatus(t *testing.T) {
	td := newTestDaemon(t, nil)

	st := td.status(t)
	assert.Equal(t, monitor.Running, st.State)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, 45, st.Snapshot.BatteryPercentage)
	assert.Equal(t, powerinfo.TierHeuristicEstimate, st.Snapshot.DetectionTier)
	require.NotNil(t, st.Alert)
	assert.Equal(t, powerinfo.AlertUnplugged, st.Alert.Kind)
}

func TestStatusUnavailable(t *testing.T) {
	td := newTestDaemon(t, func(p *fake.Provider) {
		p.FailBasic(pkgerrors.Wrap(provider.ErrSourceUnavailable, "no facility"))
	})

	w := td.do(t, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPauseResume(t *testing.T) {
	td := newTestDaemon(t, nil)
	td.status(t)

	w := td.do(t, http.MethodPost, "/pause", "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, monitor.Paused, td.status(t).State)

	w = td.do(t, http.MethodPost, "/refresh", "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, td.status(t).RefreshPending)

	w = td.do(t, http.MethodPost, "/resume", "")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, monitor.Running, td.status(t).State)
}

func TestSetCheckInterval(t *testing.T) {
	td := newTestDaemon(t, nil)

	w := td.do(t, http.MethodPut, "/check-interval", "5")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 5*time.Second, td.Loop().Settings().Interval)

	w = td.do(t, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	var raw config.RawFileConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, 5, *raw.CheckIntervalSeconds)

	saved, err := os.ReadFile(td.confPath)
	require.NoError(t, err)
	assert.Contains(t, string(saved), `"check_interval_seconds": 5`)

	assert.Equal(t, http.StatusBadRequest, td.do(t, http.MethodPut, "/check-interval", "0").Code)
	assert.Equal(t, http.StatusBadRequest, td.do(t, http.MethodPut, "/check-interval", "soon").Code)
}

func TestSetLowBatteryThreshold(t *testing.T) {
	td := newTestDaemon(t, nil)

	w := td.do(t, http.MethodPut, "/low-battery-threshold", "50")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 50, td.Loop().Settings().LowBatteryThreshold)

	st := td.status(t)
	require.NotNil(t, st.Alert)
	assert.Equal(t, powerinfo.AlertLowBattery, st.Alert.Kind)

	assert.Equal(t, http.StatusBadRequest, td.do(t, http.MethodPut, "/low-battery-threshold", "120").Code)
}

func TestDetailedQueryEndpoint(t *testing.T) {
	td := newTestDaemon(t, nil)
	td.status(t)

	w := td.do(t, http.MethodGet, "/detailed-query", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"errorKind": "SourceUnavailable"`)
}

func TestVersionAndMetrics(t *testing.T) {
	td := newTestDaemon(t, nil)
	td.status(t)

	w := td.do(t, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = td.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "isbattery_battery_percentage 45")
}

func TestReload(t *testing.T) {
	td := newTestDaemon(t, nil)

	require.NoError(t, os.WriteFile(td.confPath, []byte(`{"check_interval_seconds": 7, "notify_transitions": true}`), 0644))
	require.NoError(t, td.Reload())

	s := td.Loop().Settings()
	assert.Equal(t, 7*time.Second, s.Interval)
	assert.True(t, s.NotifyTransitions)

	require.NoError(t, os.WriteFile(td.confPath, []byte(`{"check_interval_seconds": -1}`), 0644))
	assert.Error(t, td.Reload())
	assert.Equal(t, 7*time.Second, td.Loop().Settings().Interval)
}

func TestStreamEvents(t *testing.T) {
	td := newTestDaemon(t, nil)
	td.status(t)

	srv := httptest.NewServer(td.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	nextEvent := func() events.MonitorEvent {
		t.Helper()
		var name string
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed")
				switch {
				case strings.HasPrefix(line, "event:"):
					name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				case strings.HasPrefix(line, "data:"):
					ev, err := events.DecodeAs[events.MonitorEvent](events.Event{
						Name: name,
						Data: json.RawMessage(strings.TrimSpace(strings.TrimPrefix(line, "data:"))),
					})
					require.NoError(t, err)
					assert.Equal(t, string(ev.Kind), name)
					return ev
				}
			case <-timeout:
				t.Fatal("timed out waiting for an event")
			}
		}
	}

	first := nextEvent()
	assert.Equal(t, events.StatusUpdate, first.Kind)
	assert.Equal(t, 45, first.Snapshot.BatteryPercentage)

	require.Eventually(t, func() bool { return td.Hub().Len() == 3 }, 2*time.Second, 5*time.Millisecond)
	td.p.SetBasic(powerinfo.OnBattery, 44)
	td.tick <- time.Now()

	next := nextEvent()
	assert.Equal(t, events.StatusUpdate, next.Kind)
	assert.Equal(t, 44, next.Snapshot.BatteryPercentage)
}

func TestStopWithoutStart(t *testing.T) {
	conf, err := config.NewFile(filepath.Join(t.TempDir(), "isbattery.json"))
	require.NoError(t, err)
	d := New(conf, fake.New(powerinfo.OnBattery, 45))

	done := make(chan struct{})
	go func() {
		d.Stop()
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop without Start did not return")
	}
	assert.Equal(t, 0, d.Hub().Len())
}

func TestStartTwice(t *testing.T) {
	td := newTestDaemon(t, nil)
	td.Start(context.Background())
	td.status(t)
	assert.Equal(t, 2, td.Hub().Len())
}
