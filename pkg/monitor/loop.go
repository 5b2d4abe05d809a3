// Package monitor runs the polling loop: it detects the power state on a
// fixed interval, compares it with the previous observation and publishes
// an event when it materially changed.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/isbattery/isbattery/pkg/detect"
	"github.com/isbattery/isbattery/pkg/events"
	"github.com/isbattery/isbattery/pkg/powerinfo"
)

// State is the run state of a Loop.
type State string

const (
	Running State = "running"
	Paused  State = "paused"
)

// ErrStopped is returned by control methods once the loop has exited.
var ErrStopped = errors.New("monitor loop stopped")

const (
	// DefaultInterval is the default poll interval.
	DefaultInterval = 10 * time.Second
	// DefaultLowBatteryThreshold is the default low-battery percentage.
	DefaultLowBatteryThreshold = 20

	recorderSize = 60
	// Polls expected within the missed-poll window.
	missedPollWindow = 8
)

// Detector produces snapshots.
type Detector interface {
	Detect(ctx context.Context, prev *powerinfo.Snapshot) (powerinfo.Snapshot, bool)
	TestDetailedQuery(ctx context.Context) detect.DetailedQueryResult
}

// Publisher receives published events. It must not block.
type Publisher interface {
	Publish(ev events.MonitorEvent) int
}

// Observer is notified after every poll that ran.
type Observer interface {
	ObservePoll(snap powerinfo.Snapshot, ok, published bool, took time.Duration)
	ObserveState(s State)
}

// Settings can be changed while the loop runs.
type Settings struct {
	Interval            time.Duration
	LowBatteryThreshold int
	NotifyTransitions   bool
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Interval:            DefaultInterval,
		LowBatteryThreshold: DefaultLowBatteryThreshold,
	}
}

// Status is a copy of the loop state.
type Status struct {
	State          State               `json:"state"`
	Snapshot       *powerinfo.Snapshot `json:"snapshot,omitempty"`
	Alert          *powerinfo.Alert    `json:"alert,omitempty"`
	RefreshPending bool                `json:"refreshPending"`
	IntervalSecs   int                 `json:"checkIntervalSeconds"`
	LastPoll       time.Time           `json:"lastPoll"`
	Polls          uint64              `json:"polls"`
	Published      uint64              `json:"published"`
	MissedPolls    uint64              `json:"missedPolls"`
}

// Ticker drives the loop.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time   { return t.t.C }
func (t timeTicker) Reset(d time.Duration) { t.t.Reset(d) }
func (t timeTicker) Stop()                 { t.t.Stop() }

// Option configures a Loop.
type Option func(*Loop)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// WithTicker replaces the interval ticker.
func WithTicker(newTicker func(d time.Duration) Ticker) Option {
	return func(l *Loop) { l.newTicker = newTicker }
}

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdRefresh
	cmdStop
	cmdTestDetailed
	cmdStatus
)

func (k commandKind) String() string {
	switch k {
	case cmdPause:
		return "pause"
	case cmdResume:
		return "resume"
	case cmdRefresh:
		return "refresh"
	case cmdStop:
		return "stop"
	case cmdTestDetailed:
		return "test-detailed"
	case cmdStatus:
		return "status"
	default:
		return "unknown"
	}
}

type command struct {
	kind     commandKind
	detailed chan detect.DetailedQueryResult
	status   chan Status
}

// Loop is the monitor. Every field below the control channel is owned by
// the Run goroutine.
type Loop struct {
	detector  Detector
	pub       Publisher
	observers []Observer
	newTicker func(d time.Duration) Ticker
	recorder  *PollRecorder

	settingsMu sync.RWMutex
	settings   Settings

	cmds chan command
	done chan struct{}

	state          State
	previous       *powerinfo.Snapshot
	refreshPending bool
	lastPoll       time.Time
	polls          uint64
	published      uint64
	missed         uint64
}

// New returns a Loop in the Running state. Call Run to start it.
func New(d Detector, pub Publisher, s Settings, opts ...Option) *Loop {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	l := &Loop{
		detector: d,
		pub:      pub,
		newTicker: func(d time.Duration) Ticker {
			return timeTicker{time.NewTicker(d)}
		},
		recorder: NewPollRecorder(recorderSize),
		settings: s,
		cmds:     make(chan command, 16),
		done:     make(chan struct{}),
		state:    Running,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Settings returns the current settings.
func (l *Loop) Settings() Settings {
	l.settingsMu.RLock()
	defer l.settingsMu.RUnlock()
	return l.settings
}

// SetSettings replaces the settings. A new interval applies after the
// next tick.
func (l *Loop) SetSettings(s Settings) {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	l.settings = s
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) send(ctx context.Context, cmd command) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}

	select {
	case l.cmds <- cmd:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause stops publishing until Resume. Pausing a paused loop does nothing.
func (l *Loop) Pause() error {
	return l.send(context.Background(), command{kind: cmdPause})
}

// Resume returns a paused loop to Running. The next tick polls.
func (l *Loop) Resume() error {
	return l.send(context.Background(), command{kind: cmdResume})
}

// ForceRefresh makes the next running tick publish even if nothing
// changed.
func (l *Loop) ForceRefresh() error {
	return l.send(context.Background(), command{kind: cmdRefresh})
}

// Stop ends the loop and waits for Run to return. A poll in flight
// completes but is not published. Run must have been called.
func (l *Loop) Stop() {
	if err := l.send(context.Background(), command{kind: cmdStop}); err != nil {
		return
	}
	<-l.done
}

// TestDetailedQuery runs the detailed battery query once, between polls.
func (l *Loop) TestDetailedQuery(ctx context.Context) (detect.DetailedQueryResult, error) {
	reply := make(chan detect.DetailedQueryResult, 1)
	if err := l.send(ctx, command{kind: cmdTestDetailed, detailed: reply}); err != nil {
		return detect.DetailedQueryResult{}, err
	}
	select {
	case r := <-reply:
		return r, nil
	case <-l.done:
		return detect.DetailedQueryResult{}, ErrStopped
	case <-ctx.Done():
		return detect.DetailedQueryResult{}, ctx.Err()
	}
}

// Status returns a copy of the loop state.
func (l *Loop) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := l.send(ctx, command{kind: cmdStatus, status: reply}); err != nil {
		return Status{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-l.done:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Run polls until Stop is called or ctx is done. The first poll happens
// immediately.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	interval := l.Settings().Interval
	ticker := l.newTicker(interval)
	defer ticker.Stop()

	logrus.WithField("interval", interval).Info("monitor loop started")

	// Commands sent before Run apply before the first poll.
	if l.drain(ctx) {
		return
	}
	if l.tick(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			logrus.Info("monitor loop cancelled")
			return
		case cmd := <-l.cmds:
			if l.handle(ctx, cmd) {
				return
			}
		case <-ticker.C():
			if l.tick(ctx) {
				return
			}
			if d := l.Settings().Interval; d != interval {
				logrus.WithFields(logrus.Fields{
					"from": interval,
					"to":   d,
				}).Info("check interval changed")
				interval = d
				ticker.Reset(d)
			}
		}
	}
}

// drain handles every queued command without blocking. It returns true
// when the loop must exit.
func (l *Loop) drain(ctx context.Context) bool {
	for {
		select {
		case cmd := <-l.cmds:
			if l.handle(ctx, cmd) {
				return true
			}
		default:
			return false
		}
	}
}

// collect takes every queued command without handling it. stop is true
// if one of them is a stop.
func (l *Loop) collect() (pending []command, stop bool) {
	for {
		select {
		case cmd := <-l.cmds:
			if cmd.kind == cmdStop {
				logrus.Info("monitor loop stopped during poll")
				return nil, true
			}
			pending = append(pending, cmd)
		default:
			return pending, false
		}
	}
}

func (l *Loop) handle(ctx context.Context, cmd command) bool {
	logrus.WithField("command", cmd.kind).Debug("monitor command received")

	switch cmd.kind {
	case cmdPause:
		if l.state == Paused {
			logrus.Debug("already paused")
			return false
		}
		l.setState(Paused)
		// Skipped polls are not missed polls.
		l.recorder.ClearRecords()
	case cmdResume:
		if l.state == Running {
			logrus.Debug("already running")
			return false
		}
		l.setState(Running)
	case cmdRefresh:
		l.refreshPending = true
	case cmdStop:
		logrus.Info("monitor loop stopped")
		return true
	case cmdTestDetailed:
		cmd.detailed <- l.detector.TestDetailedQuery(ctx)
	case cmdStatus:
		cmd.status <- l.status()
	}
	return false
}

func (l *Loop) setState(s State) {
	logrus.WithFields(logrus.Fields{
		"from": l.state,
		"to":   s,
	}).Info("monitor state changed")
	l.state = s
	for _, o := range l.observers {
		o.ObserveState(s)
	}
}

func (l *Loop) status() Status {
	s := l.Settings()
	st := Status{
		State:          l.state,
		RefreshPending: l.refreshPending,
		IntervalSecs:   int(s.Interval / time.Second),
		LastPoll:       l.lastPoll,
		Polls:          l.polls,
		Published:      l.published,
		MissedPolls:    l.missed,
	}
	if l.previous != nil {
		snap := *l.previous
		st.Snapshot = &snap
		if a, ok := snap.Alert(s.LowBatteryThreshold); ok {
			st.Alert = &a
		}
	}
	return st
}

// tick runs one poll when Running. It returns true when the loop must
// exit.
func (l *Loop) tick(ctx context.Context) bool {
	if l.state == Paused {
		logrus.Trace("paused, skipping poll")
		return false
	}

	s := l.Settings()
	l.checkMissedPolls(s.Interval)
	l.recorder.AddRecordNow()

	start := time.Now()
	snap, ok := l.detector.Detect(ctx, l.previous)
	took := time.Since(start)

	// A stop that arrived during detection wins over publishing. Other
	// commands wait until the poll is complete.
	pending, stop := l.collect()
	if stop || ctx.Err() != nil {
		return true
	}
	defer func() {
		for _, cmd := range pending {
			l.handle(ctx, cmd)
		}
	}()

	l.polls++
	l.lastPoll = start
	if !ok {
		l.observe(snap, false, false, took)
		return false
	}

	// Transition events go out before the status update of the same poll.
	if s.NotifyTransitions {
		for _, k := range Transitions(l.previous, snap, s.LowBatteryThreshold) {
			l.pub.Publish(events.MonitorEvent{Kind: k, Snapshot: snap})
			logrus.WithField("event", k).Info("power transition")
		}
	}

	publish := l.previous == nil || l.refreshPending || Changed(l.previous, snap)
	if publish {
		n := l.pub.Publish(events.MonitorEvent{Kind: events.StatusUpdate, Snapshot: snap})
		l.published++
		l.refreshPending = false
		logrus.WithFields(logrus.Fields{
			"source":      snap.Source,
			"percentage":  snap.BatteryPercentage,
			"watts":       snap.WattsString(),
			"tier":        snap.DetectionTier,
			"stale":       snap.Stale,
			"subscribers": n,
		}).Debug("status published")
	} else {
		logrus.Trace("status unchanged")
	}

	l.previous = &snap
	l.observe(snap, true, publish, took)
	return false
}

func (l *Loop) observe(snap powerinfo.Snapshot, ok, published bool, took time.Duration) {
	for _, o := range l.observers {
		o.ObservePoll(snap, ok, published, took)
	}
}

func (l *Loop) checkMissedPolls(interval time.Duration) bool {
	window := missedPollWindow * interval
	minCount := missedPollWindow - 1

	// Not enough history yet.
	if l.recorder.Len() < missedPollWindow {
		return false
	}

	count := l.recorder.GetRecordsIn(window, interval)
	if count >= minCount {
		return false
	}

	l.missed++
	logrus.WithFields(logrus.Fields{
		"pollCount":     count,
		"expectedCount": missedPollWindow,
		"minCount":      minCount,
		"recentRecords": l.recorder.formatRelativeTimes(l.recorder.GetLastRecords(window)),
	}).Info("possibly missed polls")
	return true
}
