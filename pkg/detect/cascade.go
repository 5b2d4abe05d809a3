// Package detect turns provider readings into power snapshots. Power draw
// comes from the most trustworthy tier that produces a usable value:
// the detailed battery query, then a processor-utilization estimate, then a
// fixed heuristic table.
package detect

import (
	"context"
	"math"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/provider"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

const maxReportedRuntimeMinutes = 24 * 60

// Cascade runs the detection tiers against a provider.
type Cascade struct {
	p     provider.Provider
	tiers []tier

	mu  sync.RWMutex
	cfg Config

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// New returns a Cascade over p.
func New(p provider.Provider, cfg Config) *Cascade {
	c := &Cascade{
		p:   p,
		cfg: cfg,
		now: time.Now,
	}
	c.tiers = []tier{
		detailedTier{c},
		counterTier{c},
		heuristicTier{c},
	}
	return c
}

// Config returns the current tuning.
func (c *Cascade) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// SetConfig replaces the tuning. It takes effect on the next poll.
func (c *Cascade) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

func (c *Cascade) queryDetailed(ctx context.Context, timeout time.Duration) (provider.DetailedBlock, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.p.DetailedBlock(ctx)
}

// Detect runs one poll. prev is the snapshot of the previous poll, or nil.
//
// When the basic status cannot be read or is implausible, the previous
// snapshot is repeated with Stale set. Without a previous snapshot there is nothing to repeat and
// ok is false.
func (c *Cascade) Detect(ctx context.Context, prev *powerinfo.Snapshot) (snap powerinfo.Snapshot, ok bool) {
	ts := c.now()
	// Published timestamps are strictly increasing.
	if prev != nil && !ts.After(prev.Timestamp) {
		ts = prev.Timestamp.Add(time.Nanosecond)
	}

	basic, err := c.p.BasicStatus(ctx)
	if err == nil {
		err = checkBasic(basic)
	}
	if err != nil {
		entry := logrus.WithError(err).WithField("kind", provider.Kind(err))
		if prev == nil {
			entry.Warn("failed to read power status, no previous snapshot to repeat")
			return powerinfo.Snapshot{}, false
		}
		entry.Warn("failed to read power status, repeating previous snapshot")
		return prev.AsStale(ts), true
	}

	p := &poll{basic: basic}
	for _, t := range c.tiers {
		watts, err := t.estimate(ctx, p)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"tier": t.Tier(),
				"kind": provider.Kind(err),
			}).Debug("tier discarded")
			continue
		}

		snap = c.build(ts, p, t.Tier(), watts)
		logrus.WithFields(logrus.Fields{
			"source":     snap.Source,
			"percentage": snap.BatteryPercentage,
			"watts":      watts,
			"tier":       snap.DetectionTier,
		}).Trace("detected power state")
		return snap, true
	}

	// Only reachable with a custom tier list whose last tier can fail.
	return powerinfo.Snapshot{
		Timestamp:         ts,
		Source:            basic.Source,
		BatteryPercentage: basic.BatteryPercentage,
	}, true
}

func checkBasic(b provider.BasicStatus) error {
	if b.BatteryPercentage < 0 || b.BatteryPercentage > 100 {
		return pkgerrors.Wrapf(provider.ErrImplausibleValue, "battery percentage %d outside [0,100]", b.BatteryPercentage)
	}
	return nil
}

func (c *Cascade) build(ts time.Time, p *poll, t powerinfo.Tier, watts float64) powerinfo.Snapshot {
	snap := powerinfo.Snapshot{
		Timestamp:         ts,
		Source:            p.basic.Source,
		BatteryPercentage: p.basic.BatteryPercentage,
		PowerDrawWatts:    ptr.To(watts),
		DetectionTier:     t,
	}

	switch p.basic.Source {
	case powerinfo.OnBattery:
		snap.RemainingTimeMinutes = c.remainingTime(p, watts)
	case powerinfo.OnACPower:
		if t != powerinfo.TierPerformanceCounterEstimate {
			snap.ChargeRateWatts = ptr.To(watts)
		}
	}

	return snap
}

func (c *Cascade) remainingTime(p *poll, watts float64) *int {
	capacity := c.Config().TypicalCapacityMWh
	if p.block != nil {
		if rt := p.block.EstimatedRuntimeMinutes; rt != nil && *rt > 0 && *rt <= maxReportedRuntimeMinutes {
			return ptr.To(*rt)
		}
		if p.block.DesignCapacityMWh != nil && *p.block.DesignCapacityMWh > 0 {
			capacity = *p.block.DesignCapacityMWh
		}
	}
	if watts <= 0 || capacity <= 0 {
		return nil
	}

	// mWh / 1000 = Wh; Wh / W = hours.
	remainingWh := capacity / 1000 * float64(p.basic.BatteryPercentage) / 100
	return ptr.To(int(math.Round(remainingWh / watts * 60)))
}
