// Package provider exposes platform power facilities behind a small
// capability interface. Sources never retry; every failure is returned to
// the caller as one of ErrSourceUnavailable, ErrParse or ErrImplausibleValue.
package provider

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"github.com/isbattery/isbattery/pkg/powerinfo"
)

// BasicStatus is the answer of the OS power-management facility.
type BasicStatus struct {
	Source            powerinfo.PowerSource `json:"source"`
	BatteryPercentage int                   `json:"batteryPercentage"`
}

// DetailedBlock holds detailed battery telemetry. Every field may be nil
// when the facility does not report it.
// Units:
// - DesignCapacityMWh: mWh
// - DischargeRateMW: mW, power leaving the battery (or entering it on AC)
// - DischargeCurrentMA: mA
// - VoltageV: Volts
// - EstimatedRuntimeMinutes: minutes
// - EstimatedChargeRemaining: percent
type DetailedBlock struct {
	DesignCapacityMWh        *float64 `json:"designCapacityMWh"`
	DischargeRateMW          *float64 `json:"dischargeRateMW"`
	DischargeCurrentMA       *float64 `json:"dischargeCurrentMA"`
	VoltageV                 *float64 `json:"voltageV"`
	EstimatedRuntimeMinutes  *int     `json:"estimatedRuntimeMinutes"`
	EstimatedChargeRemaining *int     `json:"estimatedChargeRemaining"`
}

// BasicReader queries AC/battery status and charge percentage.
type BasicReader interface {
	BasicStatus(ctx context.Context) (BasicStatus, error)
}

// DetailedReader queries the detailed battery block.
type DetailedReader interface {
	DetailedBlock(ctx context.Context) (DetailedBlock, error)
}

// UtilizationReader queries the processor-utilization counter.
type UtilizationReader interface {
	ProcessorUtilization(ctx context.Context) (float64, error)
}

// Provider is the full capability set used by the detection cascade.
type Provider interface {
	BasicReader
	DetailedReader
	UtilizationReader
}

var _ Provider = &Composite{}

// Composite assembles a Provider from independent sources. A nil member
// reports ErrSourceUnavailable.
type Composite struct {
	Basic     BasicReader
	Detailed  DetailedReader
	Processor UtilizationReader
	// Closers are released by Close, in order.
	Closers []func() error
}

func (c *Composite) BasicStatus(ctx context.Context) (BasicStatus, error) {
	if c.Basic == nil {
		return BasicStatus{}, pkgerrors.Wrap(ErrSourceUnavailable, "no basic status source")
	}
	return c.Basic.BasicStatus(ctx)
}

func (c *Composite) DetailedBlock(ctx context.Context) (DetailedBlock, error) {
	if c.Detailed == nil {
		return DetailedBlock{}, pkgerrors.Wrap(ErrSourceUnavailable, "no detailed battery source")
	}
	return c.Detailed.DetailedBlock(ctx)
}

func (c *Composite) ProcessorUtilization(ctx context.Context) (float64, error) {
	if c.Processor == nil {
		return 0, pkgerrors.Wrap(ErrSourceUnavailable, "no processor counter")
	}
	return c.Processor.ProcessorUtilization(ctx)
}

// Close releases every source that holds a connection.
func (c *Composite) Close() error {
	var first error
	for _, fn := range c.Closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// runCtx runs fn in its own goroutine so a blocking platform call cannot
// outlive ctx from the caller's point of view. The call itself is not
// interrupted; its late result is discarded.
func runCtx[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, pkgerrors.Wrap(ErrSourceUnavailable, ctx.Err().Error())
	}
}

func clampPercentage(p float64) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return int(p + 0.5)
	}
}
