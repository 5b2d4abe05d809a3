// Package fake provides a scriptable provider.Provider for tests.
package fake

import (
	"context"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/provider"
)

var _ provider.Provider = &Provider{}

// Provider answers with whatever was last set. A nil error field means
// the call succeeds.
type Provider struct {
	mu sync.Mutex

	basic    provider.BasicStatus
	basicErr error

	block    provider.DetailedBlock
	blockErr error

	utilization    float64
	utilizationErr error

	detailedHook func(ctx context.Context)

	calls map[string]int
}

// New returns a Provider where only the basic status works.
func New(source powerinfo.PowerSource, percentage int) *Provider {
	return &Provider{
		basic:          provider.BasicStatus{Source: source, BatteryPercentage: percentage},
		blockErr:       pkgerrors.Wrap(provider.ErrSourceUnavailable, "fake: no detailed block"),
		utilizationErr: pkgerrors.Wrap(provider.ErrSourceUnavailable, "fake: no counter"),
		calls:          map[string]int{},
	}
}

func (f *Provider) SetBasic(source powerinfo.PowerSource, percentage int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.basic = provider.BasicStatus{Source: source, BatteryPercentage: percentage}
	f.basicErr = nil
}

func (f *Provider) FailBasic(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.basicErr = err
}

func (f *Provider) SetBlock(b provider.DetailedBlock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = b
	f.blockErr = nil
}

func (f *Provider) FailBlock(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockErr = err
}

func (f *Provider) SetUtilization(u float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.utilization = u
	f.utilizationErr = nil
}

func (f *Provider) FailUtilization(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.utilizationErr = err
}

// SetDetailedHook installs fn to run inside DetailedBlock before it
// answers. fn may block.
func (f *Provider) SetDetailedHook(fn func(ctx context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailedHook = fn
}

// Calls returns how often the named method was invoked.
func (f *Provider) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Provider) BasicStatus(context.Context) (provider.BasicStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["BasicStatus"]++
	if f.basicErr != nil {
		return provider.BasicStatus{}, f.basicErr
	}
	return f.basic, nil
}

func (f *Provider) DetailedBlock(ctx context.Context) (provider.DetailedBlock, error) {
	f.mu.Lock()
	hook := f.detailedHook
	f.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return provider.DetailedBlock{}, pkgerrors.Wrap(provider.ErrSourceUnavailable, err.Error())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DetailedBlock"]++
	if f.blockErr != nil {
		return provider.DetailedBlock{}, f.blockErr
	}
	return f.block, nil
}

func (f *Provider) ProcessorUtilization(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ProcessorUtilization"]++
	if f.utilizationErr != nil {
		return 0, f.utilizationErr
	}
	return f.utilization, nil
}
