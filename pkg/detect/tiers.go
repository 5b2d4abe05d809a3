package detect

import (
	"context"
	"math"

	pkgerrors "github.com/pkg/errors"

	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/provider"
)

// poll carries what one cascade run has learned so far.
type poll struct {
	basic provider.BasicStatus
	// block is the tier-1 answer, kept even when the tier was discarded so
	// that its runtime and capacity can still feed derived fields.
	block *provider.DetailedBlock
}

// tier is one strategy of the cascade. estimate returns the power draw in
// watts or an error that discards the tier.
type tier interface {
	Tier() powerinfo.Tier
	estimate(ctx context.Context, p *poll) (float64, error)
}

type detailedTier struct {
	c *Cascade
}

func (detailedTier) Tier() powerinfo.Tier { return powerinfo.TierDetailedQuery }

func (t detailedTier) estimate(ctx context.Context, p *poll) (float64, error) {
	cfg := t.c.Config()

	block, err := t.c.queryDetailed(ctx, cfg.DetailedQueryTimeout)
	if err != nil {
		return 0, err
	}
	p.block = &block

	return WattsFromBlock(block, cfg.MaxPlausibleWatts)
}

type counterTier struct {
	c *Cascade
}

func (counterTier) Tier() powerinfo.Tier { return powerinfo.TierPerformanceCounterEstimate }

func (t counterTier) estimate(ctx context.Context, _ *poll) (float64, error) {
	u, err := t.c.p.ProcessorUtilization(ctx)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(u) || u < 0 || u > 100 {
		return 0, pkgerrors.Wrapf(provider.ErrImplausibleValue, "processor utilization %.2f outside [0,100]", u)
	}
	return u * t.c.Config().CalibrationCoefficient, nil
}

type heuristicTier struct {
	c *Cascade
}

func (heuristicTier) Tier() powerinfo.Tier { return powerinfo.TierHeuristicEstimate }

func (t heuristicTier) estimate(_ context.Context, p *poll) (float64, error) {
	return t.c.Config().Heuristic.Watts(p.basic.Source, p.basic.BatteryPercentage), nil
}

// WattsFromBlock derives the power draw from a detailed battery block. The
// discharge rate is preferred; otherwise current and voltage are combined.
// Values outside (0, maxWatts] are rejected with ErrImplausibleValue.
func WattsFromBlock(b provider.DetailedBlock, maxWatts float64) (float64, error) {
	var watts float64
	switch {
	case b.DischargeRateMW != nil:
		watts = *b.DischargeRateMW / 1000
	case b.DischargeCurrentMA != nil && b.VoltageV != nil:
		watts = *b.DischargeCurrentMA * *b.VoltageV / 1000
	default:
		return 0, pkgerrors.Wrap(provider.ErrParse, "discharge rate not reported")
	}

	if watts <= 0 || watts > maxWatts {
		return 0, pkgerrors.Wrapf(provider.ErrImplausibleValue, "%.2f W outside (0, %.0f]", watts, maxWatts)
	}
	return watts, nil
}
