package provider

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/sirupsen/logrus"
)

var _ UtilizationReader = &CPUSource{}

// CPUSource reads total processor utilization. Each reading covers the time
// since the previous call.
type CPUSource struct {
	// percent is a test seam; defaults to cpu.PercentWithContext.
	percent func(ctx context.Context) ([]float64, error)
}

// NewCPUSource returns a CPUSource.
func NewCPUSource() *CPUSource {
	return &CPUSource{
		percent: func(ctx context.Context) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, false)
		},
	}
}

// ProcessorUtilization implements UtilizationReader.
func (s *CPUSource) ProcessorUtilization(ctx context.Context) (float64, error) {
	values, err := s.percent(ctx)
	if err != nil {
		return 0, pkgerrors.Wrapf(ErrSourceUnavailable, "cpu counter: %v", err)
	}
	if len(values) == 0 {
		return 0, pkgerrors.Wrap(ErrParse, "cpu counter: no samples")
	}

	logrus.WithField("utilization", values[0]).Trace("cpu counter read")

	return values[0], nil
}
