//go:build !darwin

package provider

import (
	"context"

	pkgerrors "github.com/pkg/errors"
)

// SMCSource is only functional on darwin.
type SMCSource struct{}

// NewSMCSource always fails on this platform.
func NewSMCSource() (*SMCSource, error) {
	return nil, pkgerrors.Wrap(ErrSourceUnavailable, "smc is only available on darwin")
}

func (s *SMCSource) Close() error { return nil }

func (s *SMCSource) BasicStatus(context.Context) (BasicStatus, error) {
	return BasicStatus{}, pkgerrors.Wrap(ErrSourceUnavailable, "smc is only available on darwin")
}

func (s *SMCSource) DetailedBlock(context.Context) (DetailedBlock, error) {
	return DetailedBlock{}, pkgerrors.Wrap(ErrSourceUnavailable, "smc is only available on darwin")
}
