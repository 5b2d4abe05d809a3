//go:build !windows

package provider

import (
	"context"

	pkgerrors "github.com/pkg/errors"
)

// WMISource is only functional on windows.
type WMISource struct{}

// NewWMISource always fails on this platform.
func NewWMISource() (*WMISource, error) {
	return nil, pkgerrors.Wrap(ErrSourceUnavailable, "wmi is only available on windows")
}

func (s *WMISource) BasicStatus(context.Context) (BasicStatus, error) {
	return BasicStatus{}, pkgerrors.Wrap(ErrSourceUnavailable, "wmi is only available on windows")
}

func (s *WMISource) DetailedBlock(context.Context) (DetailedBlock, error) {
	return DetailedBlock{}, pkgerrors.Wrap(ErrSourceUnavailable, "wmi is only available on windows")
}
