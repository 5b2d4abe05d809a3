//go:build windows

package provider

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/yusufpapurcu/wmi"
)

var _ BasicReader = &WMISource{}
var _ DetailedReader = &WMISource{}

// WMISource reads Win32_Battery and the root\WMI BatteryStatus class.
type WMISource struct{}

// NewWMISource returns a WMISource.
func NewWMISource() (*WMISource, error) {
	return &WMISource{}, nil
}

func (s *WMISource) win32(ctx context.Context) ([]win32Battery, error) {
	return runCtx(ctx, func() ([]win32Battery, error) {
		var dst []win32Battery
		if err := wmi.Query(win32BatteryQuery, &dst); err != nil {
			return nil, pkgerrors.Wrapf(ErrSourceUnavailable, "wmi Win32_Battery: %v", err)
		}
		logrus.WithField("instances", len(dst)).Trace("wmi Win32_Battery read")
		return dst, nil
	})
}

// BasicStatus implements BasicReader.
func (s *WMISource) BasicStatus(ctx context.Context) (BasicStatus, error) {
	bats, err := s.win32(ctx)
	if err != nil {
		return BasicStatus{}, err
	}
	return basicFromWin32(bats)
}

// DetailedBlock implements DetailedReader.
func (s *WMISource) DetailedBlock(ctx context.Context) (DetailedBlock, error) {
	bats, err := s.win32(ctx)
	if err != nil {
		return DetailedBlock{}, err
	}

	statuses, err := runCtx(ctx, func() ([]wmiBatteryStatus, error) {
		var dst []wmiBatteryStatus
		if err := wmi.QueryNamespace(wmiStatusQuery, &dst, wmiNamespace); err != nil {
			return nil, err
		}
		return dst, nil
	})
	if err != nil {
		// Many firmwares do not expose root\WMI BatteryStatus; the
		// Win32_Battery part is still useful.
		logrus.WithError(err).Debug("wmi BatteryStatus query failed")
		statuses = nil
	}

	return detailedFromWMI(bats, statuses)
}
