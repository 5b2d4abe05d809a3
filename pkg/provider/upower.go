package provider

import (
	"context"

	"github.com/godbus/dbus/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/isbattery/isbattery/pkg/powerinfo"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

const (
	upowerName          = "org.freedesktop.UPower"
	upowerPath          = "/org/freedesktop/UPower"
	upowerDisplayDevice = "/org/freedesktop/UPower/devices/DisplayDevice"
	upowerDeviceIface   = "org.freedesktop.UPower.Device"
	dbusPropertiesGet   = "org.freedesktop.DBus.Properties.Get"
	dbusPropertiesAll   = "org.freedesktop.DBus.Properties.GetAll"

	upowerTypeBattery = 2
)

var _ BasicReader = &UPowerSource{}
var _ DetailedReader = &UPowerSource{}

// UPowerSource reads the UPower display device over the system D-Bus.
type UPowerSource struct {
	conn *dbus.Conn
}

// NewUPowerSource connects to the system bus. It fails with
// ErrSourceUnavailable when the bus or the UPower service is absent.
func NewUPowerSource() (*UPowerSource, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrSourceUnavailable, "upower: system bus: %v", err)
	}

	var owned bool
	err = conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, upowerName).Store(&owned)
	if err != nil || !owned {
		_ = conn.Close()
		return nil, pkgerrors.Wrap(ErrSourceUnavailable, "upower: service not running")
	}

	return &UPowerSource{conn: conn}, nil
}

// Close closes the bus connection.
func (s *UPowerSource) Close() error {
	return s.conn.Close()
}

func (s *UPowerSource) onBattery(ctx context.Context) (bool, error) {
	var v dbus.Variant
	err := s.conn.Object(upowerName, upowerPath).
		CallWithContext(ctx, dbusPropertiesGet, 0, upowerName, "OnBattery").
		Store(&v)
	if err != nil {
		return false, pkgerrors.Wrapf(ErrSourceUnavailable, "upower: OnBattery: %v", err)
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, pkgerrors.Wrapf(ErrParse, "upower: OnBattery has type %s", v.Signature())
	}
	return b, nil
}

func (s *UPowerSource) device(ctx context.Context) (map[string]dbus.Variant, error) {
	props := map[string]dbus.Variant{}
	err := s.conn.Object(upowerName, upowerDisplayDevice).
		CallWithContext(ctx, dbusPropertiesAll, 0, upowerDeviceIface).
		Store(&props)
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrSourceUnavailable, "upower: display device: %v", err)
	}

	logrus.WithField("properties", props).Trace("upower display device read")

	return props, nil
}

// BasicStatus implements BasicReader.
func (s *UPowerSource) BasicStatus(ctx context.Context) (BasicStatus, error) {
	onBattery, err := s.onBattery(ctx)
	if err != nil {
		return BasicStatus{}, err
	}
	props, err := s.device(ctx)
	if err != nil {
		return BasicStatus{}, err
	}
	return basicFromUPower(onBattery, props)
}

// DetailedBlock implements DetailedReader.
func (s *UPowerSource) DetailedBlock(ctx context.Context) (DetailedBlock, error) {
	props, err := s.device(ctx)
	if err != nil {
		return DetailedBlock{}, err
	}
	return detailedFromUPower(props)
}

func basicFromUPower(onBattery bool, props map[string]dbus.Variant) (BasicStatus, error) {
	if present, ok := variantBool(props, "IsPresent"); ok && !present {
		return BasicStatus{}, pkgerrors.Wrap(ErrSourceUnavailable, "upower: no battery present")
	}
	if typ, ok := props["Type"]; ok {
		if t, ok := typ.Value().(uint32); ok && t != upowerTypeBattery {
			return BasicStatus{}, pkgerrors.Wrapf(ErrSourceUnavailable, "upower: display device type %d is not a battery", t)
		}
	}

	pct, ok, err := variantFloat(props, "Percentage")
	if err != nil {
		return BasicStatus{}, err
	}
	if !ok {
		return BasicStatus{}, pkgerrors.Wrap(ErrParse, "upower: Percentage missing")
	}

	source := powerinfo.OnACPower
	if onBattery {
		source = powerinfo.OnBattery
	}

	return BasicStatus{Source: source, BatteryPercentage: clampPercentage(pct)}, nil
}

func detailedFromUPower(props map[string]dbus.Variant) (DetailedBlock, error) {
	var block DetailedBlock

	// Energy values are Wh and W.
	if v, ok, err := variantFloat(props, "EnergyFullDesign"); err != nil {
		return block, err
	} else if ok && v > 0 {
		block.DesignCapacityMWh = ptr.To(v * 1000)
	}
	if v, ok, err := variantFloat(props, "EnergyRate"); err != nil {
		return block, err
	} else if ok && v > 0 {
		block.DischargeRateMW = ptr.To(v * 1000)
	}
	if v, ok, err := variantFloat(props, "Voltage"); err != nil {
		return block, err
	} else if ok && v > 0 {
		block.VoltageV = ptr.To(v)
	}
	if v, ok, err := variantFloat(props, "Percentage"); err != nil {
		return block, err
	} else if ok {
		block.EstimatedChargeRemaining = ptr.To(clampPercentage(v))
	}
	if tte, ok := props["TimeToEmpty"]; ok {
		secs, ok := tte.Value().(int64)
		if !ok {
			return block, pkgerrors.Wrapf(ErrParse, "upower: TimeToEmpty has type %s", tte.Signature())
		}
		if secs > 0 {
			block.EstimatedRuntimeMinutes = ptr.To(int(secs / 60))
		}
	}

	return block, nil
}

func variantBool(props map[string]dbus.Variant, key string) (bool, bool) {
	v, ok := props[key]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}

func variantFloat(props map[string]dbus.Variant, key string) (float64, bool, error) {
	v, ok := props[key]
	if !ok {
		return 0, false, nil
	}
	f, ok := v.Value().(float64)
	if !ok {
		return 0, false, pkgerrors.Wrapf(ErrParse, "upower: %s has type %s", key, v.Signature())
	}
	return f, true, nil
}
