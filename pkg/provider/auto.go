package provider

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Provider names accepted by New.
const (
	NameAuto    = "auto"
	NameBattery = "battery"
	NameUPower  = "upower"
	NameWMI     = "wmi"
	NameSMC     = "smc"
)

// New builds the named provider. The processor counter always comes from
// gopsutil. With NameAuto the best source for runtime.GOOS is picked and
// distatus/battery is the fallback.
func New(name string) (*Composite, error) {
	c := &Composite{Processor: NewCPUSource()}

	switch name {
	case NameAuto, "":
		return autoDetect(c, runtime.GOOS), nil
	case NameBattery:
		b := NewBatterySource()
		c.Basic, c.Detailed = b, b
	case NameUPower:
		u, err := NewUPowerSource()
		if err != nil {
			return nil, err
		}
		c.Basic, c.Detailed = u, u
		c.Closers = append(c.Closers, u.Close)
	case NameWMI:
		w, err := NewWMISource()
		if err != nil {
			return nil, err
		}
		c.Basic, c.Detailed = w, w
	case NameSMC:
		s, err := NewSMCSource()
		if err != nil {
			return nil, err
		}
		c.Basic, c.Detailed = s, s
		c.Closers = append(c.Closers, s.Close)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}

	logrus.WithField("provider", name).Info("power provider selected")

	return c, nil
}

func autoDetect(c *Composite, goos string) *Composite {
	fallback := NewBatterySource()
	c.Basic, c.Detailed = fallback, fallback
	selected := NameBattery

	switch goos {
	case "linux":
		if u, err := NewUPowerSource(); err == nil {
			c.Basic, c.Detailed = u, u
			c.Closers = append(c.Closers, u.Close)
			selected = NameUPower
		} else {
			logrus.WithError(err).Debug("upower unavailable, falling back to battery")
		}
	case "windows":
		if w, err := NewWMISource(); err == nil {
			c.Basic, c.Detailed = w, w
			selected = NameWMI
		}
	case "darwin":
		// The IOKit battery block does not expose system draw; the SMC does.
		if s, err := NewSMCSource(); err == nil {
			c.Detailed = s
			c.Closers = append(c.Closers, s.Close)
			selected = NameSMC
		} else {
			logrus.WithError(err).Debug("smc unavailable, falling back to battery")
		}
	}

	logrus.WithFields(logrus.Fields{
		"provider": selected,
		"os":       goos,
	}).Info("power provider selected")

	return c
}
