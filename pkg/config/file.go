package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/isbattery/isbattery/pkg/detect"
	"github.com/isbattery/isbattery/pkg/provider"
	"github.com/isbattery/isbattery/pkg/utils/ptr"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "/etc/isbattery.json"

var (
	defaultFileConfig = &RawFileConfig{
		CheckIntervalSeconds:   ptr.To(10),
		DetailedQueryTimeoutMs: ptr.To(2000),
		CalibrationCoefficient: ptr.To(0.3),
		MaxPlausibleWatts:      ptr.To(150.0),
		TypicalCapacityMWh:     ptr.To(50000.0),
		LowBatteryThreshold:    ptr.To(20),
		NotifyTransitions:      ptr.To(false),
		SubscriberBuffer:       ptr.To(16),
		Provider:               ptr.To(provider.NameAuto),
		AllowNonRootAccess:     ptr.To(false),
	}

	knownProviders = []string{
		provider.NameAuto,
		provider.NameBattery,
		provider.NameUPower,
		provider.NameWMI,
		provider.NameSMC,
	}
)

var _ Config = &File{}

// File is a Config backed by a JSON file, or a TOML file when the path
// ends in .toml.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

// RawHeuristic overrides the heuristic wattage table. Omitted parts keep
// their defaults.
type RawHeuristic struct {
	ACBrackets   []detect.Bracket `json:"ac_brackets,omitempty" toml:"ac_brackets,omitempty"`
	BatteryWatts *float64         `json:"battery_watts,omitempty" toml:"battery_watts,omitempty"`
}

type RawFileConfig struct {
	CheckIntervalSeconds   *int          `json:"check_interval_seconds,omitempty" toml:"check_interval_seconds,omitempty"`
	DetailedQueryTimeoutMs *int          `json:"detailed_query_timeout_ms,omitempty" toml:"detailed_query_timeout_ms,omitempty"`
	CalibrationCoefficient *float64      `json:"calibration_coefficient,omitempty" toml:"calibration_coefficient,omitempty"`
	MaxPlausibleWatts      *float64      `json:"max_plausible_watts,omitempty" toml:"max_plausible_watts,omitempty"`
	TypicalCapacityMWh     *float64      `json:"typical_capacity_mwh,omitempty" toml:"typical_capacity_mwh,omitempty"`
	Heuristic              *RawHeuristic `json:"heuristic,omitempty" toml:"heuristic,omitempty"`
	LowBatteryThreshold    *int          `json:"low_battery_threshold,omitempty" toml:"low_battery_threshold,omitempty"`
	NotifyTransitions      *bool         `json:"notify_transitions,omitempty" toml:"notify_transitions,omitempty"`
	SubscriberBuffer       *int          `json:"subscriber_buffer,omitempty" toml:"subscriber_buffer,omitempty"`
	Provider               *string       `json:"provider,omitempty" toml:"provider,omitempty"`
	AllowNonRootAccess     *bool         `json:"allow_non_root_access,omitempty" toml:"allow_non_root_access,omitempty"`
}

// NewRawFileConfigFromConfig returns the effective values of c, defaults
// filled in.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	h := c.Heuristic()
	rawConfig := &RawFileConfig{
		CheckIntervalSeconds:   ptr.To(int(c.CheckInterval() / time.Second)),
		DetailedQueryTimeoutMs: ptr.To(int(c.DetailedQueryTimeout() / time.Millisecond)),
		CalibrationCoefficient: ptr.To(c.CalibrationCoefficient()),
		MaxPlausibleWatts:      ptr.To(c.MaxPlausibleWatts()),
		TypicalCapacityMWh:     ptr.To(c.TypicalCapacityMWh()),
		Heuristic: &RawHeuristic{
			ACBrackets:   h.ACBrackets,
			BatteryWatts: ptr.To(h.BatteryWatts),
		},
		LowBatteryThreshold: ptr.To(c.LowBatteryThreshold()),
		NotifyTransitions:   ptr.To(c.NotifyTransitions()),
		SubscriberBuffer:    ptr.To(c.SubscriberBuffer()),
		Provider:            ptr.To(c.Provider()),
		AllowNonRootAccess:  ptr.To(c.AllowNonRootAccess()),
	}

	return rawConfig, nil
}

// Validate checks the values that are set.
func (r *RawFileConfig) Validate() error {
	if v := r.CheckIntervalSeconds; v != nil && *v < 1 {
		return pkgerrors.Errorf("check_interval_seconds must be at least 1, got %d", *v)
	}
	if v := r.DetailedQueryTimeoutMs; v != nil && *v < 1 {
		return pkgerrors.Errorf("detailed_query_timeout_ms must be positive, got %d", *v)
	}
	if v := r.CalibrationCoefficient; v != nil && *v < 0 {
		return pkgerrors.Errorf("calibration_coefficient must not be negative, got %v", *v)
	}
	if v := r.MaxPlausibleWatts; v != nil && *v <= 0 {
		return pkgerrors.Errorf("max_plausible_watts must be positive, got %v", *v)
	}
	if v := r.TypicalCapacityMWh; v != nil && *v <= 0 {
		return pkgerrors.Errorf("typical_capacity_mwh must be positive, got %v", *v)
	}
	if v := r.LowBatteryThreshold; v != nil && (*v < 0 || *v > 100) {
		return pkgerrors.Errorf("low_battery_threshold must be between 0 and 100, got %d", *v)
	}
	if v := r.SubscriberBuffer; v != nil && *v < 1 {
		return pkgerrors.Errorf("subscriber_buffer must be at least 1, got %d", *v)
	}
	if v := r.Provider; v != nil {
		known := false
		for _, p := range knownProviders {
			known = known || p == *v
		}
		if !known {
			return pkgerrors.Errorf("unknown provider %q, expected one of %s", *v, strings.Join(knownProviders, ", "))
		}
	}
	if h := r.Heuristic; h != nil {
		if h.BatteryWatts != nil && *h.BatteryWatts < 0 {
			return pkgerrors.Errorf("heuristic.battery_watts must not be negative, got %v", *h.BatteryWatts)
		}
		if !sort.SliceIsSorted(h.ACBrackets, func(i, j int) bool {
			return h.ACBrackets[i].MaxPercentage < h.ACBrackets[j].MaxPercentage
		}) {
			return pkgerrors.New("heuristic.ac_brackets must be sorted by max_percentage")
		}
		for _, b := range h.ACBrackets {
			if b.MaxPercentage < 0 || b.MaxPercentage > 100 || b.Watts < 0 {
				return pkgerrors.Errorf("invalid heuristic bracket %+v", b)
			}
		}
	}
	return nil
}

func (f *File) read() *RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}
	return f.c
}

func (f *File) CheckInterval() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	secs := ptr.Deref(f.read().CheckIntervalSeconds, *defaultFileConfig.CheckIntervalSeconds)
	return time.Duration(secs) * time.Second
}

func (f *File) DetailedQueryTimeout() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ms := ptr.Deref(f.read().DetailedQueryTimeoutMs, *defaultFileConfig.DetailedQueryTimeoutMs)
	return time.Duration(ms) * time.Millisecond
}

func (f *File) CalibrationCoefficient() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.read().CalibrationCoefficient, *defaultFileConfig.CalibrationCoefficient)
}

func (f *File) MaxPlausibleWatts() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.read().MaxPlausibleWatts, *defaultFileConfig.MaxPlausibleWatts)
}

func (f *File) TypicalCapacityMWh() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.read().TypicalCapacityMWh, *defaultFileConfig.TypicalCapacityMWh)
}

func (f *File) Heuristic() detect.HeuristicTable {
	f.mu.RLock()
	defer f.mu.RUnlock()

	table := detect.DefaultHeuristicTable()
	h := f.read().Heuristic
	if h == nil {
		return table
	}
	if len(h.ACBrackets) > 0 {
		table.ACBrackets = append([]detect.Bracket(nil), h.ACBrackets...)
	}
	if h.BatteryWatts != nil {
		table.BatteryWatts = *h.BatteryWatts
	}
	return table
}

func (f *File) LowBatteryThreshold() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.read().LowBatteryThreshold, *defaultFileConfig.LowBatteryThreshold)
}

func (f *File) NotifyTransitions() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.read().NotifyTransitions, *defaultFileConfig.NotifyTransitions)
}

func (f *File) SubscriberBuffer() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.read().SubscriberBuffer, *defaultFileConfig.SubscriberBuffer)
}

func (f *File) Provider() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.read().Provider, *defaultFileConfig.Provider)
}

func (f *File) AllowNonRootAccess() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.read().AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) SetCheckInterval(seconds int) error {
	if seconds < 1 {
		return pkgerrors.Errorf("check interval must be at least 1 second, got %d", seconds)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().CheckIntervalSeconds = &seconds
	return nil
}

func (f *File) SetLowBatteryThreshold(percentage int) error {
	if percentage < 0 || percentage > 100 {
		return pkgerrors.Errorf("low battery threshold must be between 0 and 100, got %d", percentage)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().LowBatteryThreshold = &percentage
	return nil
}

func (f *File) SetNotifyTransitions(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().NotifyTransitions = &b
}

func (f *File) SetAllowNonRootAccess(b bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read().AllowNonRootAccess = &b
}

func (f *File) isTOML() bool {
	return strings.EqualFold(filepath.Ext(f.filepath), ".toml")
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if f.isTOML() {
		err = toml.Unmarshal(b, &conf)
	} else {
		err = json.Unmarshal(b, &conf)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if err := conf.Validate(); err != nil {
		return pkgerrors.Wrapf(err, "invalid config in file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	var buf bytes.Buffer
	if f.isTOML() {
		if err := toml.NewEncoder(&buf).Encode(f.c); err != nil {
			return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
		}
	} else {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(f.c); err != nil {
			return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
		}
	}

	err := os.WriteFile(f.filepath, buf.Bytes(), 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to write file %s", f.filepath)
	}

	return nil
}

// Path returns the file backing f.
func (f *File) Path() string {
	return f.filepath
}

func (f *File) LogrusFields() logrus.Fields {
	h := f.Heuristic()
	return logrus.Fields{
		"checkInterval":          f.CheckInterval(),
		"detailedQueryTimeout":   f.DetailedQueryTimeout(),
		"calibrationCoefficient": f.CalibrationCoefficient(),
		"maxPlausibleWatts":      f.MaxPlausibleWatts(),
		"typicalCapacityMWh":     f.TypicalCapacityMWh(),
		"heuristicACBrackets":    h.ACBrackets,
		"heuristicBatteryWatts":  h.BatteryWatts,
		"lowBatteryThreshold":    f.LowBatteryThreshold(),
		"notifyTransitions":      f.NotifyTransitions(),
		"subscriberBuffer":       f.SubscriberBuffer(),
		"provider":               f.Provider(),
		"allowNonRootAccess":     f.AllowNonRootAccess(),
	}
}
