package trackers

import (
	"sort"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

// ErrNoDevices is returned by Rescan when no tracker could be registered
var ErrNoDevices = errors.New("no trackers available")

// Config holds registry parameters
type Config struct {
	// Grace window for IMU-only position tracking (seconds). Default 1.0
	MaxImuOnlyDuration float64
	// Display names by device serial. Undeclared devices are named after their serial
	DeclaredTrackers map[string]string
	// Register declared devices only
	DeclaredOnly bool
	// Carry captured calibrations over a rescan to the tracker with the same serial
	KeepCalibrationOnRescan bool
}

// DefaultConfig returns the default registry parameters
func DefaultConfig() Config {
	return Config{
		MaxImuOnlyDuration:      DefaultMaxImuOnlyDuration,
		DeclaredTrackers:        map[string]string{},
		DeclaredOnly:            false,
		KeepCalibrationOnRescan: false,
	}
}

// Registry owns the trackers found by the last scan of a DeviceSource and routes per-tick updates and calibration requests to them.
type Registry struct {
	source DeviceSource
	config Config
	logger logr.Logger
	// Trackers sorted by display name
	trackers []*CalibratedTracker
	byName   map[string]*CalibratedTracker
}

// NewRegistryDefault creates an empty registry with default parameters and no logging
func NewRegistryDefault(source DeviceSource) *Registry {
	return NewRegistry(source, DefaultConfig(), logr.Discard())
}

// NewRegistry creates an empty registry. Call Rescan to populate it
func NewRegistry(source DeviceSource, config Config, logger logr.Logger) *Registry {
	if config.DeclaredTrackers == nil {
		config.DeclaredTrackers = map[string]string{}
	}
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &Registry{
		source:   source,
		config:   config,
		logger:   logger,
		trackers: make([]*CalibratedTracker, 0),
		byName:   make(map[string]*CalibratedTracker),
	}
}

// GetConfig returns registry parameters
func (registry *Registry) GetConfig() Config {
	return registry.config
}

// SetDeclaredTrackers replaces the serial -> display name table used by the next Rescan
func (registry *Registry) SetDeclaredTrackers(declared map[string]string) {
	registry.config.DeclaredTrackers = make(map[string]string, len(declared))
	for serial, name := range declared {
		registry.config.DeclaredTrackers[serial] = name
	}
}

// Rescan drops every tracker and creates new ones from a fresh device scan.
// Trackers are sorted by display name. Calibrations are lost unless KeepCalibrationOnRescan is set.
// ErrNoDevices is returned when the scan succeeded but no tracker could be registered.
func (registry *Registry) Rescan() ([]*CalibratedTracker, error) {
	carried := make(map[string]Quaternion)
	if registry.config.KeepCalibrationOnRescan {
		for _, tracker := range registry.trackers {
			if tracker.IsCalibrated() {
				carried[tracker.identity.Serial] = tracker.GetCalibration()
			}
		}
	}
	registry.Clear()

	devices, err := registry.source.Scan()
	if err != nil {
		return nil, errors.Wrap(err, "Can't scan for tracker devices")
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Index < devices[j].Index
	})

	for _, device := range devices {
		registry.logger.V(1).Info("Tracker detected", "serial", device.Serial, "index", device.Index)
		if device.Serial == "" {
			continue
		}
		name, declared := registry.config.DeclaredTrackers[device.Serial]
		if !declared {
			if registry.config.DeclaredOnly {
				continue
			}
			name = device.Serial
		}
		if _, ok := registry.byName[name]; ok {
			registry.logger.Info("Duplicate tracker name, device skipped", "name", name, "serial", device.Serial, "index", device.Index)
			continue
		}
		tracker := NewCalibratedTracker(TrackerIdentity{
			Index:  device.Index,
			Serial: device.Serial,
			Name:   name,
		}, registry.config.MaxImuOnlyDuration)
		if offset, ok := carried[device.Serial]; ok {
			tracker.SetCalibration(offset)
		}
		registry.trackers = append(registry.trackers, tracker)
		registry.byName[name] = tracker
	}

	if len(registry.trackers) == 0 {
		registry.logger.Info("No trackers available", "detected", len(devices))
		return nil, ErrNoDevices
	}

	sort.SliceStable(registry.trackers, func(i, j int) bool {
		return registry.trackers[i].identity.Name < registry.trackers[j].identity.Name
	})

	registry.logger.Info("Trackers scanned", "declared", len(registry.config.DeclaredTrackers), "available", len(registry.trackers))
	for _, tracker := range registry.trackers {
		registry.logger.V(1).Info("Tracker registered",
			"name", tracker.identity.Name,
			"serial", tracker.identity.Serial,
			"index", tracker.identity.Index,
			"session", tracker.id.String(),
			"calibrated", tracker.IsCalibrated(),
		)
	}
	return registry.Trackers(), nil
}

// Clear drops every tracker
func (registry *Registry) Clear() {
	registry.trackers = make([]*CalibratedTracker, 0)
	registry.byName = make(map[string]*CalibratedTracker)
}

// Update polls the device source and feeds every tracker with its sample.
// It returns the transitions of all trackers in name order
func (registry *Registry) Update(dt float64) ([]Event, error) {
	if len(registry.trackers) == 0 {
		return nil, nil
	}
	samples, err := registry.source.Poll()
	if err != nil {
		return nil, errors.Wrap(err, "Can't poll tracker devices")
	}
	return registry.Apply(samples, dt), nil
}

// Apply feeds every tracker with its sample (keyed by device index) stamped with dt.
// A tracker without a sample is updated as disconnected.
func (registry *Registry) Apply(samples map[uint32]RawSample, dt float64) []Event {
	events := make([]Event, 0)
	for _, tracker := range registry.trackers {
		sample, ok := samples[tracker.identity.Index]
		if !ok {
			sample = RawSample{}
		}
		sample.Dt = dt
		events = append(events, tracker.Update(sample)...)
	}
	return events
}

// RequestCalibration asks the named trackers (all trackers when no name is given) to capture
// their calibration on their next reliable rotation sample
func (registry *Registry) RequestCalibration(names ...string) {
	if len(names) == 0 {
		for _, tracker := range registry.trackers {
			tracker.RequestCalibration()
		}
		return
	}
	for _, name := range names {
		tracker, ok := registry.byName[name]
		if !ok {
			registry.logger.V(1).Info("Calibration requested for unknown tracker", "name", name)
			continue
		}
		tracker.RequestCalibration()
	}
}

// Trackers returns the trackers sorted by display name
func (registry *Registry) Trackers() []*CalibratedTracker {
	trackers := make([]*CalibratedTracker, len(registry.trackers))
	copy(trackers, registry.trackers)
	return trackers
}

// Tracker returns the tracker with the given display name
func (registry *Registry) Tracker(name string) (*CalibratedTracker, bool) {
	tracker, ok := registry.byName[name]
	return tracker, ok
}

// Len returns the number of trackers
func (registry *Registry) Len() int {
	return len(registry.trackers)
}

// IsEmpty returns whether the registry holds no tracker
func (registry *Registry) IsEmpty() bool {
	return len(registry.trackers) == 0
}

// Calibrations returns the captured (non-identity) calibrations in name order
func (registry *Registry) Calibrations() []CalibrationRecord {
	records := make([]CalibrationRecord, 0, len(registry.trackers))
	for _, tracker := range registry.trackers {
		if !tracker.IsCalibrated() {
			continue
		}
		records = append(records, CalibrationRecord{
			Name:   tracker.identity.Name,
			Offset: tracker.GetCalibration(),
		})
	}
	return records
}

// ApplyCalibrations sets the calibration of every tracker whose display name matches a record.
// It returns the number of applied and unmatched records
func (registry *Registry) ApplyCalibrations(records []CalibrationRecord) (int, int) {
	applied, unmatched := 0, 0
	for _, record := range records {
		tracker, ok := registry.byName[record.Name]
		if !ok || !record.Offset.IsFinite() {
			registry.logger.V(1).Info("Calibration skipped", "name", record.Name)
			unmatched++
			continue
		}
		tracker.SetCalibration(record.Offset)
		applied++
	}
	return applied, unmatched
}

// SaveCalibrations writes the captured calibrations to store and returns how many were actually saved
func (registry *Registry) SaveCalibrations(store CalibrationStore) (int, error) {
	records := registry.Calibrations()
	for _, record := range records {
		if !isStorableName(record.Name) {
			registry.logger.Info("Calibration can't be stored under this tracker name", "name", record.Name)
		}
	}
	saved, err := store.SaveCalibrations(records)
	if err != nil {
		return 0, errors.Wrap(err, "Can't save trackers calibrations")
	}
	registry.logger.Info("Trackers calibrations saved", "count", saved, "skipped", len(records)-saved)
	return saved, nil
}

// LoadCalibrations applies the calibrations found in store and returns how many were applied.
// A missing calibration file is only logged: the registry is left unchanged and no error is returned.
func (registry *Registry) LoadCalibrations(store CalibrationStore) (int, error) {
	records, malformed, err := store.LoadCalibrations()
	if err != nil {
		if errors.Is(err, ErrCalibrationFileNotFound) {
			registry.logger.Info("Calibration file not found, no calibration loaded", "reason", err.Error())
			return 0, nil
		}
		return 0, errors.Wrap(err, "Can't load trackers calibrations")
	}
	applied, unmatched := registry.ApplyCalibrations(records)
	registry.logger.Info("Trackers calibrations loaded", "count", applied, "unmatched", unmatched, "malformed", malformed)
	return applied, nil
}
