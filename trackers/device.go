package trackers

// TrackerIdentity identifies a tracker.
// Index is assigned by the device layer and may change across scans.
// Serial is stable across sessions. Name is unique within a registry and is the calibration table key.
type TrackerIdentity struct {
	Index  uint32
	Serial string
	Name   string
}

// DeviceInfo is a tracker found by a device scan
type DeviceInfo struct {
	Index  uint32
	Serial string
}

// RawSample is one unfiltered reading of a tracker
type RawSample struct {
	Connected        bool
	PoseValid        bool
	OpticallyTracked bool
	Position         Vec3
	Rotation         Quaternion
	// Seconds elapsed since the previous sample. Set by the registry when it polls a DeviceSource.
	Dt float64
}

// DeviceSource is the device layer feeding the registry.
type DeviceSource interface {
	// Scan enumerates the trackers currently available.
	Scan() ([]DeviceInfo, error)
	// Poll returns the latest sample of every tracker keyed by device index.
	// Trackers missing from the result are treated as disconnected for this tick.
	Poll() (map[uint32]RawSample, error)
}
