package trackers

import (
	"fmt"
	"math"
)

const (
	// MinImuOnlyDuration is the shortest accepted IMU-only grace window: two frames at 60Hz.
	MinImuOnlyDuration = 2.0 / 60.0
	// MaxImuOnlyDurationLimit is the longest accepted IMU-only grace window.
	MaxImuOnlyDurationLimit = 2.0
	// DefaultMaxImuOnlyDuration is the grace window used when none is configured.
	// Only the first second without optical correction proved reliable on real devices.
	DefaultMaxImuOnlyDuration = 1.0
	// DebounceDuration is how long an axis must stay tracked after (re)acquisition before it is trusted.
	DebounceDuration = MinImuOnlyDuration
)

// AxisState is the reliability state of a single axis (position or rotation)
type AxisState uint8

const (
	// AxisUntracked means the axis raw signal is not usable
	AxisUntracked AxisState = iota
	// AxisAcquiring means the raw signal is usable but has not been stable for DebounceDuration yet
	AxisAcquiring
	// AxisReliable means consumers may trust the axis
	AxisReliable
)

func (s AxisState) String() string {
	switch s {
	case AxisUntracked:
		return "untracked"
	case AxisAcquiring:
		return "acquiring"
	case AxisReliable:
		return "reliable"
	default:
		return fmt.Sprintf("AxisState(%d)", uint8(s))
	}
}

// axisFilter debounces one axis.
// elapsed is the time spent acquiring while in AxisAcquiring, and the time since the axis became reliable while in AxisReliable.
type axisFilter struct {
	state   AxisState
	elapsed float64
}

// step feeds the raw decision of the current frame and returns the debounced one.
// fresh must be true when the previous frame was not even partially tracked: the first frame of a fresh acquisition is never trusted, whatever dt is.
func (a *axisFilter) step(raw, fresh bool, dt float64) bool {
	if !raw {
		a.state = AxisUntracked
		a.elapsed = 0
		return false
	}
	switch a.state {
	case AxisReliable:
		a.elapsed += dt
		return true
	case AxisAcquiring:
		a.elapsed += dt
	default:
		a.state = AxisAcquiring
		a.elapsed = dt
		if fresh {
			return false
		}
	}
	if a.elapsed > DebounceDuration {
		a.state = AxisReliable
		a.elapsed = 0
		return true
	}
	return false
}

func (a *axisFilter) reliable() bool {
	return a.state == AxisReliable
}

// Reliability is the per-axis decision for one frame
type Reliability struct {
	Position bool
	Rotation bool
}

// ReliabilityWatcher turns raw validity flags of a tracker into debounced position and rotation reliability.
//
// Inertial (IMU) tracking alone computes position and orientation but drifts.
// Optical tracking corrects the drift but is lost whenever the tracker is occluded.
// Position is trusted while fully tracked and for a bounded grace window of IMU-only tracking after that.
// Rotation is trusted whenever the inertial pose is valid.
// Both axes reject the frames right after tracking is (re)acquired.
type ReliabilityWatcher struct {
	// How long position is trusted on IMU-only tracking. Default is 1s
	maxImuOnlyDuration float64
	// Time spent tracked since the last frame that was fully tracked
	timeSinceLastFullTrack float64
	// Previous frame was connected with a valid pose
	wasPartiallyTracked bool
	position            axisFilter
	rotation            axisFilter
}

// NewReliabilityWatcherDefault creates a watcher with DefaultMaxImuOnlyDuration
func NewReliabilityWatcherDefault() *ReliabilityWatcher {
	return NewReliabilityWatcher(DefaultMaxImuOnlyDuration)
}

// NewReliabilityWatcher creates a watcher.
// maxImuOnlyDuration is clamped to [MinImuOnlyDuration, MaxImuOnlyDurationLimit]; NaN falls back to the default.
func NewReliabilityWatcher(maxImuOnlyDuration float64) *ReliabilityWatcher {
	if math.IsNaN(maxImuOnlyDuration) {
		maxImuOnlyDuration = DefaultMaxImuOnlyDuration
	}
	return &ReliabilityWatcher{
		maxImuOnlyDuration: clampFloat64(maxImuOnlyDuration, MinImuOnlyDuration, MaxImuOnlyDurationLimit),
	}
}

// Evaluate consumes the validity flags of one frame and returns whether position and rotation are reliably tracked.
// Inconsistent flags (e.g. optically tracked without a valid pose) simply yield "not reliable".
func (w *ReliabilityWatcher) Evaluate(connected, poseValid, opticallyTracked bool, dt float64) Reliability {
	dt = sanitizeDelta(dt)

	partiallyTracked := connected && poseValid           // IMU only
	fullyTracked := partiallyTracked && opticallyTracked // IMU + optical
	fresh := !w.wasPartiallyTracked

	rawPosition := false
	if fullyTracked {
		w.timeSinceLastFullTrack = 0
		rawPosition = true
	} else if partiallyTracked && w.position.reliable() {
		// Optical correction lost: position drifts, trust it for the grace window only
		w.timeSinceLastFullTrack += dt
		rawPosition = w.timeSinceLastFullTrack <= w.maxImuOnlyDuration
	}

	result := Reliability{
		Position: w.position.step(rawPosition, fresh, dt),
		Rotation: w.rotation.step(partiallyTracked, fresh, dt),
	}
	w.wasPartiallyTracked = partiallyTracked
	return result
}

// Reset returns the watcher to its initial untracked state, keeping its configuration
func (w *ReliabilityWatcher) Reset() {
	w.timeSinceLastFullTrack = 0
	w.wasPartiallyTracked = false
	w.position = axisFilter{}
	w.rotation = axisFilter{}
}

// MaxImuOnlyDuration returns the configured grace window
func (w *ReliabilityWatcher) MaxImuOnlyDuration() float64 {
	return w.maxImuOnlyDuration
}

// PositionReliable returns the last position decision
func (w *ReliabilityWatcher) PositionReliable() bool {
	return w.position.reliable()
}

// RotationReliable returns the last rotation decision
func (w *ReliabilityWatcher) RotationReliable() bool {
	return w.rotation.reliable()
}

// PositionState returns the position axis state
func (w *ReliabilityWatcher) PositionState() AxisState {
	return w.position.state
}

// RotationState returns the rotation axis state
func (w *ReliabilityWatcher) RotationState() AxisState {
	return w.rotation.state
}

// TimeSinceLastFullTrack returns the time accumulated on IMU-only tracking since optical correction was last present
func (w *ReliabilityWatcher) TimeSinceLastFullTrack() float64 {
	return w.timeSinceLastFullTrack
}

// TimeSincePositionReliable returns how long position has been reliable (0 when it is not)
func (w *ReliabilityWatcher) TimeSincePositionReliable() float64 {
	if !w.position.reliable() {
		return 0
	}
	return w.position.elapsed
}

// TimeSinceRotationReliable returns how long rotation has been reliable (0 when it is not)
func (w *ReliabilityWatcher) TimeSinceRotationReliable() float64 {
	if !w.rotation.reliable() {
		return 0
	}
	return w.rotation.elapsed
}
