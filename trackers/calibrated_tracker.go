package trackers

import (
	"github.com/google/uuid"
)

// CalibratedTracker is a single tracker: it filters raw samples through a ReliabilityWatcher,
// keeps the last accepted pose and applies a rotation calibration offset.
type CalibratedTracker struct {
	id       uuid.UUID
	identity TrackerIdentity
	watcher  *ReliabilityWatcher
	// Last accepted pose. Never reset when tracking is lost
	pose Pose
	// Distance between the two last accepted positions
	positionJump float64
	hasPosition  bool
	connected    bool
	// Right-multiplicative rotation offset. Identity means "not calibrated"
	calibration        Quaternion
	calibrationPending bool
}

// NewCalibratedTrackerDefault creates a tracker with DefaultMaxImuOnlyDuration
func NewCalibratedTrackerDefault(identity TrackerIdentity) *CalibratedTracker {
	return NewCalibratedTracker(identity, DefaultMaxImuOnlyDuration)
}

// NewCalibratedTracker creates a tracker in the untracked state with a default pose and no calibration
func NewCalibratedTracker(identity TrackerIdentity, maxImuOnlyDuration float64) *CalibratedTracker {
	return &CalibratedTracker{
		id:          uuid.New(),
		identity:    identity,
		watcher:     NewReliabilityWatcher(maxImuOnlyDuration),
		pose:        DefaultPose(),
		calibration: IdentityQuaternion(),
	}
}

// GetID returns tracker's session identifier. It changes every time the tracker is recreated
func (tracker *CalibratedTracker) GetID() uuid.UUID {
	return tracker.id
}

// GetIdentity returns tracker's device identity
func (tracker *CalibratedTracker) GetIdentity() TrackerIdentity {
	return tracker.identity
}

// GetName returns tracker's display name
func (tracker *CalibratedTracker) GetName() string {
	return tracker.identity.Name
}

// GetPose returns the last accepted pose
func (tracker *CalibratedTracker) GetPose() Pose {
	return tracker.pose
}

// GetPositionJump returns the distance between the two last accepted positions.
// A large jump right after position became valid again usually means IMU drift was corrected.
func (tracker *CalibratedTracker) GetPositionJump() float64 {
	return tracker.positionJump
}

// GetWatcher returns the reliability watcher. Be careful: this is not a copy
func (tracker *CalibratedTracker) GetWatcher() *ReliabilityWatcher {
	return tracker.watcher
}

// IsConnected returns the connectivity of the last sample
func (tracker *CalibratedTracker) IsConnected() bool {
	return tracker.connected
}

// IsPositionValid returns whether the position is reliably tracked
func (tracker *CalibratedTracker) IsPositionValid() bool {
	return tracker.watcher.PositionReliable()
}

// IsRotationValid returns whether the rotation is reliably tracked
func (tracker *CalibratedTracker) IsRotationValid() bool {
	return tracker.watcher.RotationReliable()
}

// GetCalibration returns the rotation calibration offset
func (tracker *CalibratedTracker) GetCalibration() Quaternion {
	return tracker.calibration
}

// SetCalibration replaces the calibration offset (e.g. loaded from file). A pending capture stays pending
func (tracker *CalibratedTracker) SetCalibration(offset Quaternion) {
	if !offset.IsFinite() {
		return
	}
	tracker.calibration = offset.Normalized()
}

// IsCalibrated returns whether a non-identity calibration is applied
func (tracker *CalibratedTracker) IsCalibrated() bool {
	return !tracker.calibration.IsIdentity()
}

// RequestCalibration asks the tracker to capture its calibration on the next reliable rotation sample.
// Calling it several times before the capture has the same effect as calling it once
func (tracker *CalibratedTracker) RequestCalibration() {
	tracker.calibrationPending = true
}

// IsCalibrationPending returns whether a calibration request waits for a reliable rotation sample
func (tracker *CalibratedTracker) IsCalibrationPending() bool {
	return tracker.calibrationPending
}

// Update filters a raw sample and updates the accepted pose.
// It returns the transitions caused by this sample: Calibrated first, then connectivity, position and rotation validity changes.
func (tracker *CalibratedTracker) Update(sample RawSample) []Event {
	wasPositionValid := tracker.watcher.PositionReliable()
	wasRotationValid := tracker.watcher.RotationReliable()
	reliability := tracker.watcher.Evaluate(sample.Connected, sample.PoseValid, sample.OpticallyTracked, sample.Dt)

	var events []Event
	// Unreliable frames keep the previous pose: the device layer reports zeros while tracking is lost
	if reliability.Position && isFiniteVec3(sample.Position) {
		if tracker.hasPosition {
			tracker.positionJump = euclideanDistance(tracker.pose.Position, sample.Position)
		}
		tracker.pose.Position = sample.Position
		tracker.hasPosition = true
	}
	if reliability.Rotation && sample.Rotation.IsFinite() && sample.Rotation.Norm() > 0 {
		rotation := sample.Rotation.Normalized()
		if tracker.calibrationPending {
			tracker.calibration = rotation.Inverse()
			tracker.calibrationPending = false
			events = append(events, tracker.event(EventCalibrated, true))
		}
		tracker.pose.Rotation = rotation.Mul(tracker.calibration)
	}

	if tracker.connected != sample.Connected {
		tracker.connected = sample.Connected
		events = append(events, tracker.event(EventConnectedChanged, sample.Connected))
	}
	if wasPositionValid != reliability.Position {
		events = append(events, tracker.event(EventPositionValidChanged, reliability.Position))
	}
	if wasRotationValid != reliability.Rotation {
		events = append(events, tracker.event(EventRotationValidChanged, reliability.Rotation))
	}
	return events
}

func (tracker *CalibratedTracker) event(kind EventKind, value bool) Event {
	return Event{
		Kind:      kind,
		Tracker:   tracker.identity,
		SessionID: tracker.id,
		Value:     value,
	}
}

func isFiniteVec3(v Vec3) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}
