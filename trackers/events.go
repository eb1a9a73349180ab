package trackers

import (
	"fmt"

	"github.com/google/uuid"
)

// EventKind identifies which tracker flag changed
type EventKind uint8

const (
	// EventConnectedChanged fires when the device connectivity flips
	EventConnectedChanged EventKind = iota
	// EventPositionValidChanged fires when the position reliability flips
	EventPositionValidChanged
	// EventRotationValidChanged fires when the rotation reliability flips
	EventRotationValidChanged
	// EventCalibrated fires when a pending calibration has been captured
	EventCalibrated
)

func (k EventKind) String() string {
	switch k {
	case EventConnectedChanged:
		return "connected_changed"
	case EventPositionValidChanged:
		return "position_valid_changed"
	case EventRotationValidChanged:
		return "rotation_valid_changed"
	case EventCalibrated:
		return "calibrated"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is an edge-triggered notification produced by CalibratedTracker.Update.
// Value holds the new flag value; it is always true for EventCalibrated.
type Event struct {
	Kind      EventKind
	Tracker   TrackerIdentity
	SessionID uuid.UUID
	Value     bool
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s=%t", e.Tracker.Name, e.Kind, e.Value)
}
