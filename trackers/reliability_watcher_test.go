package trackers

import (
	"math"
	"testing"
)

type validityFrame struct {
	connected        bool
	poseValid        bool
	opticallyTracked bool
}

var (
	fullyTrackedFrame     = validityFrame{connected: true, poseValid: true, opticallyTracked: true}
	partiallyTrackedFrame = validityFrame{connected: true, poseValid: true, opticallyTracked: false}
	lostFrame             = validityFrame{connected: true, poseValid: false, opticallyTracked: false}
	disconnectedFrame     = validityFrame{}
)

func evaluateN(watcher *ReliabilityWatcher, frame validityFrame, n int, dt float64) []Reliability {
	results := make([]Reliability, n)
	for i := 0; i < n; i++ {
		results[i] = watcher.Evaluate(frame.connected, frame.poseValid, frame.opticallyTracked, dt)
	}
	return results
}

func TestNewReliabilityWatcher(t *testing.T) {
	watcher := NewReliabilityWatcher(0.5)
	if watcher.MaxImuOnlyDuration() != 0.5 {
		t.Errorf("Expected maxImuOnlyDuration 0.5, got %f", watcher.MaxImuOnlyDuration())
	}
	if watcher.PositionState() != AxisUntracked || watcher.RotationState() != AxisUntracked {
		t.Errorf("Expected new watcher to be untracked, got %s / %s", watcher.PositionState(), watcher.RotationState())
	}

	defaultWatcher := NewReliabilityWatcherDefault()
	if defaultWatcher.MaxImuOnlyDuration() != DefaultMaxImuOnlyDuration {
		t.Errorf("Expected default maxImuOnlyDuration %f, got %f", DefaultMaxImuOnlyDuration, defaultWatcher.MaxImuOnlyDuration())
	}
}

func TestReliabilityWatcherClampsGraceWindow(t *testing.T) {
	if got := NewReliabilityWatcher(10).MaxImuOnlyDuration(); got != MaxImuOnlyDurationLimit {
		t.Errorf("Expected grace window clamped to %f, got %f", MaxImuOnlyDurationLimit, got)
	}
	if got := NewReliabilityWatcher(0).MaxImuOnlyDuration(); got != MinImuOnlyDuration {
		t.Errorf("Expected grace window clamped to %f, got %f", MinImuOnlyDuration, got)
	}
	if got := NewReliabilityWatcher(math.NaN()).MaxImuOnlyDuration(); got != DefaultMaxImuOnlyDuration {
		t.Errorf("Expected NaN grace window to fall back to %f, got %f", DefaultMaxImuOnlyDuration, got)
	}
}

func TestReliabilityWatcherColdStartDebounce(t *testing.T) {
	watcher := NewReliabilityWatcherDefault()
	dt := 1.0 / 60.0
	results := evaluateN(watcher, fullyTrackedFrame, 5, dt)
	// Acquiring: first frame rejected -> 2/60 (not above 2 frames @60Hz) -> 3/60 reliable
	expected := []bool{false, false, true, true, true}
	for i, result := range results {
		if result.Position != expected[i] {
			t.Errorf("Frame %d: expected position reliable %t, got %t", i+1, expected[i], result.Position)
		}
		if result.Rotation != expected[i] {
			t.Errorf("Frame %d: expected rotation reliable %t, got %t", i+1, expected[i], result.Rotation)
		}
	}
	if watcher.PositionState() != AxisReliable {
		t.Errorf("Expected position state reliable, got %s", watcher.PositionState())
	}
	if math.Abs(watcher.TimeSincePositionReliable()-2*dt) > eps {
		t.Errorf("Expected position reliable for %f, got %f", 2*dt, watcher.TimeSincePositionReliable())
	}
	if math.Abs(watcher.TimeSinceRotationReliable()-2*dt) > eps {
		t.Errorf("Expected rotation reliable for %f, got %f", 2*dt, watcher.TimeSinceRotationReliable())
	}

	evaluateN(watcher, partiallyTrackedFrame, 1, dt)
	if math.Abs(watcher.TimeSinceRotationReliable()-3*dt) > eps {
		t.Errorf("Expected rotation reliable for %f on IMU-only tracking, got %f", 3*dt, watcher.TimeSinceRotationReliable())
	}
	evaluateN(watcher, lostFrame, 1, dt)
	if watcher.TimeSinceRotationReliable() != 0 || watcher.TimeSincePositionReliable() != 0 {
		t.Errorf("Expected no reliable time once tracking is lost")
	}
}

func TestReliabilityWatcherColdStartCoarseDelta(t *testing.T) {
	watcher := NewReliabilityWatcherDefault()
	results := evaluateN(watcher, fullyTrackedFrame, 3, 0.016)
	// First frame rejected, 0.032 is still below 2/60, 0.048 is reliable
	expected := []bool{false, false, true}
	for i, result := range results {
		if result.Position != expected[i] || result.Rotation != expected[i] {
			t.Errorf("Frame %d: expected reliable %t, got %+v", i+1, expected[i], result)
		}
	}
}

func TestReliabilityWatcherIsolatedFrameNeverReliable(t *testing.T) {
	for _, dt := range []float64{0.001, 0.016, 0.1, 0.5, 10, math.Inf(1)} {
		watcher := NewReliabilityWatcherDefault()
		evaluateN(watcher, lostFrame, 3, dt)
		result := evaluateN(watcher, fullyTrackedFrame, 1, dt)[0]
		if result.Position || result.Rotation {
			t.Errorf("dt=%f: isolated tracked frame must not be reliable, got %+v", dt, result)
		}
		result = evaluateN(watcher, lostFrame, 1, dt)[0]
		if result.Position || result.Rotation {
			t.Errorf("dt=%f: expected unreliable after the flicker, got %+v", dt, result)
		}
	}
}

func TestReliabilityWatcherFlickerAfterFullLoss(t *testing.T) {
	watcher := NewReliabilityWatcherDefault()
	dt := 0.016
	evaluateN(watcher, fullyTrackedFrame, 10, dt)
	if !watcher.PositionReliable() {
		t.Fatalf("Expected position reliable after 10 fully tracked frames")
	}
	evaluateN(watcher, disconnectedFrame, 2, dt)
	if watcher.PositionReliable() || watcher.RotationReliable() {
		t.Errorf("Expected unreliable right after disconnection")
	}
	result := evaluateN(watcher, fullyTrackedFrame, 1, 1.0)[0]
	if result.Position || result.Rotation {
		t.Errorf("Expected the first frame after a full loss to be rejected, got %+v", result)
	}
	result = evaluateN(watcher, fullyTrackedFrame, 1, 1.0)[0]
	if !result.Position || !result.Rotation {
		t.Errorf("Expected the second frame after a full loss with a long dt to be reliable, got %+v", result)
	}
}

func TestReliabilityWatcherGraceWindowBoundary(t *testing.T) {
	// Binary-exact durations so the boundary is hit exactly
	maxImuOnly := 0.25
	dt := 0.0625
	watcher := NewReliabilityWatcher(maxImuOnly)
	results := evaluateN(watcher, fullyTrackedFrame, 2, dt)
	if results[0].Position || !results[1].Position {
		t.Fatalf("Expected position reliable from the second frame, got %+v", results)
	}
	// IMU only: 0.0625, 0.125, 0.1875, 0.25 are within the window, 0.3125 is not
	results = evaluateN(watcher, partiallyTrackedFrame, 5, dt)
	expected := []bool{true, true, true, true, false}
	for i, result := range results {
		if result.Position != expected[i] {
			t.Errorf("IMU-only frame %d: expected position reliable %t, got %t (elapsed %f)", i+1, expected[i], result.Position, float64(i+1)*dt)
		}
		if !result.Rotation {
			t.Errorf("IMU-only frame %d: expected rotation to stay reliable", i+1)
		}
	}
	// Once the window lapsed, IMU-only tracking never brings position back
	results = evaluateN(watcher, partiallyTrackedFrame, 3, dt)
	for i, result := range results {
		if result.Position {
			t.Errorf("Frame %d after lapse: expected position unreliable", i+1)
		}
	}
}

func TestReliabilityWatcherScenario(t *testing.T) {
	watcher := NewReliabilityWatcher(0.1)
	dt := 0.016
	evaluateN(watcher, fullyTrackedFrame, 5, dt)
	if !watcher.PositionReliable() {
		t.Fatalf("Expected position reliable after 5 fully tracked frames")
	}
	// Optical lost: 0.016 ... 0.096 stay within 0.1
	results := evaluateN(watcher, partiallyTrackedFrame, 6, dt)
	for i, result := range results {
		if !result.Position {
			t.Errorf("Frame %d: expected position reliable (elapsed %f)", i+6, float64(i+1)*dt)
		}
	}
	// 0.112 > 0.1
	result := evaluateN(watcher, partiallyTrackedFrame, 1, dt)[0]
	if result.Position {
		t.Errorf("Expected position unreliable once the grace window lapsed")
	}
	if !result.Rotation {
		t.Errorf("Expected rotation reliable on IMU-only tracking")
	}
	if math.Abs(watcher.TimeSinceLastFullTrack()-0.112) > eps {
		t.Errorf("Expected 0.112s since last full track, got %f", watcher.TimeSinceLastFullTrack())
	}
}

func TestReliabilityWatcherOpticalRegainAfterLapse(t *testing.T) {
	watcher := NewReliabilityWatcher(MinImuOnlyDuration)
	dt := 0.016
	evaluateN(watcher, fullyTrackedFrame, 5, dt)
	evaluateN(watcher, partiallyTrackedFrame, 5, dt)
	if watcher.PositionReliable() {
		t.Fatalf("Expected position unreliable after the grace window lapsed")
	}
	// Still partially tracked, so this is not a fresh acquisition: 0.016, 0.032, 0.048
	results := evaluateN(watcher, fullyTrackedFrame, 3, dt)
	expected := []bool{false, false, true}
	for i, result := range results {
		if result.Position != expected[i] {
			t.Errorf("Frame %d after optical regain: expected position reliable %t, got %t", i+1, expected[i], result.Position)
		}
		if !result.Rotation {
			t.Errorf("Frame %d after optical regain: expected rotation reliable", i+1)
		}
	}
	if watcher.TimeSinceLastFullTrack() != 0 {
		t.Errorf("Expected time since last full track reset, got %f", watcher.TimeSinceLastFullTrack())
	}
}

func TestReliabilityWatcherPartialOnlyNeverGivesPosition(t *testing.T) {
	watcher := NewReliabilityWatcherDefault()
	results := evaluateN(watcher, partiallyTrackedFrame, 20, 0.016)
	for i, result := range results {
		if result.Position {
			t.Errorf("Frame %d: position must not be reliable without optical tracking first", i+1)
		}
	}
	if !results[len(results)-1].Rotation {
		t.Errorf("Expected rotation reliable on IMU-only tracking")
	}
}

func TestReliabilityWatcherInconsistentFlags(t *testing.T) {
	watcher := NewReliabilityWatcherDefault()
	// Optically tracked without a valid pose
	results := evaluateN(watcher, validityFrame{connected: true, poseValid: false, opticallyTracked: true}, 10, 0.016)
	// Valid pose reported by a disconnected device
	results = append(results, evaluateN(watcher, validityFrame{connected: false, poseValid: true, opticallyTracked: true}, 10, 0.016)...)
	for i, result := range results {
		if result.Position || result.Rotation {
			t.Errorf("Frame %d: inconsistent flags must not be reliable, got %+v", i+1, result)
		}
	}
}

func TestReliabilityWatcherNegativeDelta(t *testing.T) {
	watcher := NewReliabilityWatcherDefault()
	results := evaluateN(watcher, fullyTrackedFrame, 10, -1)
	for i, result := range results {
		if result.Position {
			t.Errorf("Frame %d: negative deltas must not accumulate reliable time", i+1)
		}
	}
	results = evaluateN(watcher, fullyTrackedFrame, 3, math.NaN())
	if results[2].Position {
		t.Errorf("NaN deltas must not accumulate reliable time")
	}
}

func TestReliabilityWatcherReset(t *testing.T) {
	watcher := NewReliabilityWatcher(0.5)
	evaluateN(watcher, fullyTrackedFrame, 10, 0.016)
	watcher.Reset()
	if watcher.PositionReliable() || watcher.RotationReliable() {
		t.Errorf("Expected reset watcher to be unreliable")
	}
	if watcher.MaxImuOnlyDuration() != 0.5 {
		t.Errorf("Expected reset to keep configuration, got %f", watcher.MaxImuOnlyDuration())
	}
	result := evaluateN(watcher, fullyTrackedFrame, 1, 1)[0]
	if result.Position {
		t.Errorf("Expected the first frame after reset to be rejected")
	}
}

func TestAxisStateString(t *testing.T) {
	if AxisAcquiring.String() != "acquiring" {
		t.Errorf("Expected 'acquiring', got '%s'", AxisAcquiring.String())
	}
	if AxisState(42).String() != "AxisState(42)" {
		t.Errorf("Expected 'AxisState(42)', got '%s'", AxisState(42).String())
	}
}
