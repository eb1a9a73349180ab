// Command trackers-replay runs recorded tracker samples through the reliability filter and calibration.
//
// Usage:
//
//	trackers-replay -config config.yaml [-calibrate-at 120] [-calibrate A,B]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/LdDl/vive-trackers-go/internal/config"
	"github.com/LdDl/vive-trackers-go/internal/recorder"
	"github.com/LdDl/vive-trackers-go/internal/replay"
	"github.com/LdDl/vive-trackers-go/trackers"
)

var (
	configPath  = flag.String("config", "", "Path to the YAML configuration file")
	calibrateAt = flag.Int("calibrate-at", -1, "Replay tick at which calibration is requested. Negative disables calibration")
	calibrate   = flag.String("calibrate", "", "Comma separated tracker names to calibrate. All trackers when empty")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, flush, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't build logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger, calibrationRequest{
		tick:  *calibrateAt,
		names: splitNames(*calibrate),
	})
	stop()
	if err != nil {
		logger.Error(err, "Replay failed")
		flush()
		os.Exit(1)
	}
	flush()
}

// calibrationRequest asks the named trackers (all when empty) to calibrate at a replay tick
type calibrationRequest struct {
	tick  int
	names []string
}

func (request calibrationRequest) enabled() bool {
	return request.tick >= 0
}

func run(ctx context.Context, cfg *config.Config, logger logr.Logger, request calibrationRequest) error {
	if cfg.ReplayFile == "" {
		return errors.New("replayFile is not configured")
	}
	source, err := replay.Open(cfg.ReplayFile)
	if err != nil {
		return err
	}
	logger.Info("Replay loaded", "file", cfg.ReplayFile, "ticks", source.Len(), "tickRate", cfg.TickRate)

	declared, malformed, err := trackers.LoadDeclaredTrackers(cfg.DeclaredTrackersFile)
	switch {
	case errors.Is(err, trackers.ErrDeclaredTrackersFileNotFound):
		logger.Info("Declared trackers file not found, trackers are named after their serial", "file", cfg.DeclaredTrackersFile)
	case err != nil:
		return err
	default:
		logger.Info("Declared trackers loaded", "count", len(declared), "malformed", malformed)
	}

	registry := trackers.NewRegistry(source, cfg.TrackersConfig(declared), logger.WithName("trackers"))
	if _, err = registry.Rescan(); err != nil {
		if errors.Is(err, trackers.ErrNoDevices) {
			logger.Info("Nothing to replay")
			return nil
		}
		return err
	}

	store := trackers.NewCalibrationFile(cfg.CalibrationFile)
	if _, err = registry.LoadCalibrations(store); err != nil {
		return err
	}

	var rec *recorder.Recorder
	if cfg.RecordDatabase != "" {
		if rec, err = recorder.Open(cfg.RecordDatabase); err != nil {
			return err
		}
		defer rec.Close()
		logger.Info("Recording poses", "database", cfg.RecordDatabase)
	}

	dt := cfg.TickDuration()
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("Replay interrupted", "ticks", ticks)
			return nil
		default:
		}
		tick := source.Tick()
		if request.enabled() && tick == request.tick {
			logger.Info("Calibration requested", "tick", tick, "trackers", request.names)
			registry.RequestCalibration(request.names...)
		}
		events, err := registry.Update(dt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		ticks++
		for _, event := range events {
			logger.Info("Tracker state changed", "tick", tick, "tracker", event.Tracker.Name, "event", event.Kind.String(), "value", event.Value)
			if event.Kind == trackers.EventPositionValidChanged && event.Value {
				// The first accepted position after a lapse shows how far IMU drift was corrected
				if tracker, ok := registry.Tracker(event.Tracker.Name); ok {
					logger.V(1).Info("Position regained", "tick", tick, "tracker", event.Tracker.Name, "jump", tracker.GetPositionJump())
				}
			}
		}
		if rec != nil {
			if err = rec.RecordEvents(tick, events); err != nil {
				return err
			}
			if err = rec.RecordPose(tick, registry.Trackers()...); err != nil {
				return err
			}
		}
	}

	for _, tracker := range registry.Trackers() {
		pose := tracker.GetPose()
		forward := pose.Forward()
		logger.V(1).Info("Final pose",
			"tracker", tracker.GetName(),
			"position", []float64{pose.Position.X, pose.Position.Y, pose.Position.Z},
			"rotation", []float64{pose.Rotation.X, pose.Rotation.Y, pose.Rotation.Z, pose.Rotation.W},
			"forward", []float64{forward.X, forward.Y, forward.Z},
			"positionValid", tracker.IsPositionValid(),
			"rotationValid", tracker.IsRotationValid(),
			"calibrated", tracker.IsCalibrated(),
		)
	}
	logger.Info("Replay done", "ticks", ticks, "trackers", registry.Len())

	if request.enabled() {
		if _, err = registry.SaveCalibrations(store); err != nil {
			return err
		}
	}
	return nil
}

func splitNames(list string) []string {
	names := make([]string, 0)
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
