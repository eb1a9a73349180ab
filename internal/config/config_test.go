package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/vive-trackers-go/trackers"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, trackers.DefaultMaxImuOnlyDuration, cfg.MaxImuOnlyDuration)
	assert.Equal(t, trackers.DefaultCalibrationFile, cfg.CalibrationFile)
	assert.InDelta(t, 1.0/60.0, cfg.TickDuration(), 1e-12)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
maxImuOnlyDuration: 0.5
calibrationFile: /tmp/calibrations.csv
declaredOnly: true
replayFile: session.csv
tickRate: 90
log:
  level: debug
  development: true
`)
	t.Setenv("VIVE_TRACKERS_TICK_RATE", "120")
	t.Setenv("VIVE_TRACKERS_LOG_MAX_BACKUPS", "7")
	t.Setenv("VIVE_TRACKERS_KEEP_CALIBRATION_ON_RESCAN", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.MaxImuOnlyDuration)
	assert.Equal(t, "/tmp/calibrations.csv", cfg.CalibrationFile)
	assert.Equal(t, trackers.DefaultDeclaredTrackersFile, cfg.DeclaredTrackersFile)
	assert.True(t, cfg.DeclaredOnly)
	assert.True(t, cfg.KeepCalibrationOnRescan)
	assert.Equal(t, "session.csv", cfg.ReplayFile)
	assert.Equal(t, 120.0, cfg.TickRate, "environment must override the file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, 7, cfg.Log.MaxBackups)
	assert.Equal(t, 100, cfg.Log.MaxSizeMB)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "unknownField: 1\n"))
	assert.Error(t, err, "unknown fields must be rejected")

	_, err = Load(writeConfig(t, "maxImuOnlyDuration: 5\n"))
	assert.ErrorContains(t, err, "maxImuOnlyDuration")

	t.Setenv("VIVE_TRACKERS_TICK_RATE", "fast")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *Config)
		valid  bool
	}{
		{"defaults", func(cfg *Config) {}, true},
		{"lowest grace window", func(cfg *Config) { cfg.MaxImuOnlyDuration = trackers.MinImuOnlyDuration }, true},
		{"highest grace window", func(cfg *Config) { cfg.MaxImuOnlyDuration = trackers.MaxImuOnlyDurationLimit }, true},
		{"grace window too short", func(cfg *Config) { cfg.MaxImuOnlyDuration = 0.01 }, false},
		{"zero tick rate", func(cfg *Config) { cfg.TickRate = 0 }, false},
		{"empty calibration file", func(cfg *Config) { cfg.CalibrationFile = " " }, false},
		{"unknown log level", func(cfg *Config) { cfg.Log.Level = "verbose" }, false},
		{"negative backups", func(cfg *Config) { cfg.Log.MaxBackups = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTrackersConfig(t *testing.T) {
	cfg := Default()
	cfg.MaxImuOnlyDuration = 0.25
	cfg.DeclaredOnly = true
	declared := map[string]string{"LHR-1": "A"}

	trackersConfig := cfg.TrackersConfig(declared)
	assert.Equal(t, 0.25, trackersConfig.MaxImuOnlyDuration)
	assert.True(t, trackersConfig.DeclaredOnly)
	assert.False(t, trackersConfig.KeepCalibrationOnRescan)
	assert.Equal(t, declared, trackersConfig.DeclaredTrackers)

	declared["LHR-2"] = "B"
	assert.Len(t, trackersConfig.DeclaredTrackers, 1, "declared table must be copied")
}
