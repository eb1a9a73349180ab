package config

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/LdDl/vive-trackers-go/trackers"
)

// EnvPrefix prefixes every environment override, e.g. VIVE_TRACKERS_TICK_RATE
const EnvPrefix = "VIVE_TRACKERS_"

// Config is the configuration of the replay tool
type Config struct {
	// Grace window for IMU-only position tracking (seconds)
	MaxImuOnlyDuration      float64 `yaml:"maxImuOnlyDuration" env:"MAX_IMU_ONLY_DURATION"`
	CalibrationFile         string  `yaml:"calibrationFile" env:"CALIBRATION_FILE"`
	DeclaredTrackersFile    string  `yaml:"declaredTrackersFile" env:"DECLARED_TRACKERS_FILE"`
	DeclaredOnly            bool    `yaml:"declaredOnly" env:"DECLARED_ONLY"`
	KeepCalibrationOnRescan bool    `yaml:"keepCalibrationOnRescan" env:"KEEP_CALIBRATION_ON_RESCAN"`
	ReplayFile              string  `yaml:"replayFile" env:"REPLAY_FILE"`
	// SQLite database receiving poses and events. Recording is off when empty
	RecordDatabase string    `yaml:"recordDatabase" env:"RECORD_DATABASE"`
	TickRate       float64   `yaml:"tickRate" env:"TICK_RATE"` // Hz
	Log            LogConfig `yaml:"log" envPrefix:"LOG_"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
	// Log file, rotated by size. Logs go to stderr when empty
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"maxSizeMB" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"maxBackups" env:"MAX_BACKUPS"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		MaxImuOnlyDuration:      trackers.DefaultMaxImuOnlyDuration,
		CalibrationFile:         trackers.DefaultCalibrationFile,
		DeclaredTrackersFile:    trackers.DefaultDeclaredTrackersFile,
		DeclaredOnly:            false,
		KeepCalibrationOnRescan: false,
		ReplayFile:              "",
		RecordDatabase:          "",
		TickRate:                60,
		Log: LogConfig{
			Level:       "info",
			Development: false,
			File:        "",
			MaxSizeMB:   100,
			MaxBackups:  3,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when path is empty)
// and VIVE_TRACKERS_* environment variables, in that order
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "Can't apply environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Configuration validation failed")
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "Can't read config file '%s'", path)
	}
	if err = yaml.UnmarshalStrict(data, cfg); err != nil {
		return errors.Wrapf(err, "Can't parse config file '%s'", path)
	}
	return nil
}

// Validate checks value ranges
func (cfg *Config) Validate() error {
	if !(cfg.MaxImuOnlyDuration >= trackers.MinImuOnlyDuration && cfg.MaxImuOnlyDuration <= trackers.MaxImuOnlyDurationLimit) {
		return errors.Errorf("maxImuOnlyDuration must be within [%g, %g] seconds, got %g", trackers.MinImuOnlyDuration, trackers.MaxImuOnlyDurationLimit, cfg.MaxImuOnlyDuration)
	}
	if !(cfg.TickRate > 0) {
		return errors.Errorf("tickRate must be positive, got %g", cfg.TickRate)
	}
	if strings.TrimSpace(cfg.CalibrationFile) == "" {
		return errors.New("calibrationFile must not be empty")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("log.level must be one of debug, info, warn, error, got '%s'", cfg.Log.Level)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 {
		return errors.New("log.maxSizeMB and log.maxBackups must not be negative")
	}
	return nil
}

// TickDuration returns the simulated time between two ticks (seconds)
func (cfg *Config) TickDuration() float64 {
	return 1.0 / cfg.TickRate
}

// TrackersConfig maps the configuration onto registry parameters
func (cfg *Config) TrackersConfig(declared map[string]string) trackers.Config {
	trackersConfig := trackers.DefaultConfig()
	trackersConfig.MaxImuOnlyDuration = cfg.MaxImuOnlyDuration
	trackersConfig.DeclaredOnly = cfg.DeclaredOnly
	trackersConfig.KeepCalibrationOnRescan = cfg.KeepCalibrationOnRescan
	for serial, name := range declared {
		trackersConfig.DeclaredTrackers[serial] = name
	}
	return trackersConfig
}
