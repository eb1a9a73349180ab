package main

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/LdDl/vive-trackers-go/internal/config"
)

// newLogger builds a zap logger bridged to logr. logr V(1) maps to the zap debug level
func newLogger(cfg config.LogConfig) (logr.Logger, func(), error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return logr.Discard(), func() {}, errors.Wrapf(err, "Bad log level '%s'", cfg.Level)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	var rotator *lumberjack.Logger
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		sink = zapcore.AddSync(rotator)
	}

	options := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		options = append(options, zap.Development())
	}
	zapLogger := zap.New(zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level)), options...)

	flush := func() {
		_ = zapLogger.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return zapr.NewLogger(zapLogger), flush, nil
}
