// Package logging builds the zap logger for a scan process. One atomic
// level governs every configured sink, so verbosity can be tightened
// after startup and raised again for shutdown without rebuilding the
// logger.
package logging

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ieql/engine/internal/common/configtypes"
)

// ScanLogger is a zap.Logger whose threshold can be adjusted at
// runtime. Until ApplyConfiguredLevel is called it logs at Info or
// finer, so startup messages are never suppressed by a quiet
// configuration.
type ScanLogger struct {
	*zap.Logger

	level      zap.AtomicLevel
	configured zapcore.Level
}

// Bootstrap returns a console logger for use before configuration has
// been loaded.
func Bootstrap() *zap.Logger {
	return zap.Must(zap.NewDevelopment())
}

// New builds a ScanLogger from config. At least one sink must be
// enabled. The scan command writes responses to stdout, so console
// logs always go to stderr.
func New(cfg configtypes.LogConfig) (*ScanLogger, error) {
	configured, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	startup := configured
	if startup > zapcore.InfoLevel {
		startup = zapcore.InfoLevel
	}
	level := zap.NewAtomicLevelAt(startup)

	var cores []zapcore.Core
	if cfg.Console.Enabled {
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Console.Format), zapcore.Lock(os.Stderr), level))
	}
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, errors.New("log file path required when file output is enabled")
		}
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.File.Format), rotatingWriter(cfg.File), level))
	}
	if len(cores) == 0 {
		return nil, errors.New("no log outputs enabled")
	}

	return &ScanLogger{
		Logger:     zap.New(zapcore.NewTee(cores...)),
		level:      level,
		configured: configured,
	}, nil
}

// ApplyConfiguredLevel drops the startup override and enforces the
// configured threshold on every sink.
func (l *ScanLogger) ApplyConfiguredLevel() {
	if l.level.Level() != l.configured {
		l.Info("applying configured log level", zap.Stringer("level", l.configured))
		l.level.SetLevel(l.configured)
	}
}

// RaiseForShutdown lowers the threshold back to Info so the shutdown
// sequence stays visible under a quiet configuration.
func (l *ScanLogger) RaiseForShutdown() {
	if l.level.Level() > zapcore.InfoLevel {
		l.level.SetLevel(zapcore.InfoLevel)
	}
}

func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
}

func rotatingWriter(cfg configtypes.FileLogConfig) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.Rotation.MaxSize,
		MaxAge:     cfg.Rotation.MaxAge,
		MaxBackups: cfg.Rotation.MaxBackups,
		Compress:   cfg.Rotation.Compress,
	})
}
