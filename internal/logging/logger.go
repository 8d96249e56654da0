// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level and outputs
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // console or json, for the console output
	Console     bool
	File        string // Rotated JSON log; empty disables
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	Compress    bool
	ServiceName string
}

// DefaultConfig returns console logging at info plus a rotated file
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Format:      "console",
		Console:     true,
		File:        "logs/linewatch.log",
		MaxSizeMB:   10,
		MaxBackups:  3,
		MaxAgeDays:  28,
		Compress:    false,
		ServiceName: "linewatch",
	}
}

// New builds a logger from cfg. Console output goes to console (stdout when nil);
// extra cores, such as a History, are teed in.
func New(cfg Config, console zapcore.WriteSyncer, extra ...zapcore.Core) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	var cores []zapcore.Core
	if cfg.Console {
		if console == nil {
			console = zapcore.Lock(os.Stdout)
		}
		cores = append(cores, zapcore.NewCore(encoder(cfg.Format), console, level))
	}

	if cfg.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder("json"), fileWriter, level))
	}

	for _, c := range extra {
		if c != nil {
			cores = append(cores, c)
		}
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel))
	if cfg.ServiceName != "" {
		logger = logger.Named(cfg.ServiceName)
	}
	return logger, nil
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.ConsoleSeparator = " "
	return zapcore.NewConsoleEncoder(ec)
}
