package main

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "terminus/debug.log"

// logLocation mirrors the journal's state directory resolution.
func logLocation(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, filepath.FromSlash(defaultLogFile)), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", filepath.FromSlash(defaultLogFile)), nil
}

// newDebugLogger writes JSON debug logs to a size-rotated file so the
// terminal stays clean.
func newDebugLogger(path string) (*zap.Logger, error) {
	path, err := logLocation(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, zapcore.DebugLevel)

	return zap.New(core, zap.AddCaller()), nil
}
