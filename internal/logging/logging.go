package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. Console output goes to stderr at
// the configured level; if logFile is set, everything down to debug is also
// written there.
func NewLogger(level string, logFile string) (*zap.Logger, error) {
	consoleLevel := ParseLevel(level)

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(consoleLevel),
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	if logFile == "" {
		return logger, nil
	}

	fileCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.DebugLevel),
		Encoding:         "json",
		OutputPaths:      []string{logFile},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    zap.NewProductionEncoderConfig(),
	}

	fileLogger, err := fileCfg.Build()
	if err != nil {
		logger.Warn("Failed to open log file, console only", zap.String("file", logFile), zap.Error(err))
		return logger, nil
	}

	combined := zap.New(zapcore.NewTee(logger.Core(), fileLogger.Core()))
	return combined, nil
}

// ParseLevel maps a level string to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug", "DEBUG":
		return zapcore.DebugLevel
	case "warn", "warning", "WARNING":
		return zapcore.WarnLevel
	case "error", "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
