package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoding
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// ParseFormat maps LOG_FORMAT values to a Format; unknown values fall back to JSON
func ParseFormat(s string) Format {
	if Format(s) == FormatConsole {
		return FormatConsole
	}
	return FormatJSON
}

// New builds the process logger. Every entry carries the service name so
// server and worker logs can share one sink.
func New(service string, format Format, debugMode bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	switch format {
	case FormatConsole:
		logger, err = NewDevelopmentLogger(debugMode)
	default:
		logger, err = NewProductionLogger(debugMode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if service != "" {
		logger = logger.With(zap.String("service", service))
	}
	return logger, nil
}

// NewProductionLogger creates a JSON logger at info level, or debug level in debug mode
func NewProductionLogger(debugMode bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level(debugMode))
	config.Encoding = string(FormatJSON)
	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	// Stack traces for error level and above
	config.DisableStacktrace = false

	return config.Build()
}

// NewDevelopmentLogger creates a console logger for local runs
func NewDevelopmentLogger(debugMode bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level(debugMode))
	return config.Build()
}

func level(debugMode bool) zapcore.Level {
	if debugMode {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// Sync flushes buffered entries. Safe to call with a nil logger.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
