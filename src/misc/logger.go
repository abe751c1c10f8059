package misc

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a zap logger from the log section: an optional console
// core on stderr and an optional rotated file core, both at the same level.
// With neither output enabled the logger discards everything.
func NewLogger(config LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if config.Level != "" {
		parsed, err := zapcore.ParseLevel(config.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", config.Level, err)
		}
		level = parsed
	}

	encoder_config := zap.NewProductionEncoderConfig()
	encoder_config.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := make([]zapcore.Core, 0, 2)

	if config.Console {
		console_config := encoder_config
		console_config.EncodeLevel = zapcore.CapitalLevelEncoder
		var encoder zapcore.Encoder
		if config.Encoding == "json" {
			encoder = zapcore.NewJSONEncoder(console_config)
		} else {
			encoder = zapcore.NewConsoleEncoder(console_config)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level)))
	}

	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoder_config), writer, zap.NewAtomicLevelAt(level)))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
