package misc

import (
	"sync"

	"go.uber.org/zap"
)

var (
	runtimePlatformMode     = DefaultPlatformMode()
	runtimePlatformModeLock sync.RWMutex

	runtimeLogger     = zap.NewNop()
	runtimeLoggerLock sync.RWMutex
)

// SetRuntimePlatformMode updates the global runtime platform mode.
func SetRuntimePlatformMode(mode PlatformMode) {
	runtimePlatformModeLock.Lock()
	defer runtimePlatformModeLock.Unlock()

	runtimePlatformMode = mode
}

// RuntimePlatformMode returns the currently configured platform mode.
func RuntimePlatformMode() PlatformMode {
	runtimePlatformModeLock.RLock()
	defer runtimePlatformModeLock.RUnlock()

	return runtimePlatformMode
}

// SetLogger replaces the process-wide logger. A nil logger installs a no-op.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	runtimeLoggerLock.Lock()
	defer runtimeLoggerLock.Unlock()

	runtimeLogger = logger
}

// Logger returns the process-wide logger.
func Logger() *zap.Logger {
	runtimeLoggerLock.RLock()
	defer runtimeLoggerLock.RUnlock()

	return runtimeLogger
}

// ConfigureRuntime applies the process-wide settings carried by the command
// line.
func ConfigureRuntime(parser *CommandLineParser) {
	if parser == nil {
		return
	}

	if mode, ok := PlatformModeFromString(parser.StringParameter("platform_mode")); ok {
		SetRuntimePlatformMode(mode)
	}
}
