package encounter

import "sync/atomic"

// debugLoggingEnabled gates per-tick debug logs. Controllers tick many times per second,
// so the level check is kept out of slog.
var debugLoggingEnabled atomic.Bool

// EnableDebugLogging toggles per-tick debug logging for all controllers.
// Call once during initialization, after the log level is known.
func EnableDebugLogging(enabled bool) {
	debugLoggingEnabled.Store(enabled)
}

// IsDebugEnabled reports whether per-tick debug logging is on.
func IsDebugEnabled() bool {
	return debugLoggingEnabled.Load()
}
