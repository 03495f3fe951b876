// Package c0log is the structured-logging shim components in this module
// call through rather than printing directly, grounded on package.go's
// type LogFunc func(format string, v ...interface{}) and the
// logCritical/logError/logWarning/logInfo/logDebug fields every
// DefaultValueStore carries (valuestore_GEN_.go).
package c0log

import "log"

// LogFunc is one leveled logging hook, unchanged in shape from the
// teacher's LogFunc.
type LogFunc func(format string, v ...interface{})

// Logger bundles the five severities this module's packages log at.
// Components log exactly what the teacher logs at each severity:
// recoverable corruption at Warning, invariant breaches at Critical
// (paired with a panic in debug builds, never in release), routine
// lifecycle events (ingest start/finish, a kvms finalizing) at
// Info/Debug, and surfaced errors at Error.
type Logger struct {
	Critical LogFunc
	Error    LogFunc
	Warning  LogFunc
	Info     LogFunc
	Debug    LogFunc
}

func discard(format string, v ...interface{}) {}

func stdlog(prefix string) LogFunc {
	return func(format string, v ...interface{}) {
		log.Printf(prefix+format, v...)
	}
}

// Default logs Critical/Error/Warning/Info through log.Printf with a
// level prefix and discards Debug, the same severity split
// NewValuesStoreOpts-constructed stores default to outside of explicit
// debug builds.
var Default = &Logger{
	Critical: stdlog("[CRITICAL] "),
	Error:    stdlog("[ERROR] "),
	Warning:  stdlog("[WARNING] "),
	Info:     stdlog("[INFO] "),
	Debug:    discard,
}

// Discard silences every severity; tests that don't care about log output
// but want to avoid a nil-func panic use this instead of Default.
var Discard = &Logger{
	Critical: discard,
	Error:    discard,
	Warning:  discard,
	Info:     discard,
	Debug:    discard,
}

// normalize replaces any nil hook on l with a discarding one, the same
// defensive fill NewValuesStoreOpts performs for an *Opts built partially
// by hand rather than via Resolve/New.
func (l *Logger) normalize() *Logger {
	if l == nil {
		return Discard
	}
	out := *l
	if out.Critical == nil {
		out.Critical = discard
	}
	if out.Error == nil {
		out.Error = discard
	}
	if out.Warning == nil {
		out.Warning = discard
	}
	if out.Info == nil {
		out.Info = discard
	}
	if out.Debug == nil {
		out.Debug = discard
	}
	return &out
}

// Normalize returns a copy of l with every nil hook replaced by a no-op,
// safe to call on a partially-populated or nil Logger before storing it.
func Normalize(l *Logger) *Logger { return l.normalize() }
