package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the survey engine. It
// defaults to log.Printf but may be replaced by SetLogger, e.g. to mute runs
// in tests or route them to a UI message pane.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Tagged returns a logger that prefixes every message with "[tag] ". The
// current Logf is looked up on each call so SetLogger keeps working.
func Tagged(tag string) func(format string, v ...interface{}) {
	prefix := "[" + tag + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
