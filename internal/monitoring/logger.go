// Package monitoring carries the diagnostic logging hook shared by the
// reconstruction and tracking engines. Long sequence runs emit one line
// per frame plus ambiguity diagnostics; batch drivers and tests can
// redirect or mute them without touching the engines.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to
// log.Printf but may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
