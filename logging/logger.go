// Package logging defines the small logger interface browseraft depends
// on, grounded on the teacher's pkg/mcast/types.Logger + DefaultLogger
// pair: callers can supply their own implementation, or use one of the two
// provided here.
package logging

// Logger is the logging surface a Node uses internally. A Node logs at
// Error (payload encode/decode failures, failed posts, a fatal bus
// teardown) and at Warn (an unknown message kind); it makes no Debug or
// Info calls itself.
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
}
