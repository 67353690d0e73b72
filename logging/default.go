package logging

import (
	"fmt"
	"log"
	"os"
)

const calldepth = 3

// DefaultLogger wraps the standard library's *log.Logger, matching the
// teacher's own DefaultLogger (pkg/mcast/definition/default_logger.go)
// level-prefix-and-toggle shape.
type DefaultLogger struct {
	*log.Logger
	debug bool
}

// NewDefaultLogger returns the logger used when a Node is built without an
// explicit logger.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		Logger: log.New(os.Stderr, "raft ", log.LstdFlags),
	}
}

// ToggleDebug enables or disables Debug/Debugf output and returns the new
// setting.
func (l *DefaultLogger) ToggleDebug(on bool) bool {
	l.debug = on
	return l.debug
}

func level(prefix, message string) string {
	return fmt.Sprintf("[%s] %s", prefix, message)
}

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		_ = l.Output(calldepth, level("DEBUG", fmt.Sprint(v...)))
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		_ = l.Output(calldepth, level("DEBUG", fmt.Sprintf(format, v...)))
	}
}

func (l *DefaultLogger) Info(v ...interface{}) {
	_ = l.Output(calldepth, level("INFO", fmt.Sprint(v...)))
}

func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	_ = l.Output(calldepth, level("INFO", fmt.Sprintf(format, v...)))
}

func (l *DefaultLogger) Warn(v ...interface{}) {
	_ = l.Output(calldepth, level("WARN", fmt.Sprint(v...)))
}

func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	_ = l.Output(calldepth, level("WARN", fmt.Sprintf(format, v...)))
}

func (l *DefaultLogger) Error(v ...interface{}) {
	_ = l.Output(calldepth, level("ERROR", fmt.Sprint(v...)))
}

func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	_ = l.Output(calldepth, level("ERROR", fmt.Sprintf(format, v...)))
}
