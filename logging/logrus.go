package logging

import "github.com/sirupsen/logrus"

// LogrusLogger adapts a *logrus.Logger to the Logger interface, for callers
// who already standardized on logrus elsewhere in their process (the
// teacher's own go.mod already carries logrus as a transitive dependency).
type LogrusLogger struct {
	*logrus.Logger
}

// NewLogrusLogger wraps l, or a fresh logrus.Logger if l is nil. Pass
// logrus.StandardLogger() to reuse the process-wide default logger. The
// embedded *logrus.Logger already exposes Debug/Debugf/Info/.../Errorf
// with the signatures Logger requires.
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.New()
	}
	return &LogrusLogger{Logger: l}
}
