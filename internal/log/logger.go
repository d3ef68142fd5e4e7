// Package log implements pattern-formatted logging on top of logrus.
package log

import "sync"

// Logger is the logging surface handed to every component. It mirrors the
// logrus entry API so call sites never import logrus directly.
type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	once   sync.Once
	logger Logger
)

// GetLogger returns the process logger. Before Init it configures itself
// with DefaultConfig, so early callers always get a working logger.
func GetLogger() Logger {
	if logger == nil {
		Init(DefaultConfig())
	}
	return logger
}

// Init configures the process logger. Only the first call takes effect.
func Init(cfg *Config) {
	once.Do(func() {
		if err := initByConfig(cfg); err != nil {
			panic(err)
		}
	})
}
