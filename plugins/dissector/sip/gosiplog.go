package sip

import (
	gosiplog "github.com/ghettovoice/gosip/log"

	"github.com/tytonet/tyto/internal/log"
)

// gosipLogger adapts the process logger to the interface the gosip
// parser wants for its internals.
type gosipLogger struct {
	delegate log.Logger
}

func (l *gosipLogger) Fields() gosiplog.Fields {
	return gosiplog.Fields{}
}

func (l *gosipLogger) WithFields(fields map[string]interface{}) gosiplog.Logger {
	return &gosipLogger{delegate: l.delegate.WithFields(fields)}
}

func (l *gosipLogger) Prefix() string {
	return ""
}

func (l *gosipLogger) WithPrefix(prefix string) gosiplog.Logger {
	return &gosipLogger{delegate: l.delegate.WithField("prefix", prefix)}
}

func (l *gosipLogger) Print(args ...interface{}) {
	l.delegate.Print(args...)
}

func (l *gosipLogger) Printf(format string, args ...interface{}) {
	l.delegate.Printf(format, args...)
}

func (l *gosipLogger) Trace(args ...interface{}) {
	l.delegate.Trace(args...)
}

func (l *gosipLogger) Tracef(format string, args ...interface{}) {
	l.delegate.Tracef(format, args...)
}

func (l *gosipLogger) Debug(args ...interface{}) {
	l.delegate.Debug(args...)
}

func (l *gosipLogger) Debugf(format string, args ...interface{}) {
	l.delegate.Debugf(format, args...)
}

func (l *gosipLogger) Info(args ...interface{}) {
	l.delegate.Info(args...)
}

func (l *gosipLogger) Infof(format string, args ...interface{}) {
	l.delegate.Infof(format, args...)
}

func (l *gosipLogger) Warn(args ...interface{}) {
	l.delegate.Warn(args...)
}

func (l *gosipLogger) Warnf(format string, args ...interface{}) {
	l.delegate.Warnf(format, args...)
}

func (l *gosipLogger) Error(args ...interface{}) {
	l.delegate.Error(args...)
}

func (l *gosipLogger) Errorf(format string, args ...interface{}) {
	l.delegate.Errorf(format, args...)
}

func (l *gosipLogger) Fatal(args ...interface{}) {
	l.delegate.Fatal(args...)
}

func (l *gosipLogger) Fatalf(format string, args ...interface{}) {
	l.delegate.Fatalf(format, args...)
}

func (l *gosipLogger) Panic(args ...interface{}) {
	l.delegate.Panic(args...)
}

func (l *gosipLogger) Panicf(format string, args ...interface{}) {
	l.delegate.Panicf(format, args...)
}

// SetLevel is a no-op; level control stays with the process logger.
func (l *gosipLogger) SetLevel(level uint32) {}
