package log

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// MultiWriter fans every record out to all registered writers. A failing
// writer never blocks the others.
type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		_, e := w.Write(p)
		if e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

// AddFileAppender attaches a size-rotated log file.
func (m *MultiWriter) AddFileAppender(opt *FileAppenderOpt) *MultiWriter {
	writer := &lumberjack.Logger{
		Filename:   opt.Filename,
		MaxSize:    opt.MaxSize,    // megabytes
		MaxBackups: opt.MaxBackups, // number of backups
		MaxAge:     opt.MaxAge,     // days
		Compress:   opt.Compress,   // compress the backups
	}
	m.writers = append(m.writers, writer)
	return m
}
