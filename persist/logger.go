package persist

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger writing to a dedicated log file: a STARTUP
// line is written when the logger is created and a SHUTDOWN line when it
// is closed, so a log file unambiguously brackets the lifetime of
// whatever opened it.
type Logger struct {
	*logrus.Logger
	file *os.File
}

// NewFileLogger creates a logger that writes structured, line-oriented
// entries to logFilename; the STARTUP entry carries component (e.g.
// "wallet") as a field. When verbose is true, Debug-level entries are also
// written.
func NewFileLogger(component, logFilename string, verbose bool) (*Logger, error) {
	f, err := os.OpenFile(logFilename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(f)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	l := &Logger{Logger: log, file: f}
	l.WithField("component", component).Info("STARTUP: ", component, " logger started")
	return l, nil
}

// Critical logs msg at panic level and then panics, matching
// build.Critical's unconditional-failure contract for logged invariants.
func (l *Logger) Critical(args ...interface{}) {
	l.Logger.Panic(args...)
}

// Close writes a SHUTDOWN marker and closes the underlying log file.
func (l *Logger) Close() error {
	l.Info("SHUTDOWN: logger stopping")
	return l.file.Close()
}

// Writer exposes the underlying file for callers that need a raw
// io.Writer (e.g. to tee additional diagnostics alongside the logger).
func (l *Logger) Writer() io.Writer {
	return l.file
}
