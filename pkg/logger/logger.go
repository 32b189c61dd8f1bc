package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
}

func NewLogger(verbose bool) *Logger {
	return NewLoggerWithOutput(os.Stdout, verbose)
}

// NewLoggerWithOutput is NewLogger writing to w. The CLI logs to stderr so
// that reports on stdout stay machine readable.
func NewLoggerWithOutput(w io.Writer, verbose bool) *Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   w == os.Stdout || w == os.Stderr,
	})
	setLevel(log, verbose)
	return &Logger{Logger: log}
}

// NewJSONLogger emits one JSON object per entry, for the HTTP server.
func NewJSONLogger(w io.Writer, verbose bool) *Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.JSONFormatter{})
	setLevel(log, verbose)
	return &Logger{Logger: log}
}

func setLevel(log *logrus.Logger, verbose bool) {
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}
