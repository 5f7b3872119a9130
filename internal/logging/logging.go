package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	log        *logrus.Logger
	sink       *os.File
	consoleOut io.Writer
)

// Init replaces the process logger. Console output goes to console when it is
// non-nil; logFile, when set, is appended to. With neither sink the logger is
// silent.
func Init(level, logFile string, console io.Writer) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "log level %q", level)
	}

	l := logrus.New()
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}

	var file *os.File
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return errors.Wrapf(err, "creating log directory for %s", logFile)
		}
		file, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return errors.Wrapf(err, "opening log file %s", logFile)
		}
		writers = append(writers, file)
	}

	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	Close()
	log, sink, consoleOut = l, file, console
	return nil
}

// Get returns the process logger, creating a default one if Init has not
// run.
func Get() *logrus.Logger {
	if log == nil {
		log = logrus.New()
	}
	return log
}

// Close flushes and closes the log file, if any. The logger keeps working
// on its remaining sinks.
func Close() {
	if sink == nil {
		return
	}
	if log != nil {
		if consoleOut != nil {
			log.SetOutput(consoleOut)
		} else {
			log.SetOutput(io.Discard)
		}
	}
	_ = sink.Sync()
	_ = sink.Close()
	sink = nil
}
