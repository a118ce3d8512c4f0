package config

import (
	"go.viam.com/facebox/logging"
)

// NewLogger returns a stdout logger configured by the log section. When a log file is configured
// it is also written to, and the returned close function must be called once logging is done.
func (l *Log) NewLogger(name string, debug bool) (logging.Logger, func() error) {
	logger := logging.NewLogger(name)
	l.Apply(logger, debug)

	if l.File == nil {
		return logger, func() error { return nil }
	}
	file := logging.NewFileAppender(*l.File)
	logger.AddAppender(file)
	return logger, func() error {
		//nolint:errcheck
		logger.Sync()
		return file.Close()
	}
}

// Apply sets logger's level from the log section. debug forces the debug level.
func (l *Log) Apply(logger logging.Logger, debug bool) {
	if debug {
		logger.SetLevel(logging.DEBUG)
		return
	}
	logger.SetLevel(l.Level)
}
