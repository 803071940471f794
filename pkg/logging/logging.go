// Package logging provides the component-logger abstraction shared by every
// suil package. It wraps logrus the same way docker/model-runner's
// pkg/metrics.Tracker takes a logging.Logger constructor argument satisfied
// by either *logrus.Logger or *logrus.Entry.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the minimal logging surface every suil package depends on. Both
// *logrus.Logger and *logrus.Entry satisfy it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Debugln(args ...interface{})
	Infof(format string, args ...interface{})
	Infoln(args ...interface{})
	Warnf(format string, args ...interface{})
	Warnln(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
}

// New returns the root logger, configured from SUIL_LOG_LEVEL /
// SUIL_LOG_FORMAT the way docker/model-runner reads DEBUG from the
// environment in pkg/metrics.NewTracker.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level := logrus.InfoLevel
	if lvl, err := logrus.ParseLevel(os.Getenv("SUIL_LOG_LEVEL")); err == nil {
		level = lvl
	} else if os.Getenv("DEBUG") == "1" {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	if os.Getenv("SUIL_LOG_FORMAT") == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// Component returns a child logger tagged with the given component name,
// matching the log.WithFields(logrus.Fields{"component": ...}) convention
// used throughout docker/model-runner's main.go.
func Component(log Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
