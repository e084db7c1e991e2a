// Package logrus adapts a *logrus.Entry to sessioncache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/sessioncache"
)

type Logger struct{ E *logrus.Entry }

var _ sessioncache.Logger = Logger{}

// New wraps e. Use logrus.NewEntry(logrus.StandardLogger()) for the global logger.
func New(e *logrus.Entry) Logger { return Logger{E: e} }

func (l Logger) Debug(msg string, f sessioncache.Fields) { l.log(logrus.DebugLevel, msg, f) }
func (l Logger) Info(msg string, f sessioncache.Fields)  { l.log(logrus.InfoLevel, msg, f) }
func (l Logger) Warn(msg string, f sessioncache.Fields)  { l.log(logrus.WarnLevel, msg, f) }
func (l Logger) Error(msg string, f sessioncache.Fields) { l.log(logrus.ErrorLevel, msg, f) }

func (l Logger) log(lvl logrus.Level, msg string, f sessioncache.Fields) {
	if !l.E.Logger.IsLevelEnabled(lvl) {
		return
	}
	l.E.WithFields(logrus.Fields(f)).Log(lvl, msg)
}
