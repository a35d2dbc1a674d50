// Package logging sets up the structured logger every component attaches
// fields to (grounded on the teacher's main.go: a module-tagged
// logrus.Entry handed to each subsystem, plus a custom formatter rather
// than logrus's default).
package logging

import (
	"bytes"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Levels maps a config string to a logrus level, matching the teacher's
// main.go flag-to-level table.
var Levels = map[string]logrus.Level{
	"trace":    logrus.TraceLevel,
	"debug":    logrus.DebugLevel,
	"info":     logrus.InfoLevel,
	"warn":     logrus.WarnLevel,
	"error":    logrus.ErrorLevel,
	"critical": logrus.FatalLevel,
	"off":      logrus.PanicLevel,
}

// BracketFormatter renders "[component] [time] [level] message  key=value
// ...", the teacher's easy-formatter layout reimplemented directly against
// logrus.Formatter since the original formatter package lives in an
// internal, unreachable module registry.
type BracketFormatter struct {
	TimestampFormat string
}

func (f *BracketFormatter) Format(e *logrus.Entry) ([]byte, error) {
	ts := f.TimestampFormat
	if ts == "" {
		ts = "2006-01-02 15:04:05.0000"
	}
	component, _ := e.Data["component"].(string)
	if component == "" {
		component, _ = e.Data["module"].(string)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s] [%s] [%s] %s", component, e.Time.Format(ts), e.Level.String(), e.Message)
	for k, v := range e.Data {
		if k == "component" || k == "module" {
			continue
		}
		fmt.Fprintf(&buf, " %s=%v", k, v)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// NewLogger builds the root *logrus.Logger for a run at levelName (falling
// back to info on an unrecognized name), for callers that need the bare
// logger rather than a component-tagged entry (sim.Driver takes one
// directly so every phase's own WithField calls share one formatter).
func NewLogger(levelName string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&BracketFormatter{})
	if lvl, ok := Levels[levelName]; ok {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// New builds the root logger for a run, named by component, at levelName
// (falling back to info on an unrecognized name).
func New(component, levelName string) *logrus.Entry {
	return NewLogger(levelName).WithField("component", component)
}
