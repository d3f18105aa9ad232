// Package telemetry implements SiMBA's ambient observability stack
// (SPEC_FULL.md §6.1): a logging scope filter layered on the teacher's
// own *logrus.Logger + logrus.Fields idiom, Prometheus metrics, and the
// time_analysis trace/CSV exporter.
package telemetry

import (
	"time"

	"github.com/mescourrou/simba/internal/config"
	"github.com/sirupsen/logrus"
)

// NewLogger builds a *logrus.Logger the way the teacher's setupLogger
// does (text formatter, RFC3339 timestamps, level from config), one
// instance threaded through every constructor rather than a package
// global.
func NewLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logger.SetLevel(parseLevel(cfg.Level))
	return logger
}

func parseLevel(level string) logrus.Level {
	if level == "" {
		return logrus.InfoLevel
	}
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lv
}

// ScopedLogger tags every entry with a "component" field and applies
// spec.md §6's log.scope per-component level override on top of the
// logger's base level, before the entry ever reaches a logrus hook.
type ScopedLogger struct {
	base      *logrus.Logger
	scope     map[string]logrus.Level
	component string
}

// NewScopedLogger returns the root ScopedLogger for a given scope map
// (component name -> minimum level).
func NewScopedLogger(base *logrus.Logger, scope map[string]string) *ScopedLogger {
	parsed := make(map[string]logrus.Level, len(scope))
	for component, level := range scope {
		parsed[component] = parseLevel(level)
	}
	return &ScopedLogger{base: base, scope: parsed}
}

// For returns a ScopedLogger bound to component, for callers that want
// component-tagged entries (cmd/simba is the only one).
func (s *ScopedLogger) For(component string) *ScopedLogger {
	return &ScopedLogger{base: s.base, scope: s.scope, component: component}
}

func (s *ScopedLogger) entry() *logrus.Entry {
	return s.base.WithFields(logrus.Fields{"component": s.component})
}

func (s *ScopedLogger) enabled(level logrus.Level) bool {
	if min, ok := s.scope[s.component]; ok {
		return level <= min
	}
	return true
}

// WithFields returns a logrus entry pre-tagged with component and fields,
// for callers that want to chain further fields before logging. Entries
// logged through it bypass the log.scope override: only the base
// logger's level applies.
func (s *ScopedLogger) WithFields(fields logrus.Fields) *logrus.Entry {
	return s.entry().WithFields(fields)
}

func (s *ScopedLogger) Debug(args ...any) {
	if s.enabled(logrus.DebugLevel) {
		s.entry().Debug(args...)
	}
}

func (s *ScopedLogger) Info(args ...any) {
	if s.enabled(logrus.InfoLevel) {
		s.entry().Info(args...)
	}
}

func (s *ScopedLogger) Warn(args ...any) {
	if s.enabled(logrus.WarnLevel) {
		s.entry().Warn(args...)
	}
}

func (s *ScopedLogger) Error(args ...any) {
	if s.enabled(logrus.ErrorLevel) {
		s.entry().Error(args...)
	}
}
