package main

import (
	"github.com/mescourrou/simba/internal/record"
	"github.com/sirupsen/logrus"
)

// multiSink fans one flushed batch out to every configured live telemetry
// sink (mqttsink, inspector). A single sink's failure is logged and never
// aborts the run, matching the pattern each sink already follows on its
// own.
type multiSink struct {
	sinks  []record.Sink
	logger *logrus.Logger
}

func (m multiSink) Flush(records []record.Record) error {
	for _, s := range m.sinks {
		if err := s.Flush(records); err != nil {
			m.logger.WithError(err).Warn("cmd/simba: telemetry sink flush failed")
		}
	}
	return nil
}

// combineSinks returns nil if sinks is empty, the sole sink if there is
// exactly one, or a multiSink fan-out otherwise — avoiding an unnecessary
// wrapper for the common single-sink case.
func combineSinks(sinks []record.Sink, logger *logrus.Logger) record.Sink {
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return multiSink{sinks: sinks, logger: logger}
	}
}
