package mqttsink

import (
	"encoding/json"
	"fmt"

	"github.com/mescourrou/simba/internal/config"
	"github.com/mescourrou/simba/internal/record"
	"github.com/sirupsen/logrus"
)

// Sink publishes every flushed record batch to a configured MQTT broker,
// satisfying record.Sink. A publish failure is logged and swallowed: the
// telemetry bridge never aborts a run (SPEC_FULL.md §7).
type Sink struct {
	client *client
	topic  string
	logger *logrus.Logger
}

// New connects to the broker described by cfg and returns a ready Sink.
func New(cfg config.MQTTBridgeConfig, logger *logrus.Logger) (*Sink, error) {
	c, err := newClient(cfg.BrokerURL, cfg.ClientID, logger)
	if err != nil {
		return nil, err
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "simba/records"
	}
	return &Sink{client: c, topic: topic, logger: logger}, nil
}

// Flush implements record.Sink.
func (s *Sink) Flush(records []record.Record) error {
	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			s.logger.WithError(err).Warn("mqttsink: marshaling record")
			continue
		}
		topic := fmt.Sprintf("%s/%s", s.topic, r.Node)
		if err := s.client.publish(topic, payload, config.MQTTPublishTimeout); err != nil {
			s.logger.WithError(err).Warn("mqttsink: publish failed")
		}
	}
	return nil
}

// Close disconnects the underlying MQTT client.
func (s *Sink) Close() {
	s.client.disconnect()
}
