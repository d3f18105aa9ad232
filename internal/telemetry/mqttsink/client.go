// Package mqttsink implements SiMBA's optional live telemetry bridge
// (SPEC_FULL.md §7): every record the store flushes is also best-effort
// published to an MQTT broker for external dashboards. It never feeds
// back into the simulation, so a broker outage cannot affect determinism
// (spec.md §8.1).
package mqttsink

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// client wraps the paho client with the reconnect/timeout handling the
// teacher's internal/mqtt.Client used for its Home-Assistant bridge,
// generalized away from any HA-specific topic scheme.
type client struct {
	conn   mqtt.Client
	logger *logrus.Logger
}

func newClient(brokerURL, clientID string, logger *logrus.Logger) (*client, error) {
	parsed, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("mqttsink: invalid broker_url: %w", err)
	}

	opts := mqtt.NewClientOptions()
	var resolved string
	switch parsed.Scheme {
	case "ws", "wss":
		resolved = brokerURL
		if parsed.Scheme == "wss" {
			opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
		}
	case "mqtt":
		resolved = strings.Replace(brokerURL, "mqtt://", "tcp://", 1)
	case "mqtts":
		resolved = strings.Replace(brokerURL, "mqtts://", "ssl://", 1)
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	default:
		return nil, fmt.Errorf("mqttsink: unsupported broker_url scheme %q (want ws, wss, mqtt, mqtts)", parsed.Scheme)
	}

	if clientID == "" {
		clientID = "simba-telemetry"
	}

	opts.AddBroker(resolved)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetMaxReconnectInterval(10 * time.Second)

	if parsed.User != nil {
		username := parsed.User.Username()
		password, _ := parsed.User.Password()
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	opts.SetConnectionLostHandler(func(mqtt.Client, error) {
		logger.Warn("mqttsink: connection lost, reconnecting")
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Debug("mqttsink: connected")
	})

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqttsink: connecting to broker: %w", token.Error())
	}
	return &client{conn: c, logger: logger}, nil
}

// publish sends payload to topic at QoS 1, bounded by timeout to avoid
// blocking the record store's Flush call on a stalled broker.
func (c *client) publish(topic string, payload []byte, timeout time.Duration) error {
	token := c.conn.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqttsink: publish to %s timed out after %s", topic, timeout)
	}
	return token.Error()
}

func (c *client) disconnect() {
	c.conn.Disconnect(250)
}
