package messaging

import (
	"path"
	"strings"
)

// Topic is an absolute, slash-separated channel path (spec.md §3/§6).
// Wildcards are not supported: subscriptions are stored by exact path.
type Topic string

// BasePath returns a node's base topic, /simba/nodes/<name>.
func BasePath(nodeName string) Topic {
	return Topic(path.Join("/simba/nodes", nodeName))
}

// Resolve turns a possibly-relative topic into an absolute one, relative
// to the publishing node's base path. A topic already starting with "/"
// is returned unchanged.
func Resolve(nodeName string, topic string) Topic {
	if strings.HasPrefix(topic, "/") {
		return Topic(topic)
	}
	return Topic(path.Join(string(BasePath(nodeName)), topic))
}

// Reserved built-in topics (spec.md §6).
const (
	ScenarioTopic = Topic("/simba/scenario")
)

// SensorTriggerTopic returns /simba/nodes/<name>/sensors/<sensor>.
func SensorTriggerTopic(nodeName, sensorName string) Topic {
	return Topic(path.Join(string(BasePath(nodeName)), "sensors", sensorName))
}

// ObservationsTopic returns /simba/nodes/<name>/sensors/observations.
func ObservationsTopic(nodeName string) Topic {
	return Topic(path.Join(string(BasePath(nodeName)), "sensors", "observations"))
}

// GotoTopic returns /simba/nodes/<name>/navigator/goto.
func GotoTopic(nodeName string) Topic {
	return Topic(path.Join(string(BasePath(nodeName)), "navigator", "goto"))
}

// CommandTopic returns /simba/command/<name>.
func CommandTopic(nodeName string) Topic {
	return Topic(path.Join("/simba/command", nodeName))
}
