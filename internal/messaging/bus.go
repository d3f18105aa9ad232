// Package messaging implements SiMBA's topic-addressable publish/subscribe
// substrate (spec.md §4.2): per-subscriber letter boxes, spatial range
// gating between physical nodes, and per-subscriber reception delay.
//
// The Bus itself performs no concurrency control (it holds no mutex): by
// design (spec.md §5), all mutating calls are made by the kernel strictly
// between barriers, after every dispatched node's parallel tick has
// completed, in a deterministic (node-name-sorted) order. This keeps the
// bus's observable behaviour independent of goroutine scheduling while
// still allowing node ticks themselves to run concurrently.
package messaging

import (
	"fmt"

	"github.com/mescourrou/simba/internal/geo"
	"github.com/mescourrou/simba/internal/kinematics"
)

// NetworkInfo answers the spatial/liveness questions the bus's eligibility
// rules need. The kernel's node registry implements this.
type NetworkInfo interface {
	Pose(name string) (kinematics.Pose, bool)
	IsPhysical(name string) bool
	Alive(name string) bool
	Range(name string) float64
	ReceptionDelay(name string) float64
}

type subscription struct {
	subscriber    string
	instantaneous bool
}

// Bus is SiMBA's message bus.
type Bus struct {
	network       NetworkInfo
	subscriptions map[Topic][]subscription
	boxes         map[string]*LetterBox
	seq           map[string]uint64 // keyed by origin+"\x00"+subscriber+"\x00"+topic
}

// New creates a Bus bound to the given NetworkInfo for range/liveness
// queries.
func New(network NetworkInfo) *Bus {
	return &Bus{
		network:       network,
		subscriptions: make(map[Topic][]subscription),
		boxes:         make(map[string]*LetterBox),
		seq:           make(map[string]uint64),
	}
}

// RegisterNode gives the node a letter box, owned by the node but
// addressable by the bus for delivery. Must be called once before the
// node can receive any publication.
//
// It also self-subscribes the node, instantaneously, to its own
// observations topic and command topic (spec.md §4.2 "used for intra-node
// wiring"). The observations topic doubles as every sc.SendTo
// destination's inbox (tickSensors publishes there under the destination's
// own name), so this one subscription is what makes both a node's own
// sensor readings and any forwarded observation reach a letter box at
// all; without it Publish has no subscriber and silently drops the
// envelope. The command topic subscription is what lets a Kill-flagged
// message (spec.md §6 /simba/command/<name>) ever reach preLoopHook.
func (b *Bus) RegisterNode(name string) *LetterBox {
	lb := NewLetterBox()
	b.boxes[name] = lb
	b.Subscribe(name, ObservationsTopic(name), true)
	b.Subscribe(name, CommandTopic(name), true)
	return lb
}

// UnregisterNode drops a node's letter box and all of its subscriptions,
// called when a node is killed (spec.md §3 Lifecycle).
func (b *Bus) UnregisterNode(name string) {
	delete(b.boxes, name)
	for topic, subs := range b.subscriptions {
		out := subs[:0]
		for _, s := range subs {
			if s.subscriber != name {
				out = append(out, s)
			}
		}
		b.subscriptions[topic] = out
	}
}

// Subscribe registers subscriber to receive every publication on topic.
// instantaneous subscriptions ignore reception delay (used for intra-node
// wiring, spec.md §4.2).
func (b *Bus) Subscribe(subscriber string, topic Topic, instantaneous bool) {
	subs := b.subscriptions[topic]
	for i, s := range subs {
		if s.subscriber == subscriber {
			subs[i].instantaneous = instantaneous
			return
		}
	}
	b.subscriptions[topic] = append(subs, subscription{subscriber: subscriber, instantaneous: instantaneous})
}

// Unsubscribe removes subscriber's subscription to topic, if any.
func (b *Bus) Unsubscribe(subscriber string, topic Topic) {
	subs := b.subscriptions[topic]
	out := subs[:0]
	for _, s := range subs {
		if s.subscriber != subscriber {
			out = append(out, s)
		}
	}
	b.subscriptions[topic] = out
}

// Publication is a single outbound message a node produced during its
// tick, staged until the kernel merges it into the bus at the barrier end
// (spec.md §5).
type Publication struct {
	Origin  string
	Topic   Topic
	Payload any
	Time    float64
	Flags   Flags
}

// Publish delivers one Envelope per eligible subscriber of pub.Topic,
// applying the ordered eligibility rules and delivery timing of spec.md
// §4.2. It returns the envelopes actually enqueued, primarily for test
// observability.
func (b *Bus) Publish(pub Publication) []Envelope {
	subs := b.subscriptions[pub.Topic]
	if len(subs) == 0 {
		return nil
	}
	originPose, originHasPose := b.network.Pose(pub.Origin)
	originPhysical := b.network.IsPhysical(pub.Origin)

	var delivered []Envelope
	for _, s := range subs {
		if !b.network.Alive(s.subscriber) {
			continue // dropped without an error or a log entry
		}
		if !pub.Flags.God && originPhysical && b.network.IsPhysical(s.subscriber) && originHasPose {
			subPose, subHasPose := b.network.Pose(s.subscriber)
			if subHasPose && !withinRange(originPose, subPose, b.network.Range(pub.Origin), b.network.Range(s.subscriber)) {
				continue
			}
		}

		deliveryTime := pub.Time
		if !pub.Flags.God && !s.instantaneous {
			// Rounded to the simulator's 1e-6 s time precision so that,
			// e.g., 0.2+0.1 lands on 0.3 rather than 0.30000000000000004.
			deliveryTime = geo.RoundTo(pub.Time+b.network.ReceptionDelay(s.subscriber), 1e-6)
		}

		key := fmt.Sprintf("%s\x00%s\x00%s", pub.Origin, s.subscriber, pub.Topic)
		seq := b.seq[key]
		b.seq[key] = seq + 1

		env := Envelope{
			Origin:          pub.Origin,
			Topic:           pub.Topic,
			Payload:         pub.Payload,
			PublicationTime: pub.Time,
			DeliveryTime:    deliveryTime,
			Flags:           pub.Flags,
			seq:             seq,
		}
		if box, ok := b.boxes[s.subscriber]; ok {
			box.Insert(env)
			delivered = append(delivered, env)
		}
	}
	return delivered
}

// withinRange implements eligibility rule 1 (spec.md §4.2): distance must
// be <= min(publisher.range, subscriber.range), with 0 meaning unlimited.
func withinRange(a, b kinematics.Pose, rangeA, rangeB float64) bool {
	limit := effectiveLimit(rangeA, rangeB)
	if limit < 0 {
		return true // both unlimited
	}
	return geo.Distance(a.Point(), b.Point()) <= limit
}

// effectiveLimit returns -1 to mean "unlimited".
func effectiveLimit(rangeA, rangeB float64) float64 {
	switch {
	case rangeA == 0 && rangeB == 0:
		return -1
	case rangeA == 0:
		return rangeB
	case rangeB == 0:
		return rangeA
	default:
		if rangeA < rangeB {
			return rangeA
		}
		return rangeB
	}
}

// Box returns the letter box registered for name, if any.
func (b *Bus) Box(name string) (*LetterBox, bool) {
	lb, ok := b.boxes[name]
	return lb, ok
}
