package messaging

import (
	"testing"

	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/stretchr/testify/require"
)

type fakeNetwork struct {
	poses   map[string]kinematics.Pose
	ranges  map[string]float64
	delays  map[string]float64
	alive   map[string]bool
	physical map[string]bool
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		poses:    map[string]kinematics.Pose{},
		ranges:   map[string]float64{},
		delays:   map[string]float64{},
		alive:    map[string]bool{},
		physical: map[string]bool{},
	}
}

func (f *fakeNetwork) Pose(name string) (kinematics.Pose, bool) { p, ok := f.poses[name]; return p, ok }
func (f *fakeNetwork) IsPhysical(name string) bool              { return f.physical[name] }
func (f *fakeNetwork) Alive(name string) bool                   { return f.alive[name] }
func (f *fakeNetwork) Range(name string) float64                { return f.ranges[name] }
func (f *fakeNetwork) ReceptionDelay(name string) float64       { return f.delays[name] }

func TestDeliveryDelay(t *testing.T) {
	net := newFakeNetwork()
	net.alive["a"], net.alive["b"] = true, true
	net.physical["a"], net.physical["b"] = true, true
	net.poses["a"] = kinematics.Pose{X: 0, Y: 0}
	net.poses["b"] = kinematics.Pose{X: 0, Y: 0}
	net.delays["b"] = 0.1

	bus := New(net)
	bus.RegisterNode("a")
	bBox := bus.RegisterNode("b")
	bus.Subscribe("b", Topic("/t"), false)

	envs := bus.Publish(Publication{Origin: "a", Topic: Topic("/t"), Payload: 1, Time: 0.2})
	require.Len(t, envs, 1)
	require.InDelta(t, 0.3, envs[0].DeliveryTime, 1e-9)

	drained := bBox.DrainUpTo(0.25)
	require.Empty(t, drained)
	drained = bBox.DrainUpTo(0.3)
	require.Len(t, drained, 1)
}

func TestGodFlagBypassesDelayAndRange(t *testing.T) {
	net := newFakeNetwork()
	net.alive["a"], net.alive["b"] = true, true
	net.physical["a"], net.physical["b"] = true, true
	net.poses["a"] = kinematics.Pose{X: 0, Y: 0}
	net.poses["b"] = kinematics.Pose{X: 1000, Y: 0}
	net.ranges["a"], net.ranges["b"] = 1, 1
	net.delays["b"] = 5

	bus := New(net)
	bus.RegisterNode("a")
	bBox := bus.RegisterNode("b")
	bus.Subscribe("b", Topic("/t"), false)

	envs := bus.Publish(Publication{Origin: "a", Topic: Topic("/t"), Time: 1.0, Flags: Flags{God: true}})
	require.Len(t, envs, 1)
	require.Equal(t, 1.0, envs[0].DeliveryTime)
	require.Len(t, bBox.DrainUpTo(1.0), 1)
}

func TestRangeGateBlocksOutOfRange(t *testing.T) {
	net := newFakeNetwork()
	net.alive["a"], net.alive["b"] = true, true
	net.physical["a"], net.physical["b"] = true, true
	net.poses["a"] = kinematics.Pose{X: 0, Y: 0}
	net.poses["b"] = kinematics.Pose{X: 2, Y: 0}
	net.ranges["a"], net.ranges["b"] = 1, 1

	bus := New(net)
	bus.RegisterNode("a")
	bus.RegisterNode("b")
	bus.Subscribe("b", Topic("/t"), false)

	envs := bus.Publish(Publication{Origin: "a", Topic: Topic("/t"), Time: 0})
	require.Empty(t, envs)
}

func TestComputationUnitBypassesRangeGate(t *testing.T) {
	net := newFakeNetwork()
	net.alive["a"], net.alive["cu"] = true, true
	net.physical["a"] = true
	net.physical["cu"] = false
	net.poses["a"] = kinematics.Pose{X: 0, Y: 0}
	net.ranges["a"] = 1

	bus := New(net)
	bus.RegisterNode("a")
	bus.RegisterNode("cu")
	bus.Subscribe("cu", Topic("/t"), false)

	envs := bus.Publish(Publication{Origin: "a", Topic: Topic("/t"), Time: 0})
	require.Len(t, envs, 1)
}

func TestFIFOOrderingPerPublisherSubscriberTopic(t *testing.T) {
	net := newFakeNetwork()
	net.alive["a"], net.alive["b"] = true, true
	net.physical["a"], net.physical["b"] = true, true
	net.poses["a"] = kinematics.Pose{}
	net.poses["b"] = kinematics.Pose{}

	bus := New(net)
	bus.RegisterNode("a")
	bBox := bus.RegisterNode("b")
	bus.Subscribe("b", Topic("/t"), false)

	for i := 0; i < 5; i++ {
		bus.Publish(Publication{Origin: "a", Topic: Topic("/t"), Payload: i, Time: float64(i)})
	}

	drained := bBox.DrainUpTo(10)
	require.Len(t, drained, 5)
	for i, e := range drained {
		require.Equal(t, i, e.Payload)
		require.Equal(t, uint64(i), e.Seq())
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	net := newFakeNetwork()
	net.alive["a"], net.alive["b"] = true, true
	net.physical["a"], net.physical["b"] = true, true
	net.poses["a"] = kinematics.Pose{}
	net.poses["b"] = kinematics.Pose{}

	bus := New(net)
	bus.RegisterNode("a")
	bus.RegisterNode("b")
	bus.Subscribe("b", Topic("/t"), false)
	bus.Unsubscribe("b", Topic("/t"))

	envs := bus.Publish(Publication{Origin: "a", Topic: Topic("/t"), Time: 0})
	require.Empty(t, envs)
}

func TestRegisterNodeSelfSubscribesObservationsAndCommandTopics(t *testing.T) {
	net := newFakeNetwork()
	net.alive["a"], net.alive["b"] = true, true
	net.physical["a"], net.physical["b"] = true, true
	net.poses["a"] = kinematics.Pose{}
	net.poses["b"] = kinematics.Pose{}

	bus := New(net)
	aBox := bus.RegisterNode("a")
	bBox := bus.RegisterNode("b")

	// a's own sensor observations reach a's own letter box, instantaneously.
	envs := bus.Publish(Publication{Origin: "a", Topic: ObservationsTopic("a"), Time: 1.0})
	require.Len(t, envs, 1)
	require.Equal(t, 1.0, envs[0].DeliveryTime)
	require.Len(t, aBox.DrainUpTo(1.0), 1)

	// a forwarding (send_to) an observation to b's topic reaches b, too.
	envs = bus.Publish(Publication{Origin: "a", Topic: ObservationsTopic("b"), Time: 1.0})
	require.Len(t, envs, 1)
	require.Len(t, bBox.DrainUpTo(1.0), 1)

	// A Kill-flagged command reaches b's command topic without any
	// explicit Subscribe call.
	envs = bus.Publish(Publication{Origin: "a", Topic: CommandTopic("b"), Time: 2.0, Flags: Flags{Kill: true}})
	require.Len(t, envs, 1)
	drained := bBox.DrainUpTo(2.0)
	require.Len(t, drained, 1)
	require.True(t, drained[0].Flags.Kill)
}

func TestUnreachableDestinationDropped(t *testing.T) {
	net := newFakeNetwork()
	net.alive["a"] = true
	net.physical["a"] = true
	net.poses["a"] = kinematics.Pose{}

	bus := New(net)
	bus.RegisterNode("a")
	bus.RegisterNode("dead")
	bus.Subscribe("dead", Topic("/t"), false)
	net.alive["dead"] = false

	envs := bus.Publish(Publication{Origin: "a", Topic: Topic("/t"), Time: 0})
	require.Empty(t, envs)
}
