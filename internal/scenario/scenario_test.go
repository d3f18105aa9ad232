package scenario

import (
	"errors"
	"testing"

	"github.com/mescourrou/simba/internal/geo"
	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/mescourrou/simba/internal/randgen"
	"github.com/mescourrou/simba/internal/simerrors"
)

type fakeLocator struct {
	poses map[string]kinematics.Pose
}

func (f *fakeLocator) RobotPoses() map[string]kinematics.Pose { return f.poses }
func (f *fakeLocator) Alive(name string) bool                 { _, ok := f.poses[name]; return ok }

func TestTimeTriggerFixedPeriodOccurrences(t *testing.T) {
	tr := Trigger{Kind: TimeTrigger, TimeFixed: 5, Occurrences: 3}
	if err := tr.resolveTimeFires(nil, "", 100); err != nil {
		t.Fatal(err)
	}
	want := []float64{5, 10, 15}
	for i, w := range want {
		if tr.resolvedFires[i] != w {
			t.Fatalf("fire %d: got %v want %v", i, tr.resolvedFires[i], w)
		}
	}
}

func TestTimeTriggerRepeatsUntilMaxTime(t *testing.T) {
	tr := Trigger{Kind: TimeTrigger, TimeFixed: 10, Occurrences: 0}
	if err := tr.resolveTimeFires(nil, "", 25); err != nil {
		t.Fatal(err)
	}
	if len(tr.resolvedFires) != 2 {
		t.Fatalf("expected 2 fires within max_time=25, got %v", tr.resolvedFires)
	}
}

func TestEventValidateRejectsUnboundToken(t *testing.T) {
	ev := &ScheduledEvent{
		Name:    "spawn-on-timer",
		Trigger: Trigger{Kind: TimeTrigger, TimeFixed: 5, Occurrences: 1},
		Kind:    SpawnEvent,
		ModelName: "m",
		NodeName:  "robot_$1", // $1 is never bound by a time trigger
	}
	err := ev.Validate()
	if !errors.Is(err, simerrors.ErrScenarioBindingMissing) {
		t.Fatalf("expected ErrScenarioBindingMissing, got %v", err)
	}
}

func TestEventValidateAcceptsBoundToken(t *testing.T) {
	ev := &ScheduledEvent{
		Name:    "spawn-on-timer",
		Trigger: Trigger{Kind: TimeTrigger, TimeFixed: 5, Occurrences: 3},
		Kind:    SpawnEvent,
		ModelName: "m",
		NodeName:  "robot_$0",
	}
	if err := ev.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestEngineFiresTimeTriggerAtExactInstant(t *testing.T) {
	ev := &ScheduledEvent{
		Name:      "spawn-periodic",
		Trigger:   Trigger{Kind: TimeTrigger, TimeFixed: 5, Occurrences: 2},
		Kind:      SpawnEvent,
		ModelName: "drone",
		NodeName:  "drone_$0",
	}
	eng := NewEngine([]*ScheduledEvent{ev})
	if err := eng.Resolve(randgen.NewFactory(nil), 100); err != nil {
		t.Fatal(err)
	}

	loc := &fakeLocator{poses: map[string]kinematics.Pose{}}
	firings := eng.Evaluate(5, loc)
	if len(firings) != 1 {
		t.Fatalf("expected 1 firing at t=5, got %d", len(firings))
	}
	if firings[0].NodeName != "drone_0" {
		t.Fatalf("expected $0 bound to occurrence index 0, got %q", firings[0].NodeName)
	}

	if firings := eng.Evaluate(6, loc); len(firings) != 0 {
		t.Fatalf("expected no firing at t=6, got %d", len(firings))
	}

	firings = eng.Evaluate(10, loc)
	if len(firings) != 1 || firings[0].NodeName != "drone_1" {
		t.Fatalf("expected second firing with $0=1, got %+v", firings)
	}
}

func TestEngineNextTriggerTimeSkipsConsumedFires(t *testing.T) {
	ev := &ScheduledEvent{
		Name:    "kill-periodic",
		Trigger: Trigger{Kind: TimeTrigger, TimeFixed: 5, Occurrences: 2},
		Kind:    KillEvent,
		Target:  "robot_0",
	}
	eng := NewEngine([]*ScheduledEvent{ev})
	if err := eng.Resolve(randgen.NewFactory(nil), 100); err != nil {
		t.Fatal(err)
	}
	next, ok := eng.NextTriggerTime(0)
	if !ok || next != 5 {
		t.Fatalf("expected next fire at 5, got %v ok=%v", next, ok)
	}
	eng.Evaluate(5, &fakeLocator{poses: map[string]kinematics.Pose{}})
	next, ok = eng.NextTriggerTime(5)
	if !ok || next != 10 {
		t.Fatalf("expected next fire at 10 after consuming first, got %v ok=%v", next, ok)
	}
}

func TestEngineProximityFiresOnCrossingInward(t *testing.T) {
	ev := &ScheduledEvent{
		Name:    "collision-watch",
		Trigger: Trigger{Kind: ProximityTrigger, Distance: 1.0, Inside: true},
		Kind:    KillEvent,
		Target:  "robot_a",
	}
	eng := NewEngine([]*ScheduledEvent{ev})

	far := &fakeLocator{poses: map[string]kinematics.Pose{
		"robot_a": {X: 0, Y: 0},
		"robot_b": {X: 10, Y: 0},
	}}
	if firings := eng.Evaluate(0, far); len(firings) != 0 {
		t.Fatalf("expected no firing while far apart, got %d", len(firings))
	}

	near := &fakeLocator{poses: map[string]kinematics.Pose{
		"robot_a": {X: 0, Y: 0},
		"robot_b": {X: 0.5, Y: 0},
	}}
	firings := eng.Evaluate(1, near)
	if len(firings) != 1 {
		t.Fatalf("expected 1 firing on inward crossing, got %d", len(firings))
	}

	// holding inside another tick must not re-fire.
	if firings := eng.Evaluate(2, near); len(firings) != 0 {
		t.Fatalf("expected no re-fire while still inside, got %d", len(firings))
	}
}

func TestEngineAreaFiresOnExit(t *testing.T) {
	ev := &ScheduledEvent{
		Name: "leaves-geofence",
		Trigger: Trigger{
			Kind:       AreaTrigger,
			Shape:      Circle,
			Center:     geo.Point2D{X: 0, Y: 0},
			Radius:     5,
			Inside:     false,
		},
		Kind:   KillEvent,
		Target: "robot_0",
	}
	eng := NewEngine([]*ScheduledEvent{ev})

	inside := &fakeLocator{poses: map[string]kinematics.Pose{"robot_0": {X: 1, Y: 0}}}
	if firings := eng.Evaluate(0, inside); len(firings) != 0 {
		t.Fatalf("expected no firing while inside, got %d", len(firings))
	}

	outside := &fakeLocator{poses: map[string]kinematics.Pose{"robot_0": {X: 10, Y: 0}}}
	firings := eng.Evaluate(1, outside)
	if len(firings) != 1 || firings[0].Target != "robot_0" {
		t.Fatalf("expected exit firing for robot_0, got %+v", firings)
	}
}
