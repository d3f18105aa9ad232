package scenario

import (
	"math"

	"github.com/mescourrou/simba/internal/geo"
	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/mescourrou/simba/internal/randgen"
)

const epsilon = 1e-6

// NodeLocator answers the position/liveness questions Proximity and Area
// triggers need; the kernel's node registry implements it.
type NodeLocator interface {
	RobotPoses() map[string]kinematics.Pose
	Alive(name string) bool
}

// Engine evaluates scenario triggers and emits Spawn/Kill firings (spec.md
// §4.5).
type Engine struct {
	events []*ScheduledEvent
}

// NewEngine returns an engine over the given configured events. Call
// Resolve once before the run starts.
func NewEngine(events []*ScheduledEvent) *Engine {
	return &Engine{events: events}
}

// Resolve draws every Time trigger's random occurrences up front (spec.md
// §4.1 "same config + same seed => bitwise identical records" requires
// this happen exactly once, at schedule time, not lazily per step).
func (e *Engine) Resolve(rand *randgen.Factory, maxTime float64) error {
	for i, ev := range e.events {
		if ev.Trigger.Kind != TimeTrigger {
			continue
		}
		streamName := "scenario/" + ev.Name
		_ = i
		if err := ev.Trigger.resolveTimeFires(rand, streamName, maxTime); err != nil {
			return err
		}
	}
	return nil
}

// NextTriggerTime returns the earliest unconsumed Time-trigger fire
// instant strictly after current, used by the kernel to compute t_next
// (spec.md §4.4 step 1).
func (e *Engine) NextTriggerTime(current float64) (float64, bool) {
	best := math.Inf(1)
	found := false
	for _, ev := range e.events {
		t, ok := ev.Trigger.pendingFireTime()
		if !ok || t <= current+epsilon/2 {
			continue
		}
		if t < best {
			best = t
			found = true
		}
	}
	return best, found
}

// Evaluate fires every Time trigger scheduled for exactly `current`, and
// checks every Proximity/Area trigger against the node positions reported
// by locator, emitting one Firing per crossing (spec.md §4.5).
func (e *Engine) Evaluate(current float64, locator NodeLocator) []Firing {
	var firings []Firing
	poses := locator.RobotPoses()

	for _, ev := range e.events {
		switch ev.Trigger.Kind {
		case TimeTrigger:
			if t, ok := ev.Trigger.pendingFireTime(); ok && math.Abs(t-current) <= epsilon/2 {
				if vars, ok := ev.Trigger.consumeFire(); ok {
					firings = append(firings, resolveFiring(ev, vars))
				}
			}
		case ProximityTrigger:
			firings = append(firings, e.evaluateProximity(ev, poses)...)
		case AreaTrigger:
			firings = append(firings, e.evaluateArea(ev, poses)...)
		}
	}
	return firings
}

func resolveFiring(ev *ScheduledEvent, vars map[string]string) Firing {
	f := Firing{Event: ev, Kind: ev.Kind}
	switch ev.Kind {
	case SpawnEvent:
		f.ModelName = substitute(ev.ModelName, vars)
		f.NodeName = substitute(ev.NodeName, vars)
	case KillEvent:
		f.Target = substitute(ev.Target, vars)
	}
	return f
}

// evaluateProximity implements spec.md §4.5's Proximity trigger: fires
// when any pair of robots (or protected_target against any other)
// crosses the distance threshold. $0 binds to the crossing robot; per
// spec.md §9 Open Question (b), when protected_target itself is the
// "other" side of a pair, $0 binds to the counterpart robot instead.
func (e *Engine) evaluateProximity(ev *ScheduledEvent, poses map[string]kinematics.Pose) []Firing {
	t := &ev.Trigger
	if t.proximityState == nil {
		t.proximityState = make(map[string]bool)
	}
	var firings []Firing

	names := sortedNames(poses)
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := names[i], names[j]
			if t.ProtectedTarget != "" && a != t.ProtectedTarget && b != t.ProtectedTarget {
				continue
			}
			dist := geo.Distance(poses[a].Point(), poses[b].Point())
			within := dist <= t.Distance

			crosser := b
			if t.ProtectedTarget != "" && b == t.ProtectedTarget {
				crosser = a
			}

			key := a + "|" + b
			wasWithin := t.proximityState[key]
			t.proximityState[key] = within

			fired := (t.Inside && within && !wasWithin) || (!t.Inside && !within && wasWithin)
			if fired {
				firings = append(firings, resolveFiring(ev, map[string]string{"$0": crosser}))
			}
		}
	}
	return firings
}

// evaluateArea implements spec.md §4.5's Area trigger: fires when a robot
// crosses the area boundary since the last tick.
func (e *Engine) evaluateArea(ev *ScheduledEvent, poses map[string]kinematics.Pose) []Firing {
	t := &ev.Trigger
	if t.areaState == nil {
		t.areaState = make(map[string]bool)
	}
	var firings []Firing
	for _, name := range sortedNames(poses) {
		inside := t.contains(poses[name].Point())
		was := t.areaState[name]
		t.areaState[name] = inside

		fired := (t.Inside && inside && !was) || (!t.Inside && !inside && was)
		if fired {
			firings = append(firings, resolveFiring(ev, map[string]string{"$0": name}))
		}
	}
	return firings
}

func sortedNames(m map[string]kinematics.Pose) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	// simple insertion sort: scenario node counts are small and this
	// keeps evaluation order deterministic without importing sort twice
	// across the package.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}
