// Package scenario implements SiMBA's scenario engine (spec.md §4.5):
// time/proximity/area triggers that mutate the node population at
// runtime by emitting Spawn/Kill events.
package scenario

import (
	"fmt"
	"sort"

	"github.com/mescourrou/simba/internal/geo"
	"github.com/mescourrou/simba/internal/randgen"
	"github.com/mescourrou/simba/internal/simerrors"
)

// TriggerKind discriminates the three trigger variants (spec.md §4.5).
type TriggerKind int

const (
	TimeTrigger TriggerKind = iota
	ProximityTrigger
	AreaTrigger
)

// AreaShape discriminates the two supported Area trigger shapes.
type AreaShape int

const (
	Rect AreaShape = iota
	Circle
)

// Trigger is the firing condition of one scheduled event.
type Trigger struct {
	Kind TriggerKind

	// Time trigger fields.
	TimeFixed      float64
	TimeIsRandom   bool
	TimeVar        randgen.VarSpec
	Occurrences    int // 0 means "repeat with period TimeFixed until max_time"
	resolvedFires  []float64
	nextFireIndex  int

	// Proximity trigger fields.
	ProtectedTarget string // empty = any pair
	Distance        float64
	Inside          bool
	proximityState  map[string]bool // "a|b" node pair -> currently within threshold

	// Area trigger fields. Inside is shared with the Proximity trigger:
	// true fires on entry, false fires on exit.
	Shape      AreaShape
	Center     geo.Point2D
	HalfWidth  float64 // Rect
	HalfHeight float64 // Rect
	Radius     float64 // Circle
	areaState  map[string]bool
}

// resolveTimeFires computes every absolute instant a Time trigger fires,
// per spec.md §4.5: a fixed period with N>=1 occurrences fires at k*time
// for k in [1..N]; occurrences==0 repeats until maxTime; a random time
// draws `Occurrences` samples at schedule time (an N-dimensional
// distribution yields Occurrences*N scheduled instants).
func (t *Trigger) resolveTimeFires(rand *randgen.Factory, streamName string, maxTime float64) error {
	if t.Kind != TimeTrigger {
		return nil
	}
	if !t.TimeIsRandom {
		if t.Occurrences == 0 {
			for k := 1; ; k++ {
				instant := float64(k) * t.TimeFixed
				if instant > maxTime {
					break
				}
				t.resolvedFires = append(t.resolvedFires, instant)
			}
			return nil
		}
		for k := 1; k <= t.Occurrences; k++ {
			t.resolvedFires = append(t.resolvedFires, float64(k)*t.TimeFixed)
		}
		return nil
	}

	stream, err := rand.Stream(streamName)
	if err != nil {
		return err
	}
	n := t.TimeVar.Dimension()
	for set := 0; set < t.Occurrences; set++ {
		values, err := stream.Sample(t.TimeVar)
		if err != nil {
			return fmt.Errorf("scenario: sampling time trigger: %w", err)
		}
		if len(values) != n {
			return fmt.Errorf("scenario: time trigger distribution returned %d values, want %d", len(values), n)
		}
		t.resolvedFires = append(t.resolvedFires, values...)
	}
	sort.Float64s(t.resolvedFires)
	return nil
}

// pendingFireTime returns the earliest unconsumed Time-trigger fire
// instant, if any.
func (t *Trigger) pendingFireTime() (float64, bool) {
	if t.Kind != TimeTrigger || t.nextFireIndex >= len(t.resolvedFires) {
		return 0, false
	}
	return t.resolvedFires[t.nextFireIndex], true
}

// consumeFire advances past the current fire, binding $0 to its
// occurrence index (spec.md §4.5 "binds $0 to the occurrence index").
func (t *Trigger) consumeFire() (vars map[string]string, ok bool) {
	if t.Kind != TimeTrigger || t.nextFireIndex >= len(t.resolvedFires) {
		return nil, false
	}
	idx := t.nextFireIndex
	t.nextFireIndex++
	return map[string]string{"$0": fmt.Sprintf("%d", idx)}, true
}

// boundVariables returns the set of $k tokens this trigger can bind,
// used by validation to catch ScenarioBindingMissing ahead of time.
func (t *Trigger) boundVariables() map[string]bool {
	switch t.Kind {
	case TimeTrigger, ProximityTrigger, AreaTrigger:
		return map[string]bool{"$0": true}
	default:
		return nil
	}
}

// Validate checks static trigger configuration.
func (t *Trigger) Validate() error {
	switch t.Kind {
	case TimeTrigger:
		if !t.TimeIsRandom && t.TimeFixed <= 0 {
			return fmt.Errorf("scenario: time trigger requires a positive fixed time: %w", simerrors.ErrConfiguration)
		}
		if t.TimeIsRandom && t.Occurrences <= 0 {
			return fmt.Errorf("scenario: random time trigger requires occurrences > 0: %w", simerrors.ErrConfiguration)
		}
	case ProximityTrigger:
		if t.Distance < 0 {
			return fmt.Errorf("scenario: proximity trigger distance must be >= 0: %w", simerrors.ErrConfiguration)
		}
	case AreaTrigger:
		if t.Shape == Circle && t.Radius <= 0 {
			return fmt.Errorf("scenario: circle area trigger requires radius > 0: %w", simerrors.ErrConfiguration)
		}
		if t.Shape == Rect && (t.HalfWidth <= 0 || t.HalfHeight <= 0) {
			return fmt.Errorf("scenario: rect area trigger requires positive half extents: %w", simerrors.ErrConfiguration)
		}
	default:
		return fmt.Errorf("scenario: unknown trigger kind: %w", simerrors.ErrConfiguration)
	}
	return nil
}

func (t *Trigger) contains(p geo.Point2D) bool {
	switch t.Shape {
	case Rect:
		return geo.InRect(p, t.Center, t.HalfWidth, t.HalfHeight)
	case Circle:
		return geo.InCircle(p, t.Center, t.Radius)
	default:
		return false
	}
}
