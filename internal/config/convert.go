package config

import (
	"fmt"

	"github.com/mescourrou/simba/internal/geo"
	"github.com/mescourrou/simba/internal/node"
	"github.com/mescourrou/simba/internal/randgen"
	"github.com/mescourrou/simba/internal/scenario"
	"github.com/mescourrou/simba/internal/simerrors"
)

// NetworkParams converts a RobotConfig's spatial fields into a
// node.NetworkParams.
func (r RobotConfig) NetworkParams() node.NetworkParams {
	return node.NetworkParams{Range: r.Range, ReceptionDelay: r.ReceptionDelay}
}

// ToScenarioEvents converts every configured scenario event into a
// *scenario.ScheduledEvent and validates $k bindings (spec.md §7
// ScenarioBindingMissing is caught here, at configuration time, not at
// first firing).
func (c *Config) ToScenarioEvents() ([]*scenario.ScheduledEvent, error) {
	events := make([]*scenario.ScheduledEvent, 0, len(c.Scenario))
	for _, ec := range c.Scenario {
		trig, err := ec.Trigger.toTrigger()
		if err != nil {
			return nil, fmt.Errorf("config: scenario event %q: %w", ec.Name, err)
		}
		ev := &scenario.ScheduledEvent{
			Name:            ec.Name,
			TriggeringNodes: ec.TriggeringNodes,
			Trigger:         trig,
		}
		switch ec.Type {
		case "spawn":
			ev.Kind = scenario.SpawnEvent
			ev.ModelName = ec.ModelName
			ev.NodeName = ec.NodeName
		case "kill":
			ev.Kind = scenario.KillEvent
			ev.Target = ec.Target
		default:
			return nil, fmt.Errorf("config: scenario event %q: unknown type %q: %w", ec.Name, ec.Type, simerrors.ErrConfiguration)
		}
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (t TriggerConfig) toTrigger() (scenario.Trigger, error) {
	switch t.Type {
	case "time":
		if t.Time == nil {
			return scenario.Trigger{}, fmt.Errorf("trigger.type=time requires a time block: %w", simerrors.ErrConfiguration)
		}
		trig := scenario.Trigger{Kind: scenario.TimeTrigger, Occurrences: t.Time.Occurrences}
		if t.Time.Fixed != nil {
			trig.TimeFixed = *t.Time.Fixed
		}
		if t.Time.Random != nil {
			trig.TimeIsRandom = true
			trig.TimeVar = t.Time.Random.toVarSpec()
		}
		return trig, nil
	case "proximity":
		if t.Proximity == nil {
			return scenario.Trigger{}, fmt.Errorf("trigger.type=proximity requires a proximity block: %w", simerrors.ErrConfiguration)
		}
		return scenario.Trigger{
			Kind:            scenario.ProximityTrigger,
			ProtectedTarget: t.Proximity.ProtectedTarget,
			Distance:        t.Proximity.Distance,
			Inside:          t.Proximity.Inside,
		}, nil
	case "area":
		if t.Area == nil {
			return scenario.Trigger{}, fmt.Errorf("trigger.type=area requires an area block: %w", simerrors.ErrConfiguration)
		}
		trig := scenario.Trigger{
			Kind:       scenario.AreaTrigger,
			Center:     geo.Point2D{X: t.Area.CenterX, Y: t.Area.CenterY},
			HalfWidth:  t.Area.HalfWidth,
			HalfHeight: t.Area.HalfHeight,
			Radius:     t.Area.Radius,
			Inside:     t.Area.Inside,
		}
		switch t.Area.Shape {
		case "circle":
			trig.Shape = scenario.Circle
		default:
			trig.Shape = scenario.Rect
		}
		return trig, nil
	default:
		return scenario.Trigger{}, fmt.Errorf("trigger.type must be time, proximity or area, got %q: %w", t.Type, simerrors.ErrConfiguration)
	}
}

func (v VarSpecConfig) toVarSpec() randgen.VarSpec {
	spec := randgen.VarSpec{
		Fixed:         v.Fixed,
		UniformLow:    v.UniformLow,
		UniformHigh:   v.UniformHigh,
		NormalMean:    v.NormalMean,
		NormalCov:     v.NormalCov,
		PoissonLambda: v.PoissonLambda,
		ExpRate:       v.ExpRate,
		BernoulliP:    v.BernoulliP,
	}
	switch v.Kind {
	case "uniform":
		spec.Kind = randgen.Uniform
	case "normal":
		spec.Kind = randgen.Normal
	case "poisson":
		spec.Kind = randgen.Poisson
	case "exponential":
		spec.Kind = randgen.Exponential
	case "bernoulli":
		spec.Kind = randgen.Bernoulli
	default:
		spec.Kind = randgen.Fixed
	}
	return spec
}
