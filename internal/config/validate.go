package config

import (
	"fmt"

	"github.com/mescourrou/simba/internal/simerrors"
)

// Validate checks the cross-field invariants spec.md §6/§7 require beyond
// what the strict YAML decode already enforces (unknown fields, type
// mismatches): required fields, save-mode-specific parameters, and name
// uniqueness across the node population. Scenario `$k` binding is
// checked separately once events are converted (see ToScenarioEvents).
func (c *Config) Validate() error {
	if c.MaxTime <= 0 {
		return fmt.Errorf("config: max_time must be positive: %w", simerrors.ErrConfiguration)
	}

	switch c.Results.SaveMode {
	case "", "at_end", "continuous":
	case "batched":
		if c.Results.BatchSize <= 0 {
			return fmt.Errorf("config: results.save_mode=batched requires a positive batch_size: %w", simerrors.ErrConfiguration)
		}
	case "periodic":
		if c.Results.PeriodicDelta <= 0 {
			return fmt.Errorf("config: results.save_mode=periodic requires a positive periodic_delta: %w", simerrors.ErrConfiguration)
		}
	default:
		return fmt.Errorf("config: results.save_mode %q is not one of at_end, continuous, batched, periodic: %w", c.Results.SaveMode, simerrors.ErrConfiguration)
	}

	seen := make(map[string]bool)
	for _, r := range c.Robots {
		if r.Name == "" || r.Type == "" {
			return fmt.Errorf("config: every robot requires name and type: %w", simerrors.ErrConfiguration)
		}
		if seen[r.Name] {
			return fmt.Errorf("config: duplicate node name %q: %w", r.Name, simerrors.ErrConfiguration)
		}
		seen[r.Name] = true
		if r.Range < 0 || r.ReceptionDelay < 0 {
			return fmt.Errorf("config: robot %q: range and reception_delay must be >= 0: %w", r.Name, simerrors.ErrConfiguration)
		}
	}
	for _, u := range c.ComputationUnits {
		if u.Name == "" || u.Type == "" {
			return fmt.Errorf("config: every computation unit requires name and type: %w", simerrors.ErrConfiguration)
		}
		if seen[u.Name] {
			return fmt.Errorf("config: duplicate node name %q: %w", u.Name, simerrors.ErrConfiguration)
		}
		seen[u.Name] = true
	}

	for _, ev := range c.Scenario {
		if ev.Name == "" {
			return fmt.Errorf("config: every scenario event requires a name: %w", simerrors.ErrConfiguration)
		}
		switch ev.Type {
		case "spawn":
			if ev.ModelName == "" || ev.NodeName == "" {
				return fmt.Errorf("config: scenario event %q: spawn requires model_name and node_name: %w", ev.Name, simerrors.ErrConfiguration)
			}
		case "kill":
			if ev.Target == "" {
				return fmt.Errorf("config: scenario event %q: kill requires target: %w", ev.Name, simerrors.ErrConfiguration)
			}
		default:
			return fmt.Errorf("config: scenario event %q: type must be spawn or kill, got %q: %w", ev.Name, ev.Type, simerrors.ErrConfiguration)
		}
		switch ev.Trigger.Type {
		case "time":
			if ev.Trigger.Time == nil {
				return fmt.Errorf("config: scenario event %q: trigger.type=time requires a time block: %w", ev.Name, simerrors.ErrConfiguration)
			}
		case "proximity":
			if ev.Trigger.Proximity == nil {
				return fmt.Errorf("config: scenario event %q: trigger.type=proximity requires a proximity block: %w", ev.Name, simerrors.ErrConfiguration)
			}
		case "area":
			if ev.Trigger.Area == nil {
				return fmt.Errorf("config: scenario event %q: trigger.type=area requires an area block: %w", ev.Name, simerrors.ErrConfiguration)
			}
		default:
			return fmt.Errorf("config: scenario event %q: trigger.type must be time, proximity or area, got %q: %w", ev.Name, ev.Trigger.Type, simerrors.ErrConfiguration)
		}
	}

	return nil
}
