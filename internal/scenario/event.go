package scenario

import (
	"fmt"
	"strings"

	"github.com/mescourrou/simba/internal/simerrors"
)

// EventKind discriminates Spawn/Kill (spec.md §4.5).
type EventKind int

const (
	SpawnEvent EventKind = iota
	KillEvent
)

// ScheduledEvent is one configured (trigger, event type) tuple (spec.md
// §3).
type ScheduledEvent struct {
	Name            string
	TriggeringNodes []string // empty means "any node"
	Trigger         Trigger
	Kind            EventKind

	// Spawn fields: ModelName/NodeName may contain $k tokens substituted
	// at firing time.
	ModelName string
	NodeName  string

	// Kill fields.
	Target string
}

// Validate checks that every $k token this event references is bound by
// its trigger (ScenarioBindingMissing, spec.md §7), at configuration
// time.
func (e *ScheduledEvent) Validate() error {
	if err := e.Trigger.Validate(); err != nil {
		return err
	}
	bound := e.Trigger.boundVariables()
	check := func(field, value string) error {
		for _, tok := range extractTokens(value) {
			if !bound[tok] {
				return fmt.Errorf("scenario event %q field %s references unbound variable %s: %w", e.Name, field, tok, simerrors.ErrScenarioBindingMissing)
			}
		}
		return nil
	}
	switch e.Kind {
	case SpawnEvent:
		if e.ModelName == "" || e.NodeName == "" {
			return fmt.Errorf("scenario event %q: spawn requires model_name and node_name: %w", e.Name, simerrors.ErrConfiguration)
		}
		if err := check("node_name", e.NodeName); err != nil {
			return err
		}
		if err := check("model_name", e.ModelName); err != nil {
			return err
		}
	case KillEvent:
		if e.Target == "" {
			return fmt.Errorf("scenario event %q: kill requires target: %w", e.Name, simerrors.ErrConfiguration)
		}
		if err := check("target", e.Target); err != nil {
			return err
		}
	default:
		return fmt.Errorf("scenario event %q: unknown event kind: %w", e.Name, simerrors.ErrConfiguration)
	}
	return nil
}

// extractTokens finds every "$<digits>" substring in s.
func extractTokens(s string) []string {
	var out []string
	for i := 0; i < len(s); i++ {
		if s[i] != '$' {
			continue
		}
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j > i+1 {
			out = append(out, s[i:j])
		}
	}
	return out
}

// substitute replaces every bound $k token in s with its value.
func substitute(s string, vars map[string]string) string {
	for tok, val := range vars {
		s = strings.ReplaceAll(s, tok, val)
	}
	return s
}

// Firing is a resolved, ready-to-apply occurrence of a ScheduledEvent.
type Firing struct {
	Event     *ScheduledEvent
	Kind      EventKind
	ModelName string
	NodeName  string
	Target    string
}
