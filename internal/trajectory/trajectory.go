// Package trajectory loads SiMBA's trajectory file (spec.md §6): a
// 2-D point list plus a do_loop boolean. No other package of the
// simulator imports it: node world state carries no trajectory, and
// Scenario Area triggers take only a rectangle or a circle.
package trajectory

import (
	"fmt"
	"os"

	"github.com/mescourrou/simba/internal/geo"
	"github.com/mescourrou/simba/internal/simerrors"
	"gopkg.in/yaml.v3"
)

type pointDoc struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type trajectoryDoc struct {
	DoLoop bool       `yaml:"do_loop"`
	Points []pointDoc `yaml:"points"`
}

// Trajectory is an ordered list of 2-D points, optionally looping back
// to the first point after the last.
type Trajectory struct {
	Points []geo.Point2D
	DoLoop bool
}

// Load reads a trajectory file.
func Load(path string) (*Trajectory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trajectory: reading %s: %w", path, simerrors.ErrConfiguration)
	}

	var doc trajectoryDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("trajectory: parsing %s: %w", path, simerrors.ErrConfiguration)
	}
	if len(doc.Points) == 0 {
		return nil, fmt.Errorf("trajectory: %s has no points: %w", path, simerrors.ErrConfiguration)
	}

	t := &Trajectory{DoLoop: doc.DoLoop, Points: make([]geo.Point2D, 0, len(doc.Points))}
	for _, p := range doc.Points {
		t.Points = append(t.Points, geo.Point2D{X: p.X, Y: p.Y})
	}
	return t, nil
}

// At returns the point at index, wrapping around when DoLoop is set.
// The second return is false once index runs past the end of a
// non-looping trajectory.
func (t *Trajectory) At(index int) (geo.Point2D, bool) {
	if len(t.Points) == 0 {
		return geo.Point2D{}, false
	}
	if index < 0 {
		return geo.Point2D{}, false
	}
	if t.DoLoop {
		return t.Points[index%len(t.Points)], true
	}
	if index >= len(t.Points) {
		return geo.Point2D{}, false
	}
	return t.Points[index], true
}

// Len returns the number of points in the trajectory.
func (t *Trajectory) Len() int { return len(t.Points) }
