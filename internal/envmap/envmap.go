// Package envmap loads SiMBA's landmark map file (spec.md §6) and
// answers occlusion queries against it: concrete sensor plug-ins are out
// of scope (spec.md §1), but the map itself and its visibility query are
// in scope as a loaded, queryable entity (SPEC_FULL.md §8).
package envmap

import (
	"fmt"
	"math"
	"os"

	"github.com/mescourrou/simba/internal/geo"
	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/mescourrou/simba/internal/simerrors"
	"gopkg.in/yaml.v3"
)

// landmarkDoc is the YAML shape of one landmark map file entry, matching
// internal/config's dual-tagged-struct convention (plain yaml tags
// suffice here since the map is loaded directly via yaml.v3, not viper).
type landmarkDoc struct {
	ID     string  `yaml:"id"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Theta  float64 `yaml:"theta"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	XRay   bool    `yaml:"xray"`
}

// Map is the loaded set of static landmarks for one run.
type Map struct {
	landmarks map[string]kinematics.Landmark
	order     []string
}

// Load reads a landmark map file (spec.md §6 "environment.map_path").
func Load(path string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("envmap: reading %s: %w", path, simerrors.ErrConfiguration)
	}

	var docs []landmarkDoc
	if err := yaml.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("envmap: parsing %s: %w", path, simerrors.ErrConfiguration)
	}

	m := &Map{landmarks: make(map[string]kinematics.Landmark, len(docs))}
	for _, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("envmap: %s has a landmark with no id: %w", path, simerrors.ErrConfiguration)
		}
		if _, dup := m.landmarks[d.ID]; dup {
			return nil, fmt.Errorf("envmap: %s has duplicate landmark id %q: %w", path, d.ID, simerrors.ErrConfiguration)
		}
		lm := kinematics.Landmark{
			ID:     d.ID,
			Pose:   kinematics.Pose{X: d.X, Y: d.Y, Theta: d.Theta},
			Width:  d.Width,
			Height: d.Height,
			XRay:   d.XRay,
		}
		m.landmarks[d.ID] = lm
		m.order = append(m.order, d.ID)
	}
	return m, nil
}

// Landmark returns the named landmark, if present.
func (m *Map) Landmark(id string) (kinematics.Landmark, bool) {
	lm, ok := m.landmarks[id]
	return lm, ok
}

// Landmarks returns every loaded landmark, in file order.
func (m *Map) Landmarks() []kinematics.Landmark {
	out := make([]kinematics.Landmark, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.landmarks[id])
	}
	return out
}

// isPlanar reports whether a landmark has a footprint at all: a point
// landmark (Width == 0) can never occlude anything (spec.md §6).
func isPlanar(lm kinematics.Landmark) bool {
	return lm.Width > 0
}

// Visible reports whether landmarkID is visible from observerPose: true
// unless some other planar, non-xray landmark with greater height lies
// on the sightline between the observer and the target.
func (m *Map) Visible(observerPose kinematics.Pose, landmarkID string) bool {
	target, ok := m.landmarks[landmarkID]
	if !ok {
		return false
	}

	observer := observerPose.Point()
	dest := target.Pose.Point()
	for _, id := range m.order {
		if id == landmarkID {
			continue
		}
		blocker := m.landmarks[id]
		if !isPlanar(blocker) || blocker.XRay {
			continue
		}
		if blocker.Height <= target.Height {
			continue
		}
		if onSightline(observer, dest, blocker.Pose.Point(), blocker.Width/2) {
			return false
		}
	}
	return true
}

// onSightline reports whether point p lies within radius of the segment
// a-b, strictly between the endpoints (exclusive), the way a planar
// obstacle between an observer and a target blocks the view.
func onSightline(a, b, p geo.Point2D, radius float64) bool {
	abx, aby := b.X-a.X, b.Y-a.Y
	length2 := abx*abx + aby*aby
	if length2 == 0 {
		return false
	}
	apx, apy := p.X-a.X, p.Y-a.Y
	frac := (apx*abx + apy*aby) / length2
	if frac <= 0 || frac >= 1 {
		return false
	}
	projX, projY := a.X+frac*abx, a.Y+frac*aby
	dx, dy := p.X-projX, p.Y-projY
	return math.Sqrt(dx*dx+dy*dy) <= radius
}
