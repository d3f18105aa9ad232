// Package kinematics defines the value types shared by every pipeline
// stage: Pose/State, Command variants and WorldState (spec.md §3).
package kinematics

import "github.com/mescourrou/simba/internal/geo"

// Pose is a 2-D robot pose with heading normalized to (-pi, pi].
type Pose struct {
	X     float64
	Y     float64
	Theta float64
}

// Point returns the pose's planar position, for range/area checks.
func (p Pose) Point() geo.Point2D { return geo.Point2D{X: p.X, Y: p.Y} }

// Normalized returns a copy of p with Theta wrapped into (-pi, pi].
func (p Pose) Normalized() Pose {
	p.Theta = geo.NormalizeAngle(p.Theta)
	return p
}

// Velocity is the robot's body-frame velocity: longitudinal, lateral and
// angular rate.
type Velocity struct {
	Linear  float64
	Lateral float64
	Angular float64
}

// State is a robot's full kinematic state as produced by Physics.
type State struct {
	Pose     Pose
	Velocity Velocity
}

// CommandKind discriminates the two supported robot models.
type CommandKind int

const (
	// Unicycle commands a differential-drive robot via independent wheel
	// speeds.
	Unicycle CommandKind = iota
	// Holonomic commands a robot via body-frame linear/lateral/angular
	// velocity setpoints.
	Holonomic
)

// Command is the controller's output, handed back to Physics for the next
// tick. Exactly one of the two variants is meaningful, selected by Kind.
type Command struct {
	Kind CommandKind

	// Unicycle fields.
	LeftWheelSpeed  float64
	RightWheelSpeed float64

	// Holonomic fields.
	Linear  float64
	Lateral float64
	Angular float64
}

// Magnitude returns a scalar measure of command "effort", used by
// end-to-end tests to assert that a converged controller's output decays
// toward zero.
func (c Command) Magnitude() float64 {
	switch c.Kind {
	case Unicycle:
		return absf(c.LeftWheelSpeed) + absf(c.RightWheelSpeed)
	case Holonomic:
		return absf(c.Linear) + absf(c.Lateral) + absf(c.Angular)
	default:
		return 0
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ControllerError is the navigator's output consumed by the controller.
type ControllerError struct {
	Lateral      float64
	Longitudinal float64
	Theta        float64
	Velocity     float64
}

// Landmark is a static environment feature, as loaded from a landmark map
// file (spec.md §6). A zero Width and Height is a point landmark, which
// can never occlude another landmark; a planar landmark (both nonzero)
// occludes a lower landmark behind it along a sightline unless XRay is
// set (spec.md §6 "planar landmarks occlude lower-height landmarks
// behind them when xray=false").
type Landmark struct {
	ID     string
	Pose   Pose
	Width  float64
	Height float64
	XRay   bool
}

// WorldState is a state estimator's most recent estimate of the world, as
// consumed by a Navigator.
type WorldState struct {
	// Self is the estimator's own robot state estimate; nil for a
	// ComputationUnit that only tracks foreign state.
	Self *State
	// Foreign holds the most recent estimate of every other tracked node,
	// keyed by node name.
	Foreign map[string]State
	// Landmarks holds the most recent estimate of every tracked landmark,
	// keyed by landmark ID.
	Landmarks map[string]Landmark
	// Occupancy is an optional occupancy grid estimate; nil when unused.
	Occupancy *OccupancyGrid
}

// NewWorldState returns a WorldState with initialized maps.
func NewWorldState() WorldState {
	return WorldState{
		Foreign:   make(map[string]State),
		Landmarks: make(map[string]Landmark),
	}
}

// OccupancyGrid is a coarse 2-D occupancy estimate.
type OccupancyGrid struct {
	OriginX, OriginY float64
	CellSize         float64
	Width, Height     int
	Cells            []float64 // row-major occupancy probability in [0,1]
}

// At returns the occupancy probability of the cell containing p, and
// whether p falls within the grid.
func (g *OccupancyGrid) At(p geo.Point2D) (float64, bool) {
	if g == nil || g.CellSize <= 0 {
		return 0, false
	}
	col := int((p.X - g.OriginX) / g.CellSize)
	row := int((p.Y - g.OriginY) / g.CellSize)
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return 0, false
	}
	return g.Cells[row*g.Width+col], true
}

// ObservationKind enumerates the typed sensor payload families.
type ObservationKind int

const (
	LandmarkObservation ObservationKind = iota
	RobotObservation
	SpeedObservation
	DisplacementObservation
	GNSSObservation
	ExternalObservation
)

// Observation is a sensor's reading at a point in time, with applied-fault
// provenance retained for record emission and debugging.
type Observation struct {
	SensorName     string
	Observer       string
	Time           float64
	Kind           ObservationKind
	Payload        any
	AppliedFaults  []string
}
