package node

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/mescourrou/simba/internal/messaging"
	"github.com/mescourrou/simba/internal/simerrors"
)

// Role discriminates the two node kinds (spec.md §3).
type Role int

const (
	Robot Role = iota
	ComputationUnit
)

func (r Role) String() string {
	if r == Robot {
		return "robot"
	}
	return "computation_unit"
}

// NetworkParams holds a physical node's spatial communication bounds
// (spec.md §3). Range == 0 means unlimited.
type NetworkParams struct {
	Range          float64
	ReceptionDelay float64
}

// Node is a robot or computation unit: the owner of its pipeline modules
// and its letter box (spec.md §3 Ownership). Modules receive *Node as an
// argument on every call rather than holding a long-lived reference to it
// (spec.md §9's cyclic-reference resolution).
type Node struct {
	ID     uuid.UUID
	Name   string
	Role   Role
	Labels []string
	Alive  bool

	Network NetworkParams

	Physics    Physics
	Sensors    []SensorConfig
	Estimators []StateEstimator
	Navigator  Navigator
	Controller Controller

	LetterBox *messaging.LetterBox

	// TimeAnalysis enables per-stage StageTiming records for the
	// time_analysis trace/CSV export (SPEC_FULL.md §8).
	TimeAnalysis bool

	lastCommand *kinematics.Command
	plan        schedule
}

// New constructs a node in the Alive state, minting a fresh identity
// (spec.md §7 "Spawn ... registers it before the next kernel step" — the
// ID lets a respawned node reusing a name never collide with stale
// records from a prior incarnation).
func New(name string, role Role, box *messaging.LetterBox) *Node {
	return &Node{
		ID:        uuid.New(),
		Name:      name,
		Role:      role,
		Alive:     true,
		LetterBox: box,
	}
}

// Validate checks the role/pipeline completeness invariant (spec.md §3):
// a Robot has all five pipeline modules, a ComputationUnit has only state
// estimators.
func (n *Node) Validate() error {
	switch n.Role {
	case Robot:
		if n.Physics == nil || n.Navigator == nil || n.Controller == nil {
			return fmt.Errorf("node %q: robot missing a required pipeline module: %w", n.Name, simerrors.ErrConfiguration)
		}
		if len(n.Estimators) == 0 {
			return fmt.Errorf("node %q: robot has no state estimator: %w", n.Name, simerrors.ErrConfiguration)
		}
	case ComputationUnit:
		if n.Physics != nil || n.Navigator != nil || n.Controller != nil || len(n.Sensors) > 0 {
			return fmt.Errorf("node %q: computation unit must only have state estimators: %w", n.Name, simerrors.ErrConfiguration)
		}
		if len(n.Estimators) == 0 {
			return fmt.Errorf("node %q: computation unit has no state estimator: %w", n.Name, simerrors.ErrConfiguration)
		}
	default:
		return fmt.Errorf("node %q: unknown role: %w", n.Name, simerrors.ErrConfiguration)
	}
	return nil
}

// IsPhysical reports whether this node is subject to spatial range gating
// (spec.md §4.2 rule 2 — only Robots are).
func (n *Node) IsPhysical() bool { return n.Role == Robot }

// Pose returns the node's current physics pose, if it has Physics.
func (n *Node) Pose() (kinematics.Pose, bool) {
	if n.Physics == nil {
		return kinematics.Pose{}, false
	}
	return n.Physics.State().Pose, true
}

// LastCommand returns the command Controller produced on its most recent
// tick, to be applied by Physics on the next one (spec.md §4.3 step 6).
func (n *Node) LastCommand() *kinematics.Command { return n.lastCommand }

// SetLastCommand stores the command Physics should apply on its next
// UpdateState call.
func (n *Node) SetLastCommand(cmd kinematics.Command) { n.lastCommand = &cmd }

// Kill detaches the node: spec.md §3 Lifecycle requires its remaining
// scheduled activity be discarded, which the kernel enforces by no longer
// calling Tick on a node whose Alive flag is false.
func (n *Node) Kill() { n.Alive = false }
