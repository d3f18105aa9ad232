// Package node implements SiMBA's generic node state and lifecycle
// (spec.md §4.3): the fixed pipeline of pluggable modules, the
// message-handler chain, and next-time-step reporting. Concrete
// sensor/navigator/controller/physics/state-estimator/fault
// implementations are external plug-ins (spec.md §1); this package
// specifies only the contracts (interfaces) they must satisfy, following
// spec.md §9's "polymorphic over a capability set" design note.
package node

import (
	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/mescourrou/simba/internal/messaging"
	"github.com/mescourrou/simba/internal/randgen"
)

// TimeStepper is implemented by every pipeline module. It reports the
// instant at which the module next wants to run; the node reports the
// minimum over all of its modules (spec.md §4.3).
type TimeStepper interface {
	// NextTimeStep returns the next instant this module wishes to run,
	// and whether it has any further activity at all. A module with no
	// further activity (ok == false) is excluded from the node's min().
	NextTimeStep(currentTime float64) (next float64, ok bool)
}

// MessageHandler is implemented by modules that want first refusal on
// inbound envelopes during the pre_loop_hook stage (spec.md §4.3 step 1).
// The first module in pipeline order whose HandleMessage returns handled
// == true consumes the envelope; returning a non-nil error with handled
// == false signals MessageTypeMismatch and lets the chain continue.
type MessageHandler interface {
	HandleMessage(self *Node, env messaging.Envelope) (handled bool, err error)
}

// ServiceResponder lets a module answer a synchronous service request
// issued by a foreign node's module during the same barrier (spec.md §5,
// e.g. GetRealStateReq against a foreign Physics). The kernel services
// these requests synchronously during the barrier.
type ServiceResponder interface {
	HandleServiceRequest(req any) (resp any, ok bool)
}

// Physics integrates the declared kinematic model forward to t under the
// latest applied Command, optionally perturbed by Faults.
type Physics interface {
	TimeStepper
	UpdateState(t float64, cmd *kinematics.Command) kinematics.State
	State() kinematics.State
}

// Sensor produces raw observations from the current physics state. Faults
// then Filters are applied, in config order, by the node core — not by
// the Sensor itself (spec.md §4.3 step 3).
type Sensor interface {
	TimeStepper
	Name() string
	Sample(t float64, physics kinematics.State) (kinematics.Observation, bool)
}

// Fault is a probabilistic transformation applied to a sensor observation
// or a physics state (spec.md GLOSSARY).
type Fault interface {
	Name() string
	Apply(obs kinematics.Observation, stream *randgen.Stream) kinematics.Observation
}

// Filter is a deterministic predicate or map applied to sensor
// observations after faults (spec.md GLOSSARY).
type Filter interface {
	Name() string
	// Apply returns the (possibly modified) observation and whether it
	// should be kept; returning keep == false prunes the observation.
	Apply(obs kinematics.Observation) (out kinematics.Observation, keep bool)
}

// StateEstimator runs prediction under the last command and correction
// against collected observations, producing a WorldState.
type StateEstimator interface {
	TimeStepper
	Predict(t float64, lastCommand *kinematics.Command)
	Correct(t float64, observations []kinematics.Observation)
	WorldState() kinematics.WorldState
}

// Navigator turns a WorldState into a controller error term.
type Navigator interface {
	TimeStepper
	ComputeError(t float64, ws kinematics.WorldState) kinematics.ControllerError
}

// Controller turns a controller error into a Command conforming to the
// robot's declared model.
type Controller interface {
	TimeStepper
	MakeCommand(err kinematics.ControllerError, t float64) kinematics.Command
}

// SensorConfig binds one Sensor to its configured Faults, Filters and
// send_to destinations (spec.md §3 Observation / §4.3 step 3).
type SensorConfig struct {
	Sensor  Sensor
	Faults  []Fault
	Filters []Filter
	SendTo  []string
}
