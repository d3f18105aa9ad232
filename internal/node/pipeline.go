package node

import (
	"fmt"
	"math"
	"time"

	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/mescourrou/simba/internal/messaging"
	"github.com/mescourrou/simba/internal/randgen"
	"github.com/mescourrou/simba/internal/record"
	"github.com/mescourrou/simba/internal/simerrors"
	"github.com/mescourrou/simba/internal/telemetry/trace"
)

// epsilon is the fixed time-rounding precision from spec.md §3.
const epsilon = 1e-6

// TickResult is everything a node's tick produced: records to append to
// the store and publications staged for the bus to merge at the barrier
// end (spec.md §5).
type TickResult struct {
	Records      []record.Record
	Publications []messaging.Publication

	// KillRequested is set when a drained envelope carried Flags.Kill
	// (spec.md §6 /simba/command/<name>). Detachment itself happens
	// between kernel steps (spec.md §3 Lifecycle), so the kernel acts on
	// this after the barrier merge rather than mid-tick.
	KillRequested bool
}

// schedule caches each module's next-time-step query so that Tick later
// knows, without re-querying, which modules actually fire at the instant
// the kernel chose to dispatch.
type schedule struct {
	physics    float64
	sensors    map[string]float64
	estimators []float64
	navigator  float64
	controller float64
	mailbox    float64
	haveAny    bool
}

// NextTimeStep reports the earliest instant at which this node next wants
// to run: the minimum over every pipeline module's own NextTimeStep and
// any letter-box envelope with delivery_time <= maxTime (spec.md §4.3).
//
// A module reporting a value that is not strictly greater than
// currentTime is a plug-in bug (TimeRegression); a letter-box envelope
// whose delivery time is <= currentTime is instead nudged to
// currentTime+epsilon, resolving the same-instant zero-delay edge case
// spec.md §9 flags as an open question without violating the strict
// monotonicity invariant.
func (n *Node) NextTimeStep(currentTime, maxTime float64) (float64, bool, error) {
	sch := schedule{sensors: make(map[string]float64)}
	best := math.Inf(1)

	consider := func(label string, next float64, ok bool) error {
		if !ok {
			return nil
		}
		if next <= currentTime+epsilon/2 {
			return fmt.Errorf("node %q module %s reported next_time_step %.9f <= current %.9f: %w", n.Name, label, next, currentTime, simerrors.ErrTimeRegression)
		}
		if next < best {
			best = next
		}
		sch.haveAny = true
		return nil
	}

	if n.Physics != nil {
		next, ok := n.Physics.NextTimeStep(currentTime)
		if err := consider("physics", next, ok); err != nil {
			return 0, false, err
		}
		sch.physics = next
	}
	for _, sc := range n.Sensors {
		next, ok := sc.Sensor.NextTimeStep(currentTime)
		if err := consider("sensor:"+sc.Sensor.Name(), next, ok); err != nil {
			return 0, false, err
		}
		if ok {
			sch.sensors[sc.Sensor.Name()] = next
		}
	}
	sch.estimators = make([]float64, len(n.Estimators))
	for i, est := range n.Estimators {
		next, ok := est.NextTimeStep(currentTime)
		if err := consider(fmt.Sprintf("estimator:%d", i), next, ok); err != nil {
			return 0, false, err
		}
		sch.estimators[i] = next
	}
	if n.Navigator != nil {
		next, ok := n.Navigator.NextTimeStep(currentTime)
		if err := consider("navigator", next, ok); err != nil {
			return 0, false, err
		}
		sch.navigator = next
	}
	if n.Controller != nil {
		next, ok := n.Controller.NextTimeStep(currentTime)
		if err := consider("controller", next, ok); err != nil {
			return 0, false, err
		}
		sch.controller = next
	}

	if n.LetterBox != nil {
		if dt, ok := n.LetterBox.PeekDeliveryTime(); ok && dt <= maxTime {
			effective := dt
			if effective <= currentTime+epsilon/2 {
				effective = currentTime + epsilon
			}
			sch.mailbox = effective
			sch.haveAny = true
			if effective < best {
				best = effective
			}
		}
	}

	n.plan = sch
	if !sch.haveAny || best > maxTime {
		return best, sch.haveAny, nil
	}
	return best, true, nil
}

// Tick advances the node to t, running pre_loop_hook, Physics, scheduled
// Sensors, the State Estimator(s), Navigator and Controller, in that
// fixed order (spec.md §4.3). For ComputationUnits, only pre_loop_hook and
// the estimators run.
func (n *Node) Tick(t float64, stream FaultStreamFunc) (TickResult, error) {
	var res TickResult

	envs, err := n.preLoopHook(t, &res)
	if err != nil {
		return res, err
	}
	observations := collectObservations(envs)

	if n.Role == ComputationUnit {
		n.tickEstimators(t, observations, &res)
		return res, nil
	}

	if n.Physics != nil && n.isDue(n.plan.physics, t) {
		start := time.Now()
		state := n.Physics.UpdateState(t, n.lastCommand)
		n.stageTiming(t, record.StagePhysics, start, &res)
		res.Records = append(res.Records, record.Record{Node: n.Name, Time: t, Stage: record.StagePhysics, Payload: state})
	}

	sensorsStart := time.Now()
	n.tickSensors(t, stream, &res)
	n.stageTiming(t, record.StageSensors, sensorsStart, &res)

	estimatorsStart := time.Now()
	n.tickEstimators(t, observations, &res)
	n.stageTiming(t, record.StageEstimator, estimatorsStart, &res)

	var ws kinematics.WorldState
	if len(n.Estimators) > 0 {
		ws = n.Estimators[0].WorldState()
	} else {
		ws = kinematics.NewWorldState()
	}

	if n.Navigator != nil {
		navStart := time.Now()
		navErr := n.Navigator.ComputeError(t, ws)
		n.stageTiming(t, record.StageNavigator, navStart, &res)
		res.Records = append(res.Records, record.Record{Node: n.Name, Time: t, Stage: record.StageNavigator, Payload: navErr})

		if n.Controller != nil {
			ctrlStart := time.Now()
			cmd := n.Controller.MakeCommand(navErr, t)
			n.stageTiming(t, record.StageController, ctrlStart, &res)
			n.SetLastCommand(cmd)
			res.Records = append(res.Records, record.Record{Node: n.Name, Time: t, Stage: record.StageController, Payload: cmd})
		}
	}

	return res, nil
}

// stageTiming appends a StageTiming record measuring the wall-clock cost
// of one pipeline stage, when TimeAnalysis is enabled (SPEC_FULL.md §8).
func (n *Node) stageTiming(t float64, stage record.Stage, start time.Time, res *TickResult) {
	if !n.TimeAnalysis {
		return
	}
	res.Records = append(res.Records, record.Record{
		Node:  n.Name,
		Time:  t,
		Stage: record.StageTiming,
		Payload: trace.Span{
			Node:    n.Name,
			Stage:   string(stage),
			Seconds: time.Since(start).Seconds(),
		},
	})
}

func (n *Node) isDue(planned, t float64) bool {
	return planned != 0 && math.Abs(planned-t) <= epsilon/2
}

// FaultStreamFunc resolves the named random stream a Fault plug-in should
// draw from, keeping the node core decoupled from the randomness
// factory's lifetime.
type FaultStreamFunc func(streamName string) (*randgen.Stream, error)

func (n *Node) preLoopHook(t float64, res *TickResult) ([]messaging.Envelope, error) {
	if n.LetterBox == nil {
		return nil, nil
	}
	envs := n.LetterBox.DrainUpTo(t)
	if len(envs) == 0 {
		return nil, nil
	}
	handlers := n.handlerChain()
	for _, env := range envs {
		handled := false
		if env.Flags.Kill {
			res.KillRequested = true
			handled = true
		} else {
			for _, h := range handlers {
				ok, err := h.HandleMessage(n, env)
				if err != nil {
					continue // MessageTypeMismatch: keep walking the chain
				}
				if ok {
					handled = true
					break
				}
			}
		}
		res.Records = append(res.Records, record.Record{
			Node:  n.Name,
			Time:  t,
			Stage: record.StagePreLoop,
			Payload: preLoopRecord{
				Envelope: env,
				Handled:  handled,
			},
		})
	}
	return envs, nil
}

// collectObservations extracts every drained envelope carrying an
// Observation payload (spec.md §4.3 step 4 "upon collected observations
// matching t, runs correction"), in drain order.
func collectObservations(envs []messaging.Envelope) []kinematics.Observation {
	var obs []kinematics.Observation
	for _, env := range envs {
		if o, ok := env.Payload.(kinematics.Observation); ok {
			obs = append(obs, o)
		}
	}
	return obs
}

// preLoopRecord documents one drained envelope's handling outcome.
type preLoopRecord struct {
	Envelope messaging.Envelope
	Handled  bool
}

func (n *Node) handlerChain() []MessageHandler {
	var chain []MessageHandler
	if h, ok := n.Physics.(MessageHandler); ok && n.Physics != nil {
		chain = append(chain, h)
	}
	for _, sc := range n.Sensors {
		if h, ok := sc.Sensor.(MessageHandler); ok {
			chain = append(chain, h)
		}
	}
	for _, est := range n.Estimators {
		if h, ok := est.(MessageHandler); ok {
			chain = append(chain, h)
		}
	}
	if h, ok := n.Navigator.(MessageHandler); ok && n.Navigator != nil {
		chain = append(chain, h)
	}
	if h, ok := n.Controller.(MessageHandler); ok && n.Controller != nil {
		chain = append(chain, h)
	}
	return chain
}

func (n *Node) tickSensors(t float64, streamFor FaultStreamFunc, res *TickResult) {
	for _, sc := range n.Sensors {
		if !n.isDue(n.plan.sensors[sc.Sensor.Name()], t) {
			continue
		}
		state := kinematics.State{}
		if n.Physics != nil {
			state = n.Physics.State()
		}
		obs, ok := sc.Sensor.Sample(t, state)
		if !ok {
			continue
		}
		for _, flt := range sc.Faults {
			var stream *randgen.Stream
			if streamFor != nil {
				stream, _ = streamFor(n.Name + "/" + sc.Sensor.Name() + "/" + flt.Name())
			}
			obs = flt.Apply(obs, stream)
		}
		keep := true
		for _, f := range sc.Filters {
			obs, keep = f.Apply(obs)
			if !keep {
				break
			}
		}
		res.Records = append(res.Records, record.Record{Node: n.Name, Time: t, Stage: record.StageSensors, Payload: obs})
		if !keep {
			continue
		}

		res.Publications = append(res.Publications, messaging.Publication{
			Origin:  n.Name,
			Topic:   messaging.ObservationsTopic(n.Name),
			Payload: obs,
			Time:    t,
		})
		for _, dest := range sc.SendTo {
			res.Publications = append(res.Publications, messaging.Publication{
				Origin:  n.Name,
				Topic:   messaging.ObservationsTopic(dest),
				Payload: obs,
				Time:    t,
			})
		}
	}
}

func (n *Node) tickEstimators(t float64, observations []kinematics.Observation, res *TickResult) {
	for i, est := range n.Estimators {
		planned := 0.0
		if i < len(n.plan.estimators) {
			planned = n.plan.estimators[i]
		}
		if !n.isDue(planned, t) {
			continue
		}
		est.Predict(t, n.lastCommand)
		est.Correct(t, observations)
		ws := est.WorldState()
		res.Records = append(res.Records, record.Record{Node: n.Name, Time: t, Stage: record.StageEstimator, Payload: ws})
	}
}
