package node

import (
	"testing"

	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/mescourrou/simba/internal/messaging"
	"github.com/mescourrou/simba/internal/simerrors"
	"github.com/stretchr/testify/require"
)

type fakePhysics struct {
	state   kinematics.State
	nextDt  float64
	applied *kinematics.Command
}

func (p *fakePhysics) NextTimeStep(current float64) (float64, bool) { return current + p.nextDt, true }
func (p *fakePhysics) UpdateState(t float64, cmd *kinematics.Command) kinematics.State {
	p.applied = cmd
	p.state.Pose.X += 1
	return p.state
}
func (p *fakePhysics) State() kinematics.State { return p.state }

type fakeNavigator struct{ nextDt float64 }

func (f *fakeNavigator) NextTimeStep(current float64) (float64, bool) { return current + f.nextDt, true }
func (f *fakeNavigator) ComputeError(t float64, ws kinematics.WorldState) kinematics.ControllerError {
	return kinematics.ControllerError{Longitudinal: 1}
}

type fakeController struct{ nextDt float64 }

func (f *fakeController) NextTimeStep(current float64) (float64, bool) { return current + f.nextDt, true }
func (f *fakeController) MakeCommand(err kinematics.ControllerError, t float64) kinematics.Command {
	return kinematics.Command{Kind: kinematics.Holonomic, Linear: err.Longitudinal}
}

type fakeEstimator struct {
	nextDt    float64
	ws        kinematics.WorldState
	corrected []kinematics.Observation
}

func (f *fakeEstimator) NextTimeStep(current float64) (float64, bool) { return current + f.nextDt, true }
func (f *fakeEstimator) Predict(t float64, cmd *kinematics.Command)   {}
func (f *fakeEstimator) Correct(t float64, obs []kinematics.Observation) {
	f.corrected = obs
}
func (f *fakeEstimator) WorldState() kinematics.WorldState { return f.ws }

func newTestRobot() *Node {
	n := New("r1", Robot, messaging.NewLetterBox())
	n.Physics = &fakePhysics{nextDt: 0.1}
	n.Navigator = &fakeNavigator{nextDt: 0.1}
	n.Controller = &fakeController{nextDt: 0.1}
	n.Estimators = []StateEstimator{&fakeEstimator{nextDt: 0.1, ws: kinematics.NewWorldState()}}
	return n
}

func TestNextTimeStepMinimum(t *testing.T) {
	n := newTestRobot()
	n.Physics.(*fakePhysics).nextDt = 0.5
	next, ok, err := n.NextTimeStep(0, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 0.1, next, 1e-9) // navigator/controller/estimator all report 0.1
}

func TestTimeRegressionDetected(t *testing.T) {
	n := newTestRobot()
	n.Navigator = &fakeNavigator{nextDt: 0} // reports current time again: regression
	_, _, err := n.NextTimeStep(1.0, 10)
	require.ErrorIs(t, err, simerrors.ErrTimeRegression)
}

func TestTickRunsFullPipeline(t *testing.T) {
	n := newTestRobot()
	_, ok, err := n.NextTimeStep(0, 10)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := n.Tick(0.1, nil)
	require.NoError(t, err)

	var stages []string
	for _, r := range res.Records {
		stages = append(stages, string(r.Stage))
	}
	require.Contains(t, stages, "physics")
	require.Contains(t, stages, "estimator")
	require.Contains(t, stages, "navigator")
	require.Contains(t, stages, "controller")
	require.NotNil(t, n.LastCommand())
}

func TestTimeAnalysisEmitsStageTimingRecords(t *testing.T) {
	n := newTestRobot()
	n.TimeAnalysis = true
	_, ok, err := n.NextTimeStep(0, 10)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := n.Tick(0.1, nil)
	require.NoError(t, err)

	var timingStages int
	for _, r := range res.Records {
		if r.Stage == "timing" {
			timingStages++
		}
	}
	require.Greater(t, timingStages, 0)
}

func TestComputationUnitOnlyRunsEstimators(t *testing.T) {
	n := New("cu1", ComputationUnit, messaging.NewLetterBox())
	n.Estimators = []StateEstimator{&fakeEstimator{nextDt: 0.1, ws: kinematics.NewWorldState()}}
	_, ok, err := n.NextTimeStep(0, 10)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := n.Tick(0.1, nil)
	require.NoError(t, err)
	for _, r := range res.Records {
		require.NotEqual(t, "physics", string(r.Stage))
		require.NotEqual(t, "navigator", string(r.Stage))
		require.NotEqual(t, "controller", string(r.Stage))
	}
}

func TestValidateRequiresRobotModules(t *testing.T) {
	n := New("bad", Robot, messaging.NewLetterBox())
	err := n.Validate()
	require.ErrorIs(t, err, simerrors.ErrConfiguration)
}

func TestCorrectReceivesDrainedObservations(t *testing.T) {
	n := newTestRobot()
	est := n.Estimators[0].(*fakeEstimator)
	obs := kinematics.Observation{SensorName: "gnss", Kind: kinematics.GNSSObservation}
	n.LetterBox.Insert(messaging.Envelope{
		Origin:       "other",
		Topic:        messaging.ObservationsTopic("r1"),
		Payload:      obs,
		DeliveryTime: 0.1,
	})

	_, ok, err := n.NextTimeStep(0, 10)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = n.Tick(0.1, nil)
	require.NoError(t, err)
	require.Equal(t, []kinematics.Observation{obs}, est.corrected)
}

func TestKillFlaggedEnvelopeSetsKillRequestedWithoutDetachingMidTick(t *testing.T) {
	n := newTestRobot()
	n.LetterBox.Insert(messaging.Envelope{
		Origin:       "scenario",
		Topic:        messaging.CommandTopic("r1"),
		DeliveryTime: 0.1,
		Flags:        messaging.Flags{Kill: true},
	})

	_, ok, err := n.NextTimeStep(0, 10)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := n.Tick(0.1, nil)
	require.NoError(t, err)
	require.True(t, res.KillRequested)
	require.True(t, n.Alive) // detachment is the kernel's job, between steps
}
