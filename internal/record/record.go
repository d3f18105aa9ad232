// Package record implements SiMBA's append-only record store (spec.md
// §4.6): every pipeline stage's snapshot, scenario events and timing
// samples, keyed by (node, time, stage), flushed per a configurable save
// mode.
package record

// Stage names the pipeline step (or scenario/timing source) a Record was
// produced by, in declaration order (spec.md §4.3).
type Stage string

const (
	StagePreLoop    Stage = "pre_loop"
	StagePhysics    Stage = "physics"
	StageSensors    Stage = "sensors"
	StageEstimator  Stage = "estimator"
	StageNavigator  Stage = "navigator"
	StageController Stage = "controller"
	StageScenario   Stage = "scenario"
	StageTiming     Stage = "timing"
)

// stageOrder fixes the declaration order used when iterating records at
// run end (spec.md §4.6).
var stageOrder = map[Stage]int{
	StagePreLoop:    0,
	StagePhysics:    1,
	StageSensors:    2,
	StageEstimator:  3,
	StageNavigator:  4,
	StageController: 5,
	StageScenario:   6,
	StageTiming:     7,
}

// Record is one append-only datum produced by a pipeline stage.
type Record struct {
	Node    string
	Time    float64
	Stage   Stage
	Payload any
}
