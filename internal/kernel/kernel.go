package kernel

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mescourrou/simba/internal/messaging"
	"github.com/mescourrou/simba/internal/node"
	"github.com/mescourrou/simba/internal/randgen"
	"github.com/mescourrou/simba/internal/record"
	"github.com/mescourrou/simba/internal/scenario"
	"github.com/mescourrou/simba/internal/simerrors"
	"github.com/mescourrou/simba/internal/telemetry/metrics"
	"github.com/mescourrou/simba/internal/telemetry/trace"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// defaultMaxConcurrentDispatch bounds how many node ticks run at once when
// Kernel.MaxConcurrentDispatch is left at its zero value, so a scenario
// spawning a very large population doesn't fan out one goroutine per node
// per barrier (spec.md §5).
const defaultMaxConcurrentDispatch = 64

// NodeFactory builds a fresh node instance for the named model, used to
// apply scenario Spawn events (spec.md §4.5, §6 "models"). Implemented by
// cmd/simba's newNodeFactory, which rebuilds the named template through
// the registered model builders.
type NodeFactory func(modelName, nodeName string) (*node.Node, error)

// FaultStreams resolves the named random stream a Fault plug-in draws
// from, delegating to the run's randgen.Factory with a node-scoped
// prefix.
type FaultStreams struct {
	Rand *randgen.Factory
}

func (f FaultStreams) forNode(nodeName string) node.FaultStreamFunc {
	return func(streamName string) (*randgen.Stream, error) {
		return f.Rand.Stream(nodeName + "/" + streamName)
	}
}

// Kernel drives SiMBA's barrier-synchronous simulation loop (spec.md
// §4.4).
type Kernel struct {
	Registry *Registry
	Bus      *messaging.Bus
	Store    *record.Store
	Scenario *scenario.Engine
	Rand     *randgen.Factory
	Factory  NodeFactory
	Logger   *logrus.Logger
	MaxTime  float64

	// TimeAnalysis enables per-barrier StageTiming records for the
	// time_analysis trace/CSV export (SPEC_FULL.md §8).
	TimeAnalysis bool

	// MaxConcurrentDispatch caps the number of node ticks dispatch runs
	// concurrently within one barrier. Zero uses defaultMaxConcurrentDispatch.
	MaxConcurrentDispatch int64
}

// Run advances the simulation from t=0 until no node or scenario event
// has further activity, or MaxTime is reached, whichever comes first
// (spec.md §4.4 step 3 termination condition). It returns only an error;
// the caller collects the records by calling Store.Finalize once Run
// returns — Run itself only drives ticks and merges.
func (k *Kernel) Run(ctx context.Context) error {
	current := 0.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tNext, due, hasWork, err := k.computeNextInstant(current)
		if err != nil {
			return err
		}
		if !hasWork || tNext > k.MaxTime+1e-9 {
			return nil
		}

		start := time.Now()
		if err := k.dispatch(ctx, tNext, due); err != nil {
			metrics.ObserveBarrier(time.Since(start))
			return err
		}
		elapsed := time.Since(start)
		metrics.ObserveBarrier(elapsed)

		if k.TimeAnalysis {
			k.Store.Append(record.Record{
				Node:  "kernel",
				Time:  tNext,
				Stage: record.StageTiming,
				Payload: trace.Span{
					Node:    "kernel",
					Stage:   "barrier",
					Seconds: elapsed.Seconds(),
				},
			})
		}

		if err := k.applyScenario(tNext); err != nil {
			return err
		}
		alive := 0
		for _, name := range k.Registry.Names() {
			if k.Registry.Alive(name) {
				alive++
			}
		}
		metrics.SetActiveNodes(alive)
		current = tNext
	}
}

// computeNextInstant implements spec.md §4.4 step 1: the earliest instant
// any registered node, or the scenario engine, next wants to act.
func (k *Kernel) computeNextInstant(current float64) (tNext float64, due []string, hasWork bool, err error) {
	best := math.Inf(1)
	for _, name := range k.Registry.Names() {
		n, ok := k.Registry.Get(name)
		if !ok || !n.Alive {
			continue
		}
		next, ok, nerr := n.NextTimeStep(current, k.MaxTime)
		if nerr != nil {
			return 0, nil, false, nerr
		}
		if !ok {
			continue
		}
		hasWork = true
		if next < best-1e-9 {
			best = next
			due = []string{name}
		} else if next <= best+1e-9 {
			due = append(due, name)
		}
	}

	if k.Scenario != nil {
		if t, ok := k.Scenario.NextTriggerTime(current); ok {
			hasWork = true
			if t < best-1e-9 {
				best = t
				due = nil
			}
			if t <= best+1e-9 {
				// scenario fires at this instant too; dispatch is
				// unaffected (Evaluate is called unconditionally in
				// applyScenario), this just keeps tNext accurate.
				_ = t
			}
		}
	}

	if !hasWork {
		return 0, nil, false, nil
	}
	return best, due, true, nil
}

// dispatch runs every due node's Tick concurrently (spec.md §5 "parallel
// nodes, cooperative within a node"), then merges the resulting records
// and publications into the store and bus in a fixed, node-name-sorted
// order so the outcome never depends on goroutine completion order
// (spec.md §8 determinism).
func (k *Kernel) dispatch(ctx context.Context, t float64, due []string) error {
	sort.Strings(due)
	results := make([]node.TickResult, len(due))

	limit := k.MaxConcurrentDispatch
	if limit <= 0 {
		limit = defaultMaxConcurrentDispatch
	}
	sem := semaphore.NewWeighted(limit)

	grp, gctx := errgroup.WithContext(ctx)
	streams := FaultStreams{Rand: k.Rand}
	for i, name := range due {
		i, name := i, name
		grp.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			n, ok := k.Registry.Get(name)
			if !ok {
				return nil
			}
			res, err := n.Tick(t, streams.forNode(name))
			if err != nil {
				return fmt.Errorf("kernel: node %q tick at t=%.9f: %w", name, t, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	for i, name := range due {
		for _, rec := range results[i].Records {
			if err := k.Store.Append(rec); err != nil {
				return fmt.Errorf("kernel: appending record for %q: %w", name, err)
			}
			metrics.ObserveRecord(string(rec.Stage))
		}
	}
	for i := range due {
		for _, pub := range results[i].Publications {
			k.Bus.Publish(pub)
		}
	}
	for i, name := range due {
		if results[i].KillRequested {
			k.kill(name)
		}
	}
	return nil
}

// applyScenario evaluates Time/Proximity/Area triggers and applies the
// resulting Spawn/Kill firings (spec.md §4.5, §4.4 step 5).
func (k *Kernel) applyScenario(t float64) error {
	if k.Scenario == nil {
		return nil
	}
	firings := k.Scenario.Evaluate(t, k.Registry)
	sortFirings(firings)

	for _, f := range firings {
		switch f.Kind {
		case scenario.SpawnEvent:
			if err := k.spawn(t, f.ModelName, f.NodeName); err != nil {
				return err
			}
		case scenario.KillEvent:
			k.kill(f.Target)
		}
		k.Store.Append(record.Record{Node: "scenario", Time: t, Stage: record.StageScenario, Payload: f})
		metrics.ObserveRecord(string(record.StageScenario))
	}
	return nil
}

func (k *Kernel) spawn(t float64, modelName, nodeName string) error {
	if k.Factory == nil {
		return fmt.Errorf("kernel: spawn %q requested but no NodeFactory configured: %w", nodeName, simerrors.ErrConfiguration)
	}
	n, err := k.Factory(modelName, nodeName)
	if err != nil {
		return fmt.Errorf("kernel: spawning %q from model %q: %w", nodeName, modelName, err)
	}
	n.LetterBox = k.Bus.RegisterNode(nodeName)
	if err := k.Registry.Add(n); err != nil {
		return err
	}
	if k.Logger != nil {
		k.Logger.WithFields(logrus.Fields{"node": nodeName, "model": modelName, "time": t}).Info("kernel: spawned node")
	}
	return nil
}

func (k *Kernel) kill(target string) {
	n, ok := k.Registry.Get(target)
	if !ok || !n.Alive {
		return
	}
	n.Kill()
	k.Bus.UnregisterNode(target)
	if k.Logger != nil {
		k.Logger.WithField("node", target).Info("kernel: killed node")
	}
}

func sortFirings(firings []scenario.Firing) {
	sort.SliceStable(firings, func(i, j int) bool {
		return firingKey(firings[i]) < firingKey(firings[j])
	})
}

func firingKey(f scenario.Firing) string {
	switch f.Kind {
	case scenario.SpawnEvent:
		return "spawn\x00" + f.NodeName
	default:
		return "kill\x00" + f.Target
	}
}
