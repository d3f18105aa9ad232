package main

import (
	"fmt"

	"github.com/mescourrou/simba/internal/config"
	"github.com/mescourrou/simba/internal/envmap"
	"github.com/mescourrou/simba/internal/messaging"
	"github.com/mescourrou/simba/internal/node"
	"github.com/mescourrou/simba/internal/randgen"
	"github.com/mescourrou/simba/internal/simerrors"
)

// BuildContext is everything a model builder needs to construct one
// node's pipeline: its configured params, the loaded landmark map (if
// any) and the run's randomness factory, so a plug-in's sensors and
// faults can draw from their own named streams (spec.md §4.1).
//
// Concrete Physics/Sensors/Estimators/Navigator/Controller
// implementations are external plug-ins (spec.md's scope explicitly
// excludes them); this repo ships only the contract they build against.
// A deployment links in its own model packages and calls RegisterModel
// from an init(), the way a real binary would blank-import them.
type BuildContext struct {
	Name   string
	Params map[string]any
	Env    *envmap.Map
	Rand   *randgen.Factory
}

// ModelBuilder constructs a fresh node for one declared model type. It
// must name the node ctx.Name and set
// Physics/Sensors/Estimators/Navigator/Controller as node.Validate
// requires for the role it builds, leaving Labels, Network and LetterBox
// to the caller.
type ModelBuilder func(ctx BuildContext) (*node.Node, error)

var modelBuilders = make(map[string]ModelBuilder)

// RegisterModel makes typeName available to robots, computation units
// and scenario spawns declaring type: typeName.
func RegisterModel(typeName string, b ModelBuilder) {
	modelBuilders[typeName] = b
}

func buildNode(typeName string, ctx BuildContext) (*node.Node, error) {
	b, ok := modelBuilders[typeName]
	if !ok {
		return nil, fmt.Errorf("cmd/simba: no model registered for type %q: %w", typeName, simerrors.ErrConfiguration)
	}
	n, err := b(ctx)
	if err != nil {
		return nil, fmt.Errorf("cmd/simba: building node %q (type %q): %w", ctx.Name, typeName, err)
	}
	return n, nil
}

// buildInitialNodes materializes every autospawned robot and computation
// unit (spec.md §3 Lifecycle "created by autospawn at t=0"), registering
// each with the bus before returning it to the caller for Registry.Add.
func buildInitialNodes(cfg *config.Config, bus *messaging.Bus, env *envmap.Map, rand *randgen.Factory, timeAnalysis bool) ([]*node.Node, error) {
	nodes := make([]*node.Node, 0, len(cfg.Robots)+len(cfg.ComputationUnits))

	for _, rc := range cfg.Robots {
		n, err := buildNode(rc.Type, BuildContext{Name: rc.Name, Params: rc.Params, Env: env, Rand: rand})
		if err != nil {
			return nil, err
		}
		n.Labels = rc.Labels
		n.Network = rc.NetworkParams()
		n.TimeAnalysis = timeAnalysis
		n.LetterBox = bus.RegisterNode(rc.Name)
		nodes = append(nodes, n)
	}
	for _, uc := range cfg.ComputationUnits {
		n, err := buildNode(uc.Type, BuildContext{Name: uc.Name, Params: uc.Params, Env: env, Rand: rand})
		if err != nil {
			return nil, err
		}
		n.TimeAnalysis = timeAnalysis
		n.LetterBox = bus.RegisterNode(uc.Name)
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// newNodeFactory implements kernel.NodeFactory: a Spawn event's
// model_name names an already-configured robot or computation unit,
// which is rebuilt from scratch under the new node_name rather than
// copied field-by-field, so its plug-ins redraw their initial random
// state exactly as spec.md §4.5's Spawn semantics require ("clones the
// alive node (or configured template) ... redraws random initial
// state").
func newNodeFactory(robotTemplates map[string]config.RobotConfig, unitTemplates map[string]config.ComputationUnitConfig, env *envmap.Map, rand *randgen.Factory, timeAnalysis bool) func(modelName, nodeName string) (*node.Node, error) {
	return func(modelName, nodeName string) (*node.Node, error) {
		if rc, ok := robotTemplates[modelName]; ok {
			n, err := buildNode(rc.Type, BuildContext{Name: nodeName, Params: rc.Params, Env: env, Rand: rand})
			if err != nil {
				return nil, err
			}
			n.Labels = rc.Labels
			n.Network = rc.NetworkParams()
			n.TimeAnalysis = timeAnalysis
			return n, nil
		}
		if uc, ok := unitTemplates[modelName]; ok {
			n, err := buildNode(uc.Type, BuildContext{Name: nodeName, Params: uc.Params, Env: env, Rand: rand})
			if err != nil {
				return nil, err
			}
			n.TimeAnalysis = timeAnalysis
			return n, nil
		}
		return nil, fmt.Errorf("cmd/simba: spawn references unknown model %q: %w", modelName, simerrors.ErrConfiguration)
	}
}
