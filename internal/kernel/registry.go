// Package kernel implements SiMBA's simulation kernel (spec.md §4.4): the
// node registry the message bus and scenario engine query for spatial and
// liveness information, and the barrier-synchronous stepping loop that
// drives every node's Tick.
package kernel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/mescourrou/simba/internal/messaging"
	"github.com/mescourrou/simba/internal/node"
	"github.com/mescourrou/simba/internal/scenario"
	"github.com/mescourrou/simba/internal/simerrors"
)

// Registry owns every live node and answers messaging.NetworkInfo and
// scenario.NodeLocator queries on the kernel's behalf. It is mutated only
// between barriers, from a single goroutine, matching the determinism
// requirement spec.md §5 places on bus/record merges.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*node.Node
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*node.Node)}
}

// Add registers n, which must already own a LetterBox from the bus
// (spec.md §3 Ownership).
func (r *Registry) Add(n *node.Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[n.Name]; exists {
		return fmt.Errorf("kernel: node %q already registered: %w", n.Name, simerrors.ErrConfiguration)
	}
	r.nodes[n.Name] = n
	return nil
}

// Remove drops a node entirely. The kernel does not call it: a killed
// node stays registered with Alive false.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, name)
}

// Get returns the named node, if registered.
func (r *Registry) Get(name string) (*node.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	return n, ok
}

// Names returns every registered node's name in sorted order, the
// deterministic dispatch order the kernel uses for ticking and merging
// (spec.md §5).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Alive reports whether node name exists and is still alive.
func (r *Registry) Alive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	return ok && n.Alive
}

// Pose implements messaging.NetworkInfo.
func (r *Registry) Pose(name string) (kinematics.Pose, bool) {
	r.mu.RLock()
	n, ok := r.nodes[name]
	r.mu.RUnlock()
	if !ok {
		return kinematics.Pose{}, false
	}
	return n.Pose()
}

// IsPhysical implements messaging.NetworkInfo.
func (r *Registry) IsPhysical(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	return ok && n.IsPhysical()
}

// Range implements messaging.NetworkInfo.
func (r *Registry) Range(name string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.nodes[name]; ok {
		return n.Network.Range
	}
	return 0
}

// ReceptionDelay implements messaging.NetworkInfo.
func (r *Registry) ReceptionDelay(name string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.nodes[name]; ok {
		return n.Network.ReceptionDelay
	}
	return 0
}

// RobotPoses implements scenario.NodeLocator: every alive, physical
// node's current pose.
func (r *Registry) RobotPoses() map[string]kinematics.Pose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]kinematics.Pose, len(r.nodes))
	for name, n := range r.nodes {
		if !n.Alive || !n.IsPhysical() {
			continue
		}
		if pose, ok := n.Pose(); ok {
			out[name] = pose
		}
	}
	return out
}

var _ messaging.NetworkInfo = (*Registry)(nil)
var _ scenario.NodeLocator = (*Registry)(nil)
