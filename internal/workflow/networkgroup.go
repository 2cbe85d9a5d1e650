package workflow

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// Network group errors.
var (
	// ErrDuplicateSuffix is returned when a suffix is already registered.
	ErrDuplicateSuffix = errors.New("workflow: suffix already registered")
	// ErrRootSuffix is returned when the empty DN is registered as a suffix.
	ErrRootSuffix = errors.New("workflow: the root DSE cannot be a suffix")
	// ErrNilWorkflow is returned when a nil workflow is registered.
	ErrNilWorkflow = errors.New("workflow: nil workflow")
)

type route struct {
	suffix   *dn.DN
	workflow operation.Workflow
}

// NetworkGroup maps naming contexts to the workflows serving them. A request
// goes to the workflow of the deepest suffix containing its target DN; the
// empty DN goes to the root DSE. It implements operation.NetworkGroup.
type NetworkGroup struct {
	name string

	mu      sync.RWMutex
	routes  []route // deepest suffix first
	rootDSE *RootDSE
}

// NewNetworkGroup creates an empty network group serving the root DSE
// described by cfg.
func NewNetworkGroup(name string, cfg *RootDSEConfig) *NetworkGroup {
	g := &NetworkGroup{name: name}
	g.rootDSE = NewRootDSE(cfg, g.NamingContexts)
	return g
}

// Name returns the group name.
func (g *NetworkGroup) Name() string { return g.name }

// Register routes requests below suffix to wf.
func (g *NetworkGroup) Register(suffix string, wf operation.Workflow) error {
	if wf == nil {
		return ErrNilWorkflow
	}
	d, err := dn.Parse(suffix)
	if err != nil {
		return err
	}
	if d.IsRoot() {
		return ErrRootSuffix
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, r := range g.routes {
		if r.suffix.Equal(d) {
			return fmt.Errorf("%w: %s", ErrDuplicateSuffix, suffix)
		}
	}
	g.routes = append(g.routes, route{suffix: d, workflow: wf})
	sort.SliceStable(g.routes, func(i, j int) bool {
		return g.routes[i].suffix.NumRDNs() > g.routes[j].suffix.NumRDNs()
	})
	return nil
}

// Deregister removes a suffix. It reports whether the suffix was registered.
func (g *NetworkGroup) Deregister(suffix string) bool {
	d, err := dn.Parse(suffix)
	if err != nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i, r := range g.routes {
		if r.suffix.Equal(d) {
			g.routes = append(g.routes[:i:i], g.routes[i+1:]...)
			return true
		}
	}
	return false
}

// NamingContexts returns the registered suffixes, deepest first.
func (g *NetworkGroup) NamingContexts() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, len(g.routes))
	for i, r := range g.routes {
		out[i] = r.suffix.String()
	}
	return out
}

// RootDSE returns the group's root DSE workflow.
func (g *NetworkGroup) RootDSE() *RootDSE { return g.rootDSE }

// WorkflowCandidate implements operation.NetworkGroup.
func (g *NetworkGroup) WorkflowCandidate(d *dn.DN) operation.Workflow {
	if d.IsRoot() {
		return g.rootDSE
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, r := range g.routes {
		if d.IsWithin(r.suffix) {
			return r.workflow
		}
	}
	return nil
}

// IsNamingContext implements operation.NetworkGroup.
func (g *NetworkGroup) IsNamingContext(d *dn.DN) bool {
	if d.IsRoot() {
		return false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, r := range g.routes {
		if r.suffix.Equal(d) {
			return true
		}
	}
	return false
}
