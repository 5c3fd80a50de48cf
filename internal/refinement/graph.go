package refinement

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/machine"
	"github.com/vk/animate/internal/resolveerr"
)

// MetadataReader reads the machine a candidate declares it refines.
type MetadataReader interface {
	RefinesTarget(ctx context.Context, c machine.Candidate) (target string, ok bool, err error)
}

// Graph is the refinement graph of one bundle. It is built once per
// resolution and never mutated afterwards.
type Graph struct {
	nodes   map[string]machine.Candidate
	refines map[string]string // child -> parent
}

// Build reads every candidate's metadata and assembles the graph. Machine
// names must be unique; the first unreadable candidate aborts the build.
func Build(ctx context.Context, candidates []machine.Candidate, reader MetadataReader) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	g := &Graph{
		nodes:   make(map[string]machine.Candidate, len(candidates)),
		refines: make(map[string]string, len(candidates)),
	}
	for _, c := range candidates {
		if prev, exists := g.nodes[c.Name]; exists {
			return nil, &resolveerr.Error{
				Kind:  resolveerr.ErrMalformedInput,
				Msg:   fmt.Sprintf("duplicate machine name in %s and %s", prev.Path, c.Path),
				Names: []string{c.Name},
				Path:  c.Path,
			}
		}
		g.nodes[c.Name] = c
	}

	for _, c := range candidates {
		target, ok, err := reader.RefinesTarget(ctx, c)
		if err != nil {
			return nil, err
		}
		if ok {
			g.refines[c.Name] = target
		}
	}

	logger.Debug("Refinement graph built.", "machines", len(g.nodes), "edges", len(g.refines))
	return g, nil
}

// Len returns the number of machines in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node looks up a machine by name.
func (g *Graph) Node(name string) (machine.Candidate, bool) {
	c, ok := g.nodes[name]
	return c, ok
}

// Refines returns the machine name refines, if it declares one.
func (g *Graph) Refines(name string) (string, bool) {
	target, ok := g.refines[name]
	return target, ok
}

// Names returns every machine name, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Targets returns the set of machine names refined by some machine. Targets
// need not be in the graph: a bundle may refine a machine it does not ship.
func (g *Graph) Targets() map[string]struct{} {
	targets := make(map[string]struct{}, len(g.refines))
	for _, parent := range g.refines {
		targets[parent] = struct{}{}
	}
	return targets
}

// Leaves returns, sorted, the machines that no other machine refines.
func (g *Graph) Leaves() []string {
	targets := g.Targets()
	var leaves []string
	for _, name := range g.Names() {
		if _, refined := targets[name]; !refined {
			leaves = append(leaves, name)
		}
	}
	return leaves
}

// Leaf returns the single most-refined machine. It fails with
// CircularRefinement when there is no leaf or when the leaf's chain loops,
// and with AmbiguousBundle when there is more than one leaf.
func (g *Graph) Leaf() (machine.Candidate, error) {
	leaves := g.Leaves()
	switch {
	case len(leaves) == 0:
		return machine.Candidate{}, resolveerr.Circular("circular refinement detected, every machine is refined by another", g.Names())
	case len(leaves) > 1:
		return machine.Candidate{}, resolveerr.Ambiguous("multiple independent refinement chains found, cannot auto-select; leaf machines", leaves)
	}

	if _, err := g.Chain(leaves[0]); err != nil {
		return machine.Candidate{}, err
	}
	return g.nodes[leaves[0]], nil
}

// Chain follows refines edges from name towards the most abstract machine and
// returns the names visited, name first. The walk stops at a machine that
// refines nothing or whose target is not in the graph. Revisiting a machine
// is a CircularRefinement error naming the loop.
func (g *Graph) Chain(name string) ([]string, error) {
	if _, ok := g.nodes[name]; !ok {
		return nil, resolveerr.NotFound("", "machine %s is not part of the bundle", name)
	}

	chain := []string{name}
	seen := map[string]int{name: 0}
	current := name
	for {
		parent, ok := g.refines[current]
		if !ok {
			return chain, nil
		}
		if _, inGraph := g.nodes[parent]; !inGraph {
			return chain, nil
		}
		if at, loop := seen[parent]; loop {
			cycle := append(append([]string(nil), chain[at:]...), parent)
			return nil, resolveerr.Circular("circular refinement detected in chain of "+name, cycle)
		}
		seen[parent] = len(chain)
		chain = append(chain, parent)
		current = parent
	}
}
