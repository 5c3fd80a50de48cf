package refinement

import (
	"context"

	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/machine"
	"github.com/vk/animate/internal/resolveerr"
)

// Selection is the outcome of choosing a machine from a candidate set.
type Selection struct {
	Candidate machine.Candidate
	// Graph is nil when there was a single candidate and no metadata was read.
	Graph *Graph
	// AutoSelected is true when the candidate was picked among several.
	AutoSelected bool
}

// Chain returns the refinement chain of the selected machine.
func (s Selection) Chain() []string {
	if s.Graph == nil {
		return []string{s.Candidate.Name}
	}
	chain, err := s.Graph.Chain(s.Candidate.Name)
	if err != nil {
		return []string{s.Candidate.Name}
	}
	return chain
}

// Select returns the most-refined candidate. A single candidate is returned as
// is: a singleton cannot be ambiguous, so its metadata is never parsed.
func Select(ctx context.Context, candidates []machine.Candidate, reader MetadataReader) (Selection, error) {
	switch len(candidates) {
	case 0:
		return Selection{}, resolveerr.NotFound("", "no %s file to select from", machine.Extension)
	case 1:
		return Selection{Candidate: candidates[0]}, nil
	}

	g, err := Build(ctx, candidates, reader)
	if err != nil {
		return Selection{Graph: g}, err
	}
	leaf, err := g.Leaf()
	if err != nil {
		return Selection{Graph: g}, err
	}

	ctxlog.FromContext(ctx).Info("Multiple .bum files found, auto-selected most refined.",
		"machine", leaf.Name, "file", leaf.Path, "candidates", len(candidates))
	return Selection{Candidate: leaf, Graph: g, AutoSelected: true}, nil
}
