package resolver

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vk/animate/internal/archive"
	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/fsutil"
	"github.com/vk/animate/internal/machine"
	"github.com/vk/animate/internal/refinement"
	"github.com/vk/animate/internal/resolveerr"
)

// Kind classifies the user-supplied path.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	KindArchive   Kind = "archive"
)

// Extractor unpacks an archive into a new scratch directory. The returned
// directory belongs to the caller even when err is non-nil.
type Extractor interface {
	Extract(ctx context.Context, archivePath string) (scratchDir string, candidates []machine.Candidate, err error)
}

// Scanner collects the machine files beneath a directory.
type Scanner interface {
	Scan(ctx context.Context, dir string) ([]machine.Candidate, error)
}

// FileSystem is the slice of the OS the resolver touches directly.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	RemoveAll(path string) error
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (osFS) RemoveAll(path string) error           { return os.RemoveAll(path) }

// Reference is a resolved model.
type Reference struct {
	// Input is the path as the user supplied it.
	Input string
	Kind  Kind
	// Path is the absolute, cleaned path of the machine file to load.
	Path    string
	Machine string
	// Candidates lists every machine file considered; nil for a plain file.
	Candidates []machine.Candidate
	// AutoSelected is true when Path was chosen among several candidates.
	AutoSelected bool
	// Chain is the refinement chain of the selected machine, most refined first.
	Chain []string
	// Graph is the refinement graph, when one was built.
	Graph *refinement.Graph
}

// Resolver resolves model paths. The zero value is not usable; call New.
type Resolver struct {
	extractor Extractor
	scanner   Scanner
	reader    refinement.MetadataReader
	fsys      FileSystem

	scratchDir string
	last       *Reference
}

// Option customises a Resolver's collaborators.
type Option func(*Resolver)

// WithExtractor replaces the archive extractor.
func WithExtractor(e Extractor) Option {
	return func(r *Resolver) { r.extractor = e }
}

// WithScanner replaces the directory scanner.
func WithScanner(s Scanner) Option {
	return func(r *Resolver) { r.scanner = s }
}

// WithMetadataReader replaces the reader used to build refinement graphs.
func WithMetadataReader(m refinement.MetadataReader) Option {
	return func(r *Resolver) { r.reader = m }
}

// WithFileSystem replaces the filesystem used for stat and cleanup.
func WithFileSystem(f FileSystem) Option {
	return func(r *Resolver) { r.fsys = f }
}

// New returns a Resolver backed by the local filesystem unless opts replace
// its collaborators.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		extractor: archive.NewExtractor(),
		scanner:   fsutil.NewScanner(),
		reader:    machine.NewBumReader(),
		fsys:      osFS{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ScratchDir returns the scratch directory currently owned, or "".
func (r *Resolver) ScratchDir() string {
	return r.scratchDir
}

// Resolve classifies input and returns the machine file to load. A failed
// extraction releases its scratch directory immediately; any other failure
// leaves it recorded for Cleanup, so Pick can still use the extracted files.
func (r *Resolver) Resolve(ctx context.Context, input string) (Reference, error) {
	logger := ctxlog.FromContext(ctx)
	r.last = nil

	if r.scratchDir != "" {
		logger.Warn("Releasing scratch directory of a previous resolution.", "dir", r.scratchDir)
		r.Cleanup(ctx)
	}

	info, err := r.fsys.Stat(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Reference{}, resolveerr.NotFound(input, "model path does not exist: %s", input)
		}
		return Reference{}, resolveerr.IO(input, err, "stat model path %s", input)
	}

	switch {
	case info.IsDir():
		logger.Debug("Resolving model directory.", "path", input)
		candidates, err := r.scanner.Scan(ctx, input)
		if err != nil {
			return Reference{}, err
		}
		return r.selectFrom(ctx, input, KindDirectory, candidates)

	case machine.IsArchive(input):
		logger.Debug("Resolving model archive.", "path", input)
		scratch, candidates, err := r.extractor.Extract(ctx, input)
		r.scratchDir = scratch
		if err != nil {
			r.Cleanup(ctx)
			return Reference{}, err
		}
		return r.selectFrom(ctx, input, KindArchive, candidates)

	default:
		abs, err := filepath.Abs(input)
		if err != nil {
			return Reference{}, resolveerr.IO(input, err, "absolute path of %s", input)
		}
		ref := Reference{
			Input:   input,
			Kind:    KindFile,
			Path:    abs,
			Machine: machine.NameOf(abs),
			Chain:   []string{machine.NameOf(abs)},
		}
		r.last = &ref
		return ref, nil
	}
}

func (r *Resolver) selectFrom(ctx context.Context, input string, kind Kind, candidates []machine.Candidate) (Reference, error) {
	last := &Reference{Input: input, Kind: kind, Candidates: candidates}
	r.last = last

	sel, err := refinement.Select(ctx, candidates, r.reader)
	last.Graph = sel.Graph
	if err != nil {
		return Reference{}, err
	}
	return r.complete(sel.Candidate, sel.AutoSelected, sel.Chain())
}

// Pick resolves to the named machine among the candidates of the most recent
// Resolve call. It lets a caller settle an ambiguous bundle by hand.
func (r *Resolver) Pick(ctx context.Context, name string) (Reference, error) {
	if r.last == nil || r.last.Candidates == nil {
		return Reference{}, resolveerr.NotFound("", "no candidate set to pick %s from", name)
	}
	for _, c := range r.last.Candidates {
		if c.Name != name {
			continue
		}
		chain := []string{name}
		if r.last.Graph != nil {
			if walked, err := r.last.Graph.Chain(name); err == nil {
				chain = walked
			}
		}
		ctxlog.FromContext(ctx).Info("Machine picked by user.", "machine", name, "file", c.Path)
		return r.complete(c, false, chain)
	}
	return Reference{}, resolveerr.NotFound(r.last.Input, "machine %s is not part of %s", name, r.last.Input)
}

func (r *Resolver) complete(c machine.Candidate, auto bool, chain []string) (Reference, error) {
	abs, err := filepath.Abs(c.Path)
	if err != nil {
		return Reference{}, resolveerr.IO(c.Path, err, "absolute path of %s", c.Path)
	}
	r.last.Path = abs
	r.last.Machine = c.Name
	r.last.AutoSelected = auto
	r.last.Chain = chain
	return *r.last, nil
}

// Cleanup deletes the scratch directory, if any, and forgets it. Deletion is
// best effort: a failure is logged and the record is still cleared. Calling
// Cleanup again, or when nothing was created, does nothing.
func (r *Resolver) Cleanup(ctx context.Context) {
	if r.scratchDir == "" {
		return
	}
	dir := r.scratchDir
	r.scratchDir = ""
	if err := r.fsys.RemoveAll(dir); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to clean up scratch directory.", "dir", dir, "error", err)
		return
	}
	ctxlog.FromContext(ctx).Debug("Scratch directory removed.", "dir", dir)
}

// Chooser settles an ambiguous bundle by naming one of its leaf machines.
type Chooser func(ctx context.Context, leaves []string) (string, error)

// Use resolves input, runs fn with the result and releases the scratch
// directory afterwards, whichever way fn or the resolution ends. When choose
// is non-nil and the bundle is ambiguous, the machine it names is used.
func Use(ctx context.Context, r *Resolver, input string, choose Chooser, fn func(Reference) error) error {
	defer r.Cleanup(ctx)

	ref, err := r.Resolve(ctx, input)
	if err != nil && choose != nil && errors.Is(err, resolveerr.ErrAmbiguousBundle) {
		name, chooseErr := choose(ctx, resolveerr.NamesOf(err))
		if chooseErr != nil {
			return errors.Join(err, chooseErr)
		}
		ref, err = r.Pick(ctx, name)
	}
	if err != nil {
		return err
	}
	return fn(ref)
}
