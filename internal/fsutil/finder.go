// Package fsutil provides file system utility functions and the directory
// scanner that collects candidate machine files.
package fsutil

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/machine"
	"github.com/vk/animate/internal/resolveerr"
)

// FindFilesByExtension recursively searches fsys from root for all regular
// files whose name ends with extension. Paths are returned in lexical order,
// joined onto root with forward slashes as fs.WalkDir reports them.
func FindFilesByExtension(fsys fs.FS, root string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// Scanner collects machine files beneath a directory. Symlink loops are the
// caller's responsibility; the walk does not follow directory symlinks.
type Scanner struct {
	// DirFS opens the directory being scanned. Defaults to os.DirFS.
	DirFS func(dir string) fs.FS
}

// NewScanner returns a Scanner over the local filesystem.
func NewScanner() *Scanner {
	return &Scanner{DirFS: os.DirFS}
}

// Scan returns every machine file beneath dir as a candidate whose Path is
// rooted at dir.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]machine.Candidate, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Scanning directory for machine files.", "dir", dir)

	dirFS := s.DirFS
	if dirFS == nil {
		dirFS = os.DirFS
	}

	rel, err := FindFilesByExtension(dirFS(dir), ".", machine.Extension)
	if err != nil {
		return nil, resolveerr.IO(dir, err, "walk directory %s", dir)
	}
	if len(rel) == 0 {
		return nil, resolveerr.NotFound(dir, "no %s file found in directory %s", machine.Extension, dir)
	}

	candidates := make([]machine.Candidate, 0, len(rel))
	for _, p := range rel {
		candidates = append(candidates, machine.NewCandidate(filepath.Join(dir, filepath.FromSlash(p))))
	}
	logger.Debug("Directory scan complete.", "dir", dir, "candidates", len(candidates))
	return candidates, nil
}
