// Package archive extracts zipped model bundles into a private scratch
// directory, refusing any entry that would land outside it.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/machine"
	"github.com/vk/animate/internal/resolveerr"
)

const (
	// DefaultPrefix names scratch directories so stray ones are recognisable.
	DefaultPrefix = "animate-"

	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// Extractor unpacks zip archives.
type Extractor struct {
	// TempRoot is the parent of every scratch directory. Empty means os.TempDir.
	TempRoot string
	// Prefix is the scratch directory name prefix.
	Prefix string
}

// NewExtractor returns an Extractor using the system temp directory.
func NewExtractor() *Extractor {
	return &Extractor{Prefix: DefaultPrefix}
}

// Extract creates a fresh scratch directory, unpacks archivePath into it and
// returns the machine files found. Once scratchDir is non-empty it belongs to
// the caller, including when err is non-nil.
func (e *Extractor) Extract(ctx context.Context, archivePath string) (scratchDir string, candidates []machine.Candidate, err error) {
	logger := ctxlog.FromContext(ctx).With("archive", archivePath)

	prefix := e.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	scratchDir, err = os.MkdirTemp(e.TempRoot, prefix)
	if err != nil {
		return "", nil, resolveerr.IO(archivePath, err, "create scratch directory")
	}
	logger.Debug("Created scratch directory.", "dir", scratchDir)

	zr, err := zip.OpenReader(archivePath)
	if zr == nil {
		return scratchDir, nil, openError(archivePath, err)
	}
	defer zr.Close()
	if err != nil {
		// Entry names are checked one by one below.
		logger.Debug("Archive reader reported a warning.", "error", err)
	}

	for _, f := range zr.File {
		target, err := entryTarget(scratchDir, f.Name)
		if err != nil {
			return scratchDir, nil, err
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, dirPerm); err != nil {
				return scratchDir, nil, resolveerr.IO(target, err, "create directory for entry %s", f.Name)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return scratchDir, nil, err
		}
		if machine.IsMachineFile(f.Name) {
			candidates = append(candidates, machine.NewCandidate(target))
		}
	}

	if len(candidates) == 0 {
		return scratchDir, nil, resolveerr.NotFound(archivePath, "no %s file found in zip archive %s", machine.Extension, archivePath)
	}
	logger.Debug("Archive extracted.", "entries", len(zr.File), "candidates", len(candidates))
	return scratchDir, candidates, nil
}

// entryTarget joins name onto root and rejects the result unless it stays in
// root's subtree. filepath.Join cleans the path, so ".." segments are resolved
// before the containment check.
func entryTarget(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", resolveerr.SecurityViolation(name, "zip entry outside target directory: %s", name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return resolveerr.IO(target, err, "create parent directory for entry %s", f.Name)
	}

	src, err := f.Open()
	if err != nil {
		return entryError(f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return resolveerr.IO(target, err, "create file for entry %s", f.Name)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return entryError(f.Name, err)
	}
	if err := dst.Close(); err != nil {
		return resolveerr.IO(target, err, "write entry %s", f.Name)
	}
	return nil
}

func openError(archivePath string, err error) error {
	if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) {
		return resolveerr.Malformed(archivePath, err, "read zip archive %s", archivePath)
	}
	return resolveerr.IO(archivePath, err, "open zip archive %s", archivePath)
}

func entryError(name string, err error) error {
	if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, io.ErrUnexpectedEOF) {
		return resolveerr.Malformed(name, err, "read zip entry %s", name)
	}
	return resolveerr.IO(name, fmt.Errorf("copy: %w", err), "extract zip entry %s", name)
}
