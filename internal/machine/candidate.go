package machine

import (
	"path/filepath"
	"strings"
)

const (
	// Extension marks an Event-B machine file.
	Extension = ".bum"
	// ArchiveExtension marks a zipped model bundle.
	ArchiveExtension = ".zip"
)

// Candidate is a machine file found while scanning a directory or extracting
// an archive. Name is the logical machine name and is the vertex identity in
// the refinement graph.
type Candidate struct {
	Name string `yaml:"machine"`
	Path string `yaml:"path"`
}

// NewCandidate derives the machine name from path's base name.
func NewCandidate(path string) Candidate {
	return Candidate{
		Name: NameOf(path),
		Path: path,
	}
}

// NameOf strips the directory and the machine extension from path.
func NameOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Extension)
}

// IsMachineFile reports whether name carries the machine extension.
func IsMachineFile(name string) bool {
	return strings.HasSuffix(name, Extension)
}

// IsArchive reports whether name carries the archive extension.
func IsArchive(name string) bool {
	return strings.HasSuffix(name, ArchiveExtension)
}
