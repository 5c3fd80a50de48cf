// Package report writes a YAML record of how a model path was resolved: which
// machine file was chosen, its content hash, and the candidates considered.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/vk/animate/internal/resolver"
	"gopkg.in/yaml.v3"
)

// Version is the report format version.
const Version = 1

// Report is the top-level document. Field order matches the YAML output
// order.
type Report struct {
	Version      int         `yaml:"version"`
	Input        string      `yaml:"input"`
	Kind         string      `yaml:"kind"`
	Resolved     Resolved    `yaml:"resolved"`
	AutoSelected bool        `yaml:"auto_selected"`
	Candidates   []Candidate `yaml:"candidates,omitempty"`
	Chain        []string    `yaml:"chain,flow"`
}

// Resolved identifies the machine file handed to the engine.
type Resolved struct {
	Machine string `yaml:"machine"`
	Path    string `yaml:"path"`
	SHA256  string `yaml:"sha256"`
}

// Candidate is one machine file considered during resolution. Refines is
// empty for a machine that refines nothing.
type Candidate struct {
	Machine string `yaml:"machine"`
	Path    string `yaml:"path"`
	Refines string `yaml:"refines"`
}

// Build hashes the resolved machine file and assembles the report. It must be
// called while the file still exists, i.e. before the resolver is cleaned up.
func Build(ref resolver.Reference) (*Report, error) {
	hash, err := hashFile(ref.Path)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Version: Version,
		Input:   ref.Input,
		Kind:    string(ref.Kind),
		Resolved: Resolved{
			Machine: ref.Machine,
			Path:    ref.Path,
			SHA256:  hash,
		},
		AutoSelected: ref.AutoSelected,
		Chain:        ref.Chain,
	}
	for _, c := range ref.Candidates {
		rc := Candidate{Machine: c.Name, Path: c.Path}
		if ref.Graph != nil {
			rc.Refines, _ = ref.Graph.Refines(c.Name)
		}
		r.Candidates = append(r.Candidates, rc)
	}
	return r, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read resolved machine: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash resolved machine: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Write marshals the report to YAML and writes it to path, replacing any
// existing file.
func Write(r *Report, path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read loads a report previously written by Write.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if r.Version != Version {
		return nil, fmt.Errorf("unsupported report version %d", r.Version)
	}
	return &r, nil
}

// Verify re-hashes the resolved file and returns an error if it changed since
// the report was built.
func Verify(r *Report) error {
	current, err := hashFile(r.Resolved.Path)
	if err != nil {
		return err
	}
	if current != r.Resolved.SHA256 {
		return fmt.Errorf("report is stale: machine hash changed (stored %s, current %s)", r.Resolved.SHA256, current)
	}
	return nil
}
