package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/ctxlog"
	"github.com/vk/animate/internal/fsutil"
)

// Extension marks a configuration file.
const Extension = ".hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file found in paths, in order, and merges each over
// the defaults. A later file overrides attributes set by an earlier one.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := config.Default()

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if root.Engine != nil {
			if err := translateEngine(ctx, root.Engine, &model.Engine); err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
		}
		if root.Preferences != nil {
			if err := translatePreferences(ctx, root.Preferences, model.Preferences); err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
		}
		if root.Scratch != nil {
			if err := translateScratch(ctx, root.Scratch, &model.Scratch); err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
		}
		logger.Debug("Configuration file loaded.", "file", file)
	}

	logger.Debug("HCL loading complete.", "files", len(hclFiles), "backend", model.Engine.Backend, "preferences", len(model.Preferences))
	return model, nil
}

// findAllHCLFiles returns the .hcl files named by paths, expanding
// directories. Paths that do not exist are not an error.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == Extension {
				add(path)
			}
			continue
		}
		found, err := fsutil.FindFilesByExtension(os.DirFS(path), ".", Extension)
		if err != nil {
			return nil, fmt.Errorf("error walking %s: %w", path, err)
		}
		for _, rel := range found {
			add(filepath.Join(path, filepath.FromSlash(rel)))
		}
	}
	return allFiles, nil
}
