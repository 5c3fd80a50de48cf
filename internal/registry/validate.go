package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/ctxlog"
)

// ValidateModel checks the loaded configuration against the registered
// backends. It reports every problem found, not just the first.
func (r *Registry) ValidateModel(ctx context.Context, model *config.Model) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	backend, ok := r.BackendRegistry[model.Engine.Backend]
	if !ok {
		errs = append(errs, fmt.Sprintf("engine backend '%s' is not registered (available: %s)", model.Engine.Backend, strings.Join(r.Names(), ", ")))
	}

	if ok && backend.NeedsURL {
		u, err := url.Parse(model.Engine.URL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("engine url '%s': %v", model.Engine.URL, err))
		case u.Scheme == "" || u.Host == "":
			errs = append(errs, fmt.Sprintf("engine url '%s' must be absolute, e.g. http://localhost:7700/engine", model.Engine.URL))
		}
		if model.Engine.InsecureSkipVerify && u != nil && u.Scheme != "https" {
			logger.Warn("insecure_skip_verify has no effect without https.", "url", model.Engine.URL)
		}
	}

	if model.Engine.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("engine timeout must be positive, got %s", model.Engine.Timeout))
	}

	if strings.ContainsAny(model.Scratch.Prefix, `/\`) {
		errs = append(errs, fmt.Sprintf("scratch prefix '%s' must not contain path separators", model.Scratch.Prefix))
	}

	for name, value := range model.Preferences {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "engine preference with an empty name")
			continue
		}
		if value == "" {
			logger.Warn("Engine preference set to an empty value.", "preference", name)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
