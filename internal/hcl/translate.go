package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/ctxlog"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// isExprDefined checks if an HCL expression was actually present in the
// source. The decoder fills omitted optional attributes with zero-width
// placeholder expressions, so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	exprRange := expr.Range()
	isDefined := exprRange.End.Byte > exprRange.Start.Byte

	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", exprRange.String(),
		"is_defined", isDefined,
	)
	return isDefined
}

// evalInto evaluates expr without variables, converts the result to the cty
// type implied by target and stores it there.
func evalInto(expr hcl.Expression, attrName string, target any) error {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return fmt.Errorf("attribute '%s': %w", attrName, diags)
	}
	if val.IsNull() || !val.IsWhollyKnown() {
		return fmt.Errorf("attribute '%s': value must be known and not null", attrName)
	}
	want, err := gocty.ImpliedType(target)
	if err != nil {
		return fmt.Errorf("attribute '%s': %w", attrName, err)
	}
	converted, err := convert.Convert(val, want)
	if err != nil {
		return fmt.Errorf("attribute '%s': cannot use %s as %s: %w", attrName, val.Type().FriendlyName(), want.FriendlyName(), err)
	}
	if err := gocty.FromCtyValue(converted, target); err != nil {
		return fmt.Errorf("attribute '%s': %w", attrName, err)
	}
	return nil
}

// translateEngine overrides the engine settings present in b.
func translateEngine(ctx context.Context, b *engineBlock, out *config.Engine) error {
	strs := []struct {
		name string
		expr hcl.Expression
		dst  *string
	}{
		{"backend", b.Backend, &out.Backend},
		{"url", b.URL, &out.URL},
		{"namespace", b.Namespace, &out.Namespace},
	}
	for _, s := range strs {
		if !isExprDefined(ctx, s.expr, s.name) {
			continue
		}
		if err := evalInto(s.expr, s.name, s.dst); err != nil {
			return fmt.Errorf("engine block: %w", err)
		}
	}

	if isExprDefined(ctx, b.Timeout, "timeout") {
		var raw string
		if err := evalInto(b.Timeout, "timeout", &raw); err != nil {
			return fmt.Errorf("engine block: %w", err)
		}
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("engine block: attribute 'timeout': %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("engine block: attribute 'timeout' must be positive, got %s", raw)
		}
		out.Timeout = timeout
	}

	if isExprDefined(ctx, b.InsecureSkipVerify, "insecure_skip_verify") {
		if err := evalInto(b.InsecureSkipVerify, "insecure_skip_verify", &out.InsecureSkipVerify); err != nil {
			return fmt.Errorf("engine block: %w", err)
		}
	}
	return nil
}

// translatePreferences evaluates every attribute of the preferences block and
// stores its string form in prefs. Numbers and booleans are accepted and
// rendered the way the engine expects them ("8", "true").
func translatePreferences(ctx context.Context, b *preferencesBlock, prefs map[string]string) error {
	if b.Body == nil {
		return nil
	}
	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return fmt.Errorf("preferences block: %w", diags)
	}
	for name, attr := range attrs {
		var value string
		if err := evalInto(attr.Expr, name, &value); err != nil {
			return fmt.Errorf("preferences block: %w", err)
		}
		prefs[name] = value
	}
	ctxlog.FromContext(ctx).Debug("Engine preferences read.", "count", len(attrs))
	return nil
}

func translateScratch(ctx context.Context, b *scratchBlock, out *config.Scratch) error {
	if isExprDefined(ctx, b.Dir, "dir") {
		if err := evalInto(b.Dir, "dir", &out.Dir); err != nil {
			return fmt.Errorf("scratch block: %w", err)
		}
	}
	if isExprDefined(ctx, b.Prefix, "prefix") {
		if err := evalInto(b.Prefix, "prefix", &out.Prefix); err != nil {
			return fmt.Errorf("scratch block: %w", err)
		}
	}
	return nil
}
