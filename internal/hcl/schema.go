package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a configuration file may contain.
// Anything else in the file is a decode error.
type fileRoot struct {
	Engine      *engineBlock      `hcl:"engine,block"`
	Preferences *preferencesBlock `hcl:"preferences,block"`
	Scratch     *scratchBlock     `hcl:"scratch,block"`
}

// engineBlock keeps raw expressions so that only attributes present in the
// file override earlier values.
type engineBlock struct {
	Backend            hcl.Expression `hcl:"backend,optional"`
	URL                hcl.Expression `hcl:"url,optional"`
	Namespace          hcl.Expression `hcl:"namespace,optional"`
	Timeout            hcl.Expression `hcl:"timeout,optional"`
	InsecureSkipVerify hcl.Expression `hcl:"insecure_skip_verify,optional"`
}

// preferencesBlock accepts arbitrary attributes; each one is an engine
// preference.
type preferencesBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type scratchBlock struct {
	Dir    hcl.Expression `hcl:"dir,optional"`
	Prefix hcl.Expression `hcl:"prefix,optional"`
}
