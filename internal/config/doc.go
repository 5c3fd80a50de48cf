// Package config defines the format-agnostic configuration model for animate
// and the Loader interface that fills it from a configuration source.
//
// The Model carries the engine connection settings, the preference map
// forwarded to the engine and the scratch directory settings used while
// resolving archives. Concrete loaders, such as the HCL one, live in separate
// packages.
package config
