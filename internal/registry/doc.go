// Package registry provides the central "glue" for the engine backends.
//
// The Registry maps the backend names used in configuration (e.g.,
// "socketio") to the compiled Go factories that build an engine.Engine. Each
// backend lives in its own module package and registers itself through the
// Module interface during application startup. After registration, the
// loaded configuration is validated against the registry so that a typo in a
// backend name fails before any model is resolved.
package registry
