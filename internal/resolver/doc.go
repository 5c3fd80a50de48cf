// Package resolver turns a user-supplied model path into the one machine file
// the analysis engine should load.
//
// A path may name a machine file (used as is), a directory (scanned for
// machine files) or a zip archive (extracted into a scratch directory). When
// several machine files are found, the most-refined one is selected through
// the refinement graph.
//
// # Scratch directory lifecycle
//
// A Resolver creates at most one scratch directory per resolution and owns it
// until Cleanup is called. Resolve never deletes it on success, because the
// caller still needs the extracted file. Callers therefore pair every Resolve
// with a Cleanup on all exit paths, most simply through Use:
//
//	err := resolver.Use(ctx, r, path, nil, func(ref resolver.Reference) error {
//	    return load(ref.Path)
//	})
//
// Cleanup is idempotent. A Resolver handles one model path at a time and is
// not safe for concurrent use.
package resolver
