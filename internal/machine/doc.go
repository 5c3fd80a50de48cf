// Package machine knows what an Event-B machine file looks like on disk: the
// file extensions that identify machines and archives, how a machine's logical
// name is derived from its file name, and how the "refines" declaration is read
// from a machine's XML metadata.
package machine
