// Package refinement models the "refines" relation between Event-B machines as
// a graph and selects the most-refined machine of a bundle.
//
// Vertices are machine names. Each machine contributes at most one edge,
// child -> parent, read from its metadata. The most-refined machine is the
// unique vertex that no other machine refines:
//
//	leaves = vertices - { target of every edge }
//
// Zero leaves means the bundle is circular; more than one means it holds
// several independent chains and selection is ambiguous. Neither case is
// guessed at: both are reported to the caller with the machine names involved.
package refinement
