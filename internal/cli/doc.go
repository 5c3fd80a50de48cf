// Package cli parses the animate command line: the optional replay or info
// subcommand, its flags and the MODEL argument. It validates user input and
// reports usage problems as ExitError values carrying exit code 2.
package cli
