// Package resolveerr defines the error taxonomy shared by every stage of model
// resolution: archive extraction, directory scanning, metadata parsing and
// refinement-graph selection.
//
// Each failure is an *Error whose Kind is one of the sentinel errors below, so
// callers can branch with errors.Is regardless of how deeply it was wrapped.
package resolveerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrSecurityViolation  = errors.New("security violation")
	ErrMalformedInput     = errors.New("malformed input")
	ErrCircularRefinement = errors.New("circular refinement")
	ErrAmbiguousBundle    = errors.New("ambiguous bundle")
	ErrIO                 = errors.New("i/o failure")
)

// Error is a single resolution failure.
type Error struct {
	Kind error
	Msg  string
	// Names lists the machines the failure is about, sorted.
	Names []string
	// Path is the file or directory the failure refers to, if any.
	Path string
	Err  error
}

// Error renders the failure as one line.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Names) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Names, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the sentinel kind of err, or nil if err is not a resolution
// error.
func KindOf(err error) error {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return nil
}

// NamesOf returns the machine names attached to err, if any.
func NamesOf(err error) []string {
	var re *Error
	if errors.As(err, &re) {
		return re.Names
	}
	return nil
}

func newf(kind error, path string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Path: path, Err: cause}
}

func NotFound(path, format string, args ...any) error {
	return newf(ErrNotFound, path, nil, format, args...)
}

func SecurityViolation(path, format string, args ...any) error {
	return newf(ErrSecurityViolation, path, nil, format, args...)
}

func Malformed(path string, cause error, format string, args ...any) error {
	return newf(ErrMalformedInput, path, cause, format, args...)
}

func IO(path string, cause error, format string, args ...any) error {
	return newf(ErrIO, path, cause, format, args...)
}

// Circular reports a refinement cycle among the given machines.
func Circular(msg string, names []string) error {
	return &Error{Kind: ErrCircularRefinement, Msg: msg, Names: names}
}

// Ambiguous reports more than one most-refined machine.
func Ambiguous(msg string, leaves []string) error {
	return &Error{Kind: ErrAmbiguousBundle, Msg: msg, Names: leaves}
}
