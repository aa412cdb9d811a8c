// Package modderr gives the error taxonomy from the specification's error
// handling design real Go types, so the CLI layer can pick an exit code with
// errors.As instead of string-matching messages.
package modderr

import "fmt"

// Kind is one of the seven fatal error categories a modda run can end in.
type Kind int

const (
	// KindManifest covers malformed YAML, unknown fields, bad component selectors.
	KindManifest Kind = iota
	// KindConfiguration covers missing extractors, missing credentials, bad paths.
	KindConfiguration
	// KindFetch covers non-2xx HTTP, network failures, missing GitHub refs.
	KindFetch
	// KindExtraction covers corrupt archives, path traversal, extractor failures.
	KindExtraction
	// KindMutation covers patch context mismatches, bad regexes, missing targets.
	KindMutation
	// KindInstall covers weidu failures: non-zero exit, ERROR lines, rejected warnings.
	KindInstall
	// KindConcurrency covers cache contention timeouts.
	KindConcurrency
)

func (k Kind) String() string {
	switch k {
	case KindManifest:
		return "manifest error"
	case KindConfiguration:
		return "configuration error"
	case KindFetch:
		return "fetch error"
	case KindExtraction:
		return "extraction error"
	case KindMutation:
		return "mutation error"
	case KindInstall:
		return "install error"
	case KindConcurrency:
		return "concurrency error"
	default:
		return "error"
	}
}

// ExitCode maps an error Kind to the CLI exit code documented in the
// external interfaces: 1 for a failed mod, 2 for configuration/setup, 3 for
// I/O or network trouble. Mutation errors are treated as mod-level (exit 1),
// matching "driver fails with Mutation error" language in the scenarios.
func (k Kind) ExitCode() int {
	switch k {
	case KindManifest, KindConfiguration:
		return 2
	case KindFetch, KindExtraction, KindConcurrency:
		return 3
	case KindMutation, KindInstall:
		return 1
	default:
		return 1
	}
}

// Error wraps a cause with the kind taxonomy plus the module/component
// context the driver needs to print a single actionable message.
type Error struct {
	Kind      Kind
	Module    string
	Component *int
	Err       error
}

func (e *Error) Error() string {
	prefix := e.Kind.String()
	if e.Module != "" {
		prefix += " in module " + e.Module
	}
	if e.Component != nil {
		prefix = fmt.Sprintf("%s, component %d", prefix, *e.Component)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", prefix, e.Err)
	}
	return prefix
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind wrapping err, scoped to module (may
// be empty for run-wide errors such as a missing weidu binary).
func New(kind Kind, module string, err error) *Error {
	return &Error{Kind: kind, Module: module, Err: err}
}

// WithComponent attaches a component index to an existing Error, returning
// a copy so the original is not mutated by callers that reuse it.
func WithComponent(err *Error, component int) *Error {
	cp := *err
	c := component
	cp.Component = &c
	return &cp
}
