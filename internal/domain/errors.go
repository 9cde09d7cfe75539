package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports every required column missing from a dataset.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing columns in input file: %s", strings.Join(e.Missing, ", "))
}

// SchemaError is the reconciliation flavour of ValidationError: one of the
// two snapshots lacks the identifier, remark or status field.
type SchemaError struct {
	Artifact string
	Missing  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s is missing required columns: %s", e.Artifact, strings.Join(e.Missing, ", "))
}

// ParseError is row-level and never aborts an operation.
type ParseError struct {
	CaseNumber string
	Value      string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("case %s: cannot parse date %q: %v", e.CaseNumber, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IOError wraps a failed read, copy or write of an artifact.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
