package models

import (
	"errors"
	"fmt"
)

// MissingColumnError reports a required column absent from an input table.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q is missing", e.Column)
}

// SchemaMismatchError reports an inference table that does not match the
// column roles fixed when the preprocessor was fitted.
type SchemaMismatchError struct {
	Column   string
	Expected string
	Actual   string
}

func (e *SchemaMismatchError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("schema mismatch: column %q (%s) is missing", e.Column, e.Expected)
	}
	return fmt.Sprintf("schema mismatch: column %q expected %s, got %s", e.Column, e.Expected, e.Actual)
}

// ModelNotFoundError reports a missing persisted pipeline.
type ModelNotFoundError struct {
	Path string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model artifact not found at %s", e.Path)
}

// EmptyInputError reports an inference request with zero rows.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string { return "input contains no rows" }

// UnsupportedFormatError reports a data file with an unknown extension.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q: %s", e.Ext, e.Path)
}

// ErrEmptyTrainSplit is returned when the chronological split leaves no
// training rows.
var ErrEmptyTrainSplit = errors.New("training split is empty")

// ErrNoCandidates is returned when training is configured without regressors.
var ErrNoCandidates = errors.New("no candidate models configured")
