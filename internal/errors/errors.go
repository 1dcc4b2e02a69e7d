// Package errors provides structured compile-error types and best-effort
// position extraction from the external transformer's diagnostic output.
//
// The transformer reports failures as pretty-printed text, not as a
// structured error channel. This package scrapes the known diagnostic frame
// format for a 1-based line and column so editors and overlays can jump to
// the offending location; when the frame is absent the error simply carries
// no position, which is a normal outcome rather than a failure.
package errors

import (
	"errors"
	"fmt"
)

// TransformError is a compile failure reported by the transformer for one
// file. Line and Column are 1-based; zero means the position is unknown.
type TransformError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface.
func (e *TransformError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// HasPosition reports whether a source position was recovered.
func (e *TransformError) HasPosition() bool {
	return e.Line > 0
}

// Enrich annotates a TransformError with the line and column scraped from
// its diagnostic message, when the known frame pattern is present. Other
// error types pass through untouched.
func Enrich(err error) error {
	var te *TransformError
	if !errors.As(err, &te) {
		return err
	}
	if te.Line == 0 {
		if line, column, ok := ParsePosition(te.Message); ok {
			te.Line = line
			te.Column = column
		}
	}
	return err
}
