package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds of the price pipeline. Match with errors.Is.
var (
	ErrSchema         = errors.New("schema error")
	ErrEmptyDataset   = errors.New("empty dataset")
	ErrPersistence    = errors.New("persistence error")
	ErrModelNotFound  = errors.New("model not found")
	ErrValidation     = errors.New("validation error")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// SchemaError reports required raw columns absent from a dataset.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: required columns missing: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// ValidationError reports a malformed or missing prediction field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
