// Package mlerror defines the error taxonomy shared by the ML pipeline.
// Callers match these with errors.As to decide whether a failure is
// retryable (insufficient data), permanent (schema), or a programming
// error (inference before training).
package mlerror

import (
	"fmt"
	"strings"
)

// SchemaError reports required input columns missing from a batch.
type SchemaError struct {
	Entity  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s batch is missing required columns: %s",
		e.Entity, strings.Join(e.Missing, ", "))
}

// InsufficientDataError reports a batch below the minimum volume a
// component needs. Got and Want let the caller decide to wait and retry.
type InsufficientDataError struct {
	Component string
	Unit      string
	Got       int
	Want      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need at least %d %s, got %d",
		e.Component, e.Want, e.Unit, e.Got)
}

// NotTrainedError reports inference attempted before a successful train.
type NotTrainedError struct {
	Component string
}

func (e *NotTrainedError) Error() string {
	return fmt.Sprintf("%s: model not trained", e.Component)
}

// DataValidationError aggregates structural validation failures found
// before a training run. It aborts the whole run.
type DataValidationError struct {
	Errors []string
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("training data validation failed: %s",
		strings.Join(e.Errors, "; "))
}

// ArtifactError reports a model artifact save or load failure.
type ArtifactError struct {
	Op   string
	Name string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact %s failed for %q: %v", e.Op, e.Name, e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}
