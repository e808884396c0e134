package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrAlreadyRunning     = errors.New("ingestion run already in progress")
)

// FeedError represents a per-feed fetch or parse failure. It is isolated to
// one feed and never fails the run.
type FeedError struct {
	Feed string
	URL  string
	Err  error
}

func (e FeedError) Error() string {
	return fmt.Sprintf("feed %s (%s): %v", e.Feed, e.URL, e.Err)
}

func (e FeedError) Unwrap() error {
	return e.Err
}

// DatabaseError represents a database-related error
type DatabaseError struct {
	Operation string
	Err       error
}

func (e DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e DatabaseError) Unwrap() error {
	return e.Err
}

// PipelineError represents an ingestion-run failure at a named stage
type PipelineError struct {
	Stage string
	Err   error
}

func (e PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %s: %v", e.Stage, e.Err)
}

func (e PipelineError) Unwrap() error {
	return e.Err
}
