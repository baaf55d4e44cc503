package main

import (
	"errors"
	"fmt"
)

// ErrorKind separates fetches that never produced a body from bodies that
// could not be read as a snapshot.
type ErrorKind string

const (
	ErrorKindNetwork ErrorKind = "network"
	ErrorKindParse   ErrorKind = "parse"
)

// FetchError is a failed snapshot fetch. Its message is what the dashboard
// shows to users.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	if e.Err == nil {
		return "Unknown error"
	}
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func networkError(err error) error {
	return &FetchError{Kind: ErrorKindNetwork, Err: err}
}

func statusError(code int) error {
	return &FetchError{Kind: ErrorKindNetwork, StatusCode: code}
}

func parseError(err error) error {
	return &FetchError{Kind: ErrorKindParse, Err: fmt.Errorf("invalid snapshot body: %w", err)}
}

// errorMessage is the user-visible text for any fetch failure.
func errorMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	if err == nil || err.Error() == "" {
		return "Unknown error"
	}
	return err.Error()
}
