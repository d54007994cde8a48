// Package util provides logging, common error types and address helpers.
package util

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// test with errors.Is.
var (
	ErrNotFound          = errors.New("alias not found")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrRemoteRequest     = errors.New("controller request failed")
	ErrAuthMissing       = errors.New("auth token unavailable")
)

// NotFoundError reports an alias that matched no cached network or member.
type NotFoundError struct {
	Alias string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no network or member aliased %q", e.Alias)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not-found error for alias
func NewNotFoundError(alias string) *NotFoundError {
	return &NotFoundError{Alias: alias}
}

// IdentifierError reports a network or member identifier of the wrong length.
type IdentifierError struct {
	Kind  string // "network" or "member"
	Value string
	Want  string
}

func (e *IdentifierError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s identifier required (%s)", e.Kind, e.Want)
	}
	return fmt.Sprintf("invalid %s identifier %q: want %s", e.Kind, e.Value, e.Want)
}

func (e *IdentifierError) Unwrap() error {
	return ErrInvalidIdentifier
}

// NewIdentifierError creates an identifier error
func NewIdentifierError(kind, value, want string) *IdentifierError {
	return &IdentifierError{Kind: kind, Value: value, Want: want}
}

// ArgumentError reports a malformed address or prefix argument.
type ArgumentError struct {
	Name  string
	Value string
	Err   error
}

func (e *ArgumentError) Error() string {
	msg := fmt.Sprintf("invalid %s %q", e.Name, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// NewArgumentError creates an argument error
func NewArgumentError(name, value string, err error) *ArgumentError {
	return &ArgumentError{Name: name, Value: value, Err: err}
}

// RemoteError represents a failed call to the controller API: a transport
// error, a non-success status, or a body that is not the expected JSON.
type RemoteError struct {
	Method string
	Path   string
	Status int // 0 when no response was received
	Body   string
	Err    error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Method, e.Path)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += " (" + e.Body + ")"
	}
	return msg
}

// Is matches ErrRemoteRequest while Unwrap exposes the transport cause.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteRequest
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// AuthError reports an unreadable controller auth token file.
type AuthError struct {
	Path string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("reading auth token %s: %v", e.Path, e.Err)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthMissing
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
