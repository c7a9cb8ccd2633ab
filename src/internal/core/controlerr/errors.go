// Package controlerr defines the structured error type the control plane
// uses for client-visible subrequest failures and for internal errors that
// propagate out of a call's overall result.
package controlerr

import (
	"errors"
	"fmt"
)

// DomainError is a structured error carrying a stable code alongside a
// human-readable message, distinguishing client-visible failure reasons
// (returned inline per subrequest, per spec §7 kind 1) from errors that
// fail a whole call (kind 3).
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a DomainError with the given code and message.
func New(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of the error wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// Is reports whether err is a DomainError with the given code. An empty
// code matches any DomainError.
func Is(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return code == "" || de.Code == code
	}
	return false
}

// Code extracts the error code from err if it is a DomainError.
func Code(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Subrequest failure reasons (spec §6, §7 kind 1): returned inline in a
// GetOrCreateOpenShardsResponse failure entry, never as a call-level error.
var (
	ErrIndexNotFound        = New("SHARDCTL-RESOLVE-4040", "index not found")
	ErrSourceNotFound       = New("SHARDCTL-RESOLVE-4041", "source not found")
	ErrNoIngestersAvailable = New("SHARDCTL-RESOLVE-5030", "no ingesters available")
)

// Metastore errors (spec §7 kind 3): in the Resolver these propagate as the
// call's overall result; in the Autoscaler they release the operation's
// permit and are dropped without logging; in the Rebalancer they are
// logged, with no further effect.
var (
	ErrMetastoreUnavailable = New("SHARDCTL-METASTORE-5030", "metastore unavailable")
	ErrMetastoreRejected    = New("SHARDCTL-METASTORE-4000", "metastore rejected request")
)

// Transient RPC errors (spec §7 kind 2): an affected shard allocation is
// dropped from the current batch; the controller never retries internally.
var (
	ErrIngesterUnreachable = New("SHARDCTL-INGESTER-5030", "ingester unreachable")
	ErrIngesterTimeout     = New("SHARDCTL-INGESTER-5040", "ingester request timed out")
)

// ErrInvariantViolation marks a condition spec §7 kind 4 says should never
// occur (e.g. init succeeding for an unknown index). Callers that detect
// one should panic rather than attempt to continue with a stale Model.
var ErrInvariantViolation = New("SHARDCTL-SYS-5000", "invariant violation")
