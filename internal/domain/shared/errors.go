// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. Every failure that crosses a component boundary carries exactly
// one of these so callers can branch with errors.Is().
var (
	// ErrInvalidInput covers missing or malformed fields and malformed ids.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrForbidden means the ownership check failed.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidOperation covers self-follow, duplicate playlist membership,
	// empty updates and similar rule violations.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnavailable is a store timeout or transient failure. Safe to retry
	// the whole logical operation.
	ErrUnavailable = errors.New("service unavailable")

	// ErrUnauthorized is raised at the HTTP boundary when no caller identity
	// was supplied by the identity collaborator.
	ErrUnauthorized = errors.New("unauthorized")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "content", "social", "playlist"
	Op      string // Operation that failed, e.g., "Create", "Toggle"
	Kind    error  // Base error kind for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Content domain errors
var (
	ErrContentNotFound   = NewDomainError("content", "Find", ErrNotFound, "content item not found")
	ErrContentOwnerEmpty = NewDomainError("content", "Validate", ErrInvalidInput, "owner is required")
	ErrContentEmpty      = NewDomainError("content", "Validate", ErrInvalidInput, "title or body is required")
	ErrEmptyUpdate       = NewDomainError("content", "Update", ErrInvalidOperation, "update contains no changes")
	ErrMediaRequired     = NewDomainError("content", "Validate", ErrInvalidInput, "video requires a media file")
)

// Actor domain errors
var (
	ErrActorNotFound = NewDomainError("actor", "Find", ErrNotFound, "actor not found")
	ErrInvalidHandle = NewDomainError("actor", "Validate", ErrInvalidInput, "invalid handle")
)

// Social domain errors
var (
	ErrEdgeNotFound    = NewDomainError("social", "FindEdge", ErrNotFound, "edge not found")
	ErrSelfFollow      = NewDomainError("social", "Toggle", ErrInvalidOperation, "cannot follow yourself")
	ErrInvalidEdgeKind = NewDomainError("social", "Validate", ErrInvalidInput, "invalid edge kind")
	ErrTargetMismatch  = NewDomainError("social", "Validate", ErrInvalidInput, "target type does not match edge kind")
)

// Playlist domain errors
var (
	ErrPlaylistNotFound      = NewDomainError("playlist", "Find", ErrNotFound, "playlist not found")
	ErrPlaylistNameRequired  = NewDomainError("playlist", "Validate", ErrInvalidInput, "playlist name is required")
	ErrDuplicatePlaylistItem = NewDomainError("playlist", "AddItem", ErrInvalidOperation, "content is already in the playlist")
	ErrPlaylistItemMissing   = NewDomainError("playlist", "RemoveItem", ErrInvalidOperation, "content is not in the playlist")
)

// Comment domain errors
var (
	ErrCommentNotFound = NewDomainError("comment", "Find", ErrNotFound, "comment not found")
	ErrCommentEmpty    = NewDomainError("comment", "Validate", ErrInvalidInput, "comment body is required")
)

// Ownership errors
var (
	ErrNotOwner = NewDomainError("ownership", "Authorize", ErrForbidden, "only the owner can modify this entity")
)

// ValidateID checks that raw is a well-formed entity id (UUID).
func ValidateID(domain, field, raw string) error {
	if raw == "" {
		return NewDomainError(domain, "Validate", ErrInvalidInput, field+" is required")
	}
	if _, err := uuid.Parse(raw); err != nil {
		return WrapError(domain, "Validate", ErrInvalidInput, "malformed "+field, err)
	}
	return nil
}

// NewID generates a new entity id.
func NewID() string {
	return uuid.NewString()
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if the error is an ownership failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsInvalidInput checks if the error is a validation error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInvalidOperation checks if the error is a rule violation.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// KindOf returns the error kind carried by err. Unknown errors are reported
// as ErrUnavailable so nothing untranslated leaks across a boundary.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidInput,
		ErrNotFound,
		ErrForbidden,
		ErrInvalidOperation,
		ErrUnauthorized,
		ErrUnavailable,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnavailable
}

// Unavailable wraps a store failure as a retryable domain error.
func Unavailable(domain, op string, err error) error {
	return WrapError(domain, op, ErrUnavailable, "storage unavailable", err)
}
