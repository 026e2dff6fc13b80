package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers deciding whether to fix input, refresh state or retry.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindStore      Kind = "store"
)

// Code is the stable, user-facing reason attached to an error.
type Code string

const (
	CodeInvalidIdentity  Code = "invalid_identity"
	CodeInvalidGameType  Code = "invalid_game_type"
	CodeGameUnavailable  Code = "game_unavailable"
	CodeInvalidScore     Code = "invalid_score"
	CodeInvalidPoints    Code = "invalid_points"
	CodeInvalidAmount    Code = "invalid_amount"
	CodeAmountTooSmall   Code = "amount_too_small"
	CodeNothingToMint    Code = "nothing_to_mint"
	CodeExceedsAvailable Code = "exceeds_available"
	CodeInvalidPage      Code = "invalid_page"
	CodeInvalidLimit     Code = "invalid_limit"
	CodePlayerNotFound   Code = "player_not_found"
	CodeGameNotFound     Code = "game_not_found"
	CodeMintConflict     Code = "mint_conflict"
	CodeStoreFailure     Code = "store_failure"
)

// Error is the domain error type shared by the service, the stores and the transports.
type Error struct {
	Kind    Kind
	Code    Code
	Field   string // input field that failed validation, if any
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on kind, and on code when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Domain errors
var (
	ErrValidation = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict   = &Error{Kind: KindConflict, Message: "conflict"}
	ErrStore      = &Error{Kind: KindStore, Message: "store failure"}

	ErrPlayerNotFound = &Error{Kind: KindNotFound, Code: CodePlayerNotFound, Message: "player not found"}
	ErrGameNotFound   = &Error{Kind: KindNotFound, Code: CodeGameNotFound, Message: "game not found"}
	ErrMintConflict   = &Error{Kind: KindConflict, Code: CodeMintConflict, Message: "mint amount exceeds available points"}
)

// NewValidationError builds a validation error naming the offending field.
func NewValidationError(code Code, field, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Message: message}
}

// NewStoreError wraps a storage failure.
func NewStoreError(message string, cause error) *Error {
	return &Error{Kind: KindStore, Code: CodeStoreFailure, Message: message, Cause: cause}
}

// KindOf returns the kind of a domain error, or KindStore for anything else.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStore
}

// CodeOf returns the code of a domain error, or CodeStoreFailure for anything else.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	return CodeStoreFailure
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error was caused by bad input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflictError checks if a conditional update was rejected
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}
