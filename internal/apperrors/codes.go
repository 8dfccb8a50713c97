// Package apperrors provides the error taxonomy shared by the marketplace core.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Lifecycle errors
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// Scheduling errors
	CodeSlotConflict    Code = "SLOT_CONFLICT"
	CodeSlotUnavailable Code = "SLOT_UNAVAILABLE"

	// Verification errors
	CodeStaleVerificationStep Code = "STALE_VERIFICATION_STEP"

	// Storage errors
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
	CodeNotFound           Code = "NOT_FOUND"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeForbidden       Code = "FORBIDDEN"
)

// Error is a domain error carrying a code and optional structured fields.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithField returns the error with an extra structured field.
func (e *Error) WithField(key, value string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[key] = value
	return e
}

// InvalidTransition reports a status change that is not permitted from the current state.
func InvalidTransition(entity string, from, to string) *Error {
	return New(CodeInvalidTransition, fmt.Sprintf("%s cannot move from %s to %s", entity, from, to)).
		WithField("entity", entity).
		WithField("from", from).
		WithField("to", to)
}

// SlotConflict reports an overlap with an existing booking.
func SlotConflict(providerID, date, start, end string) *Error {
	return New(CodeSlotConflict, fmt.Sprintf("%s %s-%s overlaps an existing booking", date, start, end)).
		WithField("provider_id", providerID).
		WithField("date", date).
		WithField("start_time", start).
		WithField("end_time", end)
}

// NotFound reports a missing record.
func NotFound(entity, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s %s not found", entity, id)).
		WithField("entity", entity).
		WithField("id", id)
}

// Persistence wraps a storage failure.
func Persistence(op string, cause error) *Error {
	return Wrap(CodePersistenceFailure, op, cause)
}

// CodeOf extracts the domain code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidTransition, CodeSlotConflict, CodeSlotUnavailable, CodeStaleVerificationStep:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the actionable text a client screen should present.
func UserMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return "Something went wrong. Please try again."
	}
	switch appErr.Code {
	case CodeSlotConflict:
		return "This time slot was just taken. Please pick another one."
	case CodeSlotUnavailable:
		return "The provider has no free slot for this time."
	case CodeInvalidTransition:
		entity := appErr.Fields["entity"]
		if entity == "" {
			entity = "task"
		}
		if appErr.Fields["from"] == "cancelled" {
			return fmt.Sprintf("This %s was cancelled and can no longer be changed.", entity)
		}
		return fmt.Sprintf("You cannot %s a %s that is %s.", verbFor(appErr.Fields["to"]), entity, phraseFor(appErr.Fields["from"]))
	case CodeStaleVerificationStep:
		return "This verification has expired. Please submit it again."
	case CodeNotFound:
		return "We could not find what you were looking for."
	case CodeInvalidArgument, CodeForbidden:
		return appErr.Message
	default:
		return "We could not save your change. Please try again."
	}
}

func verbFor(to string) string {
	switch to {
	case "posted":
		return "publish"
	case "applications":
		return "accept"
	case "in_progress":
		return "start"
	case "completed":
		return "complete"
	case "cancelled":
		return "cancel"
	case "submitted":
		return "submit"
	case "approved":
		return "approve"
	case "rejected":
		return "reject"
	case "pending":
		return "resubmit"
	default:
		return "change"
	}
}

// phraseFor describes a state the way a user would read it
func phraseFor(from string) string {
	switch from {
	case "draft":
		return "still a draft"
	case "posted":
		return "still open"
	case "applications":
		return "already accepted"
	case "selected":
		return "already assigned"
	case "in_progress":
		return "already in progress"
	case "completed":
		return "already completed"
	case "disputed":
		return "under dispute"
	case "pending":
		return "still pending"
	case "submitted":
		return "already submitted"
	case "approved":
		return "already approved"
	case "rejected":
		return "rejected"
	default:
		return strings.ReplaceAll(from, "_", " ")
	}
}
