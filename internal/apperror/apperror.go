// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values that wrap one of the sentinel errors below.
// Handlers never inspect message text; they use errors.Is against the
// sentinels to pick an HTTP status and a machine-readable kind, and pass the
// human-readable Message through to the caller unchanged.
//
// TAXONOMY:
//
//	ErrValidation       missing or malformed input
//	ErrConflict         handle or contact already taken
//	ErrAuthentication   bad credentials, not logged in
//	ErrPendingApproval  correct credentials, account not approved yet
//	ErrForbidden        actor's role is insufficient for the action
//	ErrSelfAction       actor targets itself where that is not allowed
//	ErrNotFound         target id does not exist
//	ErrState            target exists but is not in the expected state
//	ErrUnavailable      storage failure; details are logged, never returned
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("forbidden")
	ErrAuthentication = errors.New("authentication failed")
	ErrSelfAction     = errors.New("self action")
	ErrState          = errors.New("invalid state")
	ErrUnavailable    = errors.New("service unavailable")

	// ErrPendingApproval is an authentication failure, so errors.Is matches
	// both ErrPendingApproval and ErrAuthentication.
	ErrPendingApproval = fmt.Errorf("pending approval: %w", ErrAuthentication)
)

// Messages shown to callers. They mirror the wording the member site has
// always used, so existing front-ends keep matching on them.
const (
	MsgInvalidCredentials = "Invalid username or password"
	MsgPendingApproval    = "Your account is pending approval by administrators"
	MsgNotLoggedIn        = "Not logged in"
	MsgUnavailable        = "Service temporarily unavailable"
)

type AppError struct {
	Err     error  // sentinel
	Message string // human-readable, safe to show
	Field   string // optional: input field at fault
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation. The message is supplied by the
// caller because it is shown verbatim.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InvalidCredentials is deliberately identical for unknown handles and
// wrong secrets.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrAuthentication,
		Message: MsgInvalidCredentials,
	}
}

func PendingApproval() *AppError {
	return &AppError{
		Err:     ErrPendingApproval,
		Message: MsgPendingApproval,
	}
}

func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrAuthentication,
		Message: MsgNotLoggedIn,
	}
}

func SelfAction(message string) *AppError {
	return &AppError{
		Err:     ErrSelfAction,
		Message: message,
	}
}

func InvalidState(message string) *AppError {
	return &AppError{
		Err:     ErrState,
		Message: message,
	}
}

func Unavailable() *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: MsgUnavailable,
	}
}

// Kind returns a short machine-readable name for err, suitable for a JSON
// "error" field or a metrics label. Errors outside the taxonomy are
// "internal_error".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPendingApproval):
		return "pending_approval"
	case errors.Is(err, ErrAuthentication):
		return "authentication_error"
	case errors.Is(err, ErrSelfAction):
		return "self_action"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrState):
		return "invalid_state"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "internal_error"
	}
}
