package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeNotFound          ErrorType = "NOT_FOUND"
	ErrorTypeValidation        ErrorType = "VALIDATION"
	ErrorTypeInternal          ErrorType = "INTERNAL"
	ErrorTypeLockConflict      ErrorType = "LOCK_CONFLICT"
	ErrorTypeVersionNotFound   ErrorType = "VERSION_NOT_FOUND"
	ErrorTypePatchApplyFailure ErrorType = "PATCH_APPLY_FAILURE"
	ErrorTypeWriteFailure      ErrorType = "WRITE_FAILURE"
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

// Sentinels for errors.Is. Matching is by Type only.
var (
	ErrLockConflict      = &Error{Type: ErrorTypeLockConflict, Message: "path is locked", Code: http.StatusConflict}
	ErrVersionNotFound   = &Error{Type: ErrorTypeVersionNotFound, Message: "version not found", Code: http.StatusNotFound}
	ErrPatchApplyFailure = &Error{Type: ErrorTypePatchApplyFailure, Message: "patch does not apply", Code: http.StatusUnprocessableEntity}
	ErrWriteFailure      = &Error{Type: ErrorTypeWriteFailure, Message: "write failed", Code: http.StatusBadGateway}
	ErrValidation        = &Error{Type: ErrorTypeValidation, Message: "invalid request", Code: http.StatusBadRequest}
	ErrNotFound          = &Error{Type: ErrorTypeNotFound, Message: "not found", Code: http.StatusNotFound}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func Internal(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
		Err:     err,
	}
}

// LockConflict reports an edit attempted on a path whose lock is held.
func LockConflict(path string) *Error {
	return &Error{
		Type:    ErrorTypeLockConflict,
		Message: fmt.Sprintf("file %s is currently locked", path),
		Code:    http.StatusConflict,
		Details: map[string]string{"path": path},
	}
}

func VersionNotFound(id string) *Error {
	return &Error{
		Type:    ErrorTypeVersionNotFound,
		Message: fmt.Sprintf("version not found: %s", id),
		Code:    http.StatusNotFound,
		Details: map[string]string{"version_id": id},
	}
}

// PatchApplyFailure reports a stored diff that no longer inverts cleanly,
// usually because the file was changed behind the engine's back.
func PatchApplyFailure(path string, err error) *Error {
	return &Error{
		Type:    ErrorTypePatchApplyFailure,
		Message: fmt.Sprintf("reverting %s", path),
		Code:    http.StatusUnprocessableEntity,
		Details: map[string]string{"path": path},
		Err:     err,
	}
}

func WriteFailure(path string, err error) *Error {
	return &Error{
		Type:    ErrorTypeWriteFailure,
		Message: fmt.Sprintf("writing %s", path),
		Code:    http.StatusBadGateway,
		Details: map[string]string{"path": path},
		Err:     err,
	}
}

// StatusCode returns the HTTP status for err, falling back to 500.
func StatusCode(err error) int {
	if e, ok := As(err); ok && e.Code != 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}

// As unwraps err to the first *Error in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}
