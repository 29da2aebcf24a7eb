package errcodes

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Codes that callers branch on.
const (
	CodeNotFound      = "not_found"
	CodeForbidden     = "forbidden"
	CodeConflict      = "conflict"
	CodeInvalidState  = "invalid_state"
	CodeLimitExceeded = "limit_exceeded"
	CodeValidation    = "validation_error"
)

// Details carries the identifiers and limits involved in an error so that a
// caller can decide what to do without another lookup.
type Details map[string]interface{}

type Error struct {
	HTTPCode int
	Message  string
	Code     string
	Details  Details
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	te.Details = err.Details
	return true
}

// Is matches on code, status and message. Details are deliberately ignored so
// that sentinel comparisons keep working.
func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// WithDetails returns a copy of err with the given details attached. Errors
// that aren't *Error are returned unchanged.
func WithDetails(err error, details Details) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Details = details
	return &cp
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if ok := errors.As(err, &e); !ok {
		return false
	}
	return e.Code == code
}

// Forbidden returns a 403 error with a message indicating the action is
// forbidden.
func Forbidden(action string) error {
	return &Error{
		HTTPCode: http.StatusForbidden,
		Message:  action + " is not allowed.",
		Code:     CodeForbidden,
	}
}

func Unauthorized(msg string) error {
	return &Error{
		HTTPCode: http.StatusUnauthorized,
		Message:  msg,
		Code:     "unauthorized",
	}
}

// PasswordResetRequired is returned for every request other than the
// password change itself while a user still has a temporary password.
func PasswordResetRequired() error {
	return &Error{
		HTTPCode: http.StatusForbidden,
		Message:  "You must change your password before continuing.",
		Code:     "password_reset_required",
	}
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		HTTPCode: http.StatusNotFound,
		Message:  resource + " not found.",
		Code:     CodeNotFound,
	}
}

// NotFoundID is NotFound with the missing identifier attached.
func NotFoundID(resource string, id int) error {
	return &Error{
		HTTPCode: http.StatusNotFound,
		Message:  fmt.Sprintf("%s %d not found.", resource, id),
		Code:     CodeNotFound,
		Details:  Details{"resource": resource, "id": id},
	}
}

// Conflict is returned when a write would break a uniqueness or exclusivity
// rule. Callers may retry against fresh state.
func Conflict(msg string, details Details) error {
	return &Error{
		HTTPCode: http.StatusConflict,
		Message:  msg,
		Code:     CodeConflict,
		Details:  details,
	}
}

// InvalidState is returned when an operation isn't legal for the current
// status of a record.
func InvalidState(msg string, details Details) error {
	return &Error{
		HTTPCode: http.StatusConflict,
		Message:  msg,
		Code:     CodeInvalidState,
		Details:  details,
	}
}

// LimitExceeded is returned when a counted operation has hit its cap.
func LimitExceeded(msg string, details Details) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  msg,
		Code:     CodeLimitExceeded,
		Details:  details,
	}
}

func BadRequest(msg string) error {
	return &Error{
		HTTPCode: http.StatusBadRequest,
		Message:  msg,
		Code:     "bad_request",
	}
}

func PayloadTooLarge(limitMB int) error {
	return &Error{
		HTTPCode: http.StatusRequestEntityTooLarge,
		Message:  fmt.Sprintf("File exceeds the %d MB upload limit.", limitMB),
		Code:     "payload_too_large",
		Details:  Details{"limit_mb": limitMB},
	}
}

func UnsupportedMediaType() error {
	return &Error{
		HTTPCode: http.StatusUnsupportedMediaType,
		Message:  "Unsupported Media Type",
		Code:     "unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  fmt.Sprintf("Unknown Parameter %q", param),
		Code:     "unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  msg,
		Code:     "validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  msg,
		Code:     CodeValidation,
	}
}

func MalformedPayload() error {
	return &Error{
		HTTPCode: http.StatusBadRequest,
		Message:  "Malformed Payload",
		Code:     "malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		HTTPCode: http.StatusBadRequest,
		Message:  "Request body can't be empty.",
		Code:     "empty_request_body",
	}
}
