package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")
var ErrorUnauthorized = errors.New("unauthorized")
var ErrorRateLimited = errors.New("too many requests")

// Capability link failure modes. Handlers must present all three as one
// neutral "link unavailable" response; the distinction exists for logs
// and the audit trail only.
var (
	ErrorTokenInvalid  = errors.New("token invalid")
	ErrorTokenExpired  = errors.New("token expired")
	ErrorReportRevoked = errors.New("report revoked")
)

func IsLinkUnavailable(err error) bool {
	return errors.Is(err, ErrorTokenInvalid) ||
		errors.Is(err, ErrorTokenExpired) ||
		errors.Is(err, ErrorReportRevoked)
}

// ValidationError carries field-level messages for a 400 response body.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for field, msg := range e.Fields {
		return field + ": " + msg
	}
	return "validation failed"
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields[field] = message
	return e
}

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
