package idealista

import (
	"errors"
	"fmt"
)

// ValidationKind classifies a ValidationError
type ValidationKind string

const (
	InvalidEnumValue  ValidationKind = "INVALID_ENUM_VALUE"
	AmbiguousLocation ValidationKind = "AMBIGUOUS_LOCATION"
	MissingField      ValidationKind = "MISSING_FIELD"
)

// ValidationError is returned before any network call when a request cannot be built.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("idealista: %s", e.Message)
	}
	return fmt.Sprintf("idealista: invalid %s: %s", e.Field, e.Message)
}

func newEnumError(field, value string) *ValidationError {
	return &ValidationError{
		Kind:    InvalidEnumValue,
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("%q is not a known value", value),
	}
}

// IsValidationKind reports whether err is a ValidationError of the given kind
func IsValidationKind(err error, kind ValidationKind) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr) && vErr.Kind == kind
}

// AuthenticationError wraps any failure raised while obtaining a token.
type AuthenticationError struct {
	ClientID string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("idealista: authentication failed for client %s: %v", e.ClientID, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// APIRequestError carries a non-2xx response from the search endpoint.
type APIRequestError struct {
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *APIRequestError) Error() string {
	return fmt.Sprintf("idealista: request to %s failed: %s, response: %s", e.URL, e.Status, string(e.Body))
}
