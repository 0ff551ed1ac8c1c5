// Package apperrors defines the error taxonomy the API surfaces to clients:
// authentication failures, business-rule violations, and missing resources.
package apperrors

import (
	"errors"
	"net/http"
)

// AuthError means the request carried no usable credential. It always maps
// to 401 and every variant uses an equally uninformative message so the
// response never reveals why the credential was rejected.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

func NewAuth(message string) *AuthError {
	return &AuthError{Message: message}
}

// GeneralError is a business-rule violation: permission denied, conflicts,
// invalid input. The status code is caller-specified and defaults to 400.
type GeneralError struct {
	Code    int
	Message string
}

func (e *GeneralError) Error() string { return e.Message }

func NewGeneral(message string) *GeneralError {
	return &GeneralError{Code: http.StatusBadRequest, Message: message}
}

func NewGeneralWithCode(code int, message string) *GeneralError {
	return &GeneralError{Code: code, Message: message}
}

// NotFoundError maps to 404.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func NewNotFound(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

// Status resolves err to the HTTP status and client-facing message it
// should produce. Unrecognized errors collapse to a generic 500 so that
// internal store failures never leak detail to the client.
func Status(err error) (int, string) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized, authErr.Message
	}

	var genErr *GeneralError
	if errors.As(err, &genErr) {
		return genErr.Code, genErr.Message
	}

	var nfErr *NotFoundError
	if errors.As(err, &nfErr) {
		return http.StatusNotFound, nfErr.Message
	}

	return http.StatusInternalServerError, "Internal server error"
}
