package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes surfaced to callers. Screens display Message verbatim and only
// branch on Code when they need to.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeEmailInUse         = "EMAIL_IN_USE"
	CodeAuth               = "AUTH_FAILED"
	CodeProfileCreation    = "PROFILE_CREATION_FAILED"
	CodeProfileNotFound    = "PROFILE_NOT_FOUND"
	CodeRoleMissing        = "ROLE_MISSING"
	CodeNotAuthenticated   = "NOT_AUTHENTICATED"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeTicketNotFound     = "TICKET_NOT_FOUND"
	CodeSignOut            = "SIGN_OUT_FAILED"
	CodeForbidden          = "FORBIDDEN"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// Wrap attaches the underlying cause to a DomainError without changing its message.
func Wrap(de *DomainError, cause error) *DomainError {
	de.Err = cause
	return de
}

func NewValidationError(message string, details map[string]any) *DomainError {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewInvalidCredentials() *DomainError {
	return NewDomainError(CodeInvalidCredentials, "Incorrect email or password", http.StatusUnauthorized, nil)
}

func NewUserNotFound() *DomainError {
	return NewDomainError(CodeUserNotFound, "No account found with this email", http.StatusUnauthorized, nil)
}

func NewInvalidEmail() *DomainError {
	return NewDomainError(CodeInvalidEmail, "Invalid email address", http.StatusBadRequest, nil)
}

func NewEmailInUse() *DomainError {
	return NewDomainError(CodeEmailInUse, "An account with this email already exists", http.StatusConflict, nil)
}

func NewAuthError(message string) *DomainError {
	if message == "" {
		message = "Authentication failed"
	}
	return NewDomainError(CodeAuth, message, http.StatusUnauthorized, nil)
}

func NewProfileCreationError() *DomainError {
	return NewDomainError(CodeProfileCreation, "Failed to create user profile", http.StatusInternalServerError, nil)
}

func NewProfileNotFound() *DomainError {
	return NewDomainError(CodeProfileNotFound, "User profile not found", http.StatusNotFound, nil)
}

func NewRoleMissing() *DomainError {
	return NewDomainError(CodeRoleMissing, "User role not set", http.StatusForbidden, nil)
}

func NewNotAuthenticated() *DomainError {
	return NewDomainError(CodeNotAuthenticated, "You must be signed in", http.StatusUnauthorized, nil)
}

func NewInvalidStatus(allowed []string) *DomainError {
	return NewDomainError(CodeInvalidStatus,
		"Invalid status. Must be one of: "+strings.Join(allowed, ", "),
		http.StatusBadRequest,
		map[string]any{"allowed": allowed})
}

func NewTicketNotFound(id string) *DomainError {
	return NewDomainError(CodeTicketNotFound, "Ticket not found", http.StatusNotFound, map[string]any{"ticket_id": id})
}

func NewSignOutError() *DomainError {
	return NewDomainError(CodeSignOut, "Failed to sign out", http.StatusInternalServerError, nil)
}

func NewForbidden(message string) *DomainError {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) *DomainError {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Something went wrong, please try again",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInternal wraps an unexpected failure with a caller-facing message.
func NewInternal(message string, err error) *DomainError {
	de := NewInternalError(err)
	if message != "" {
		de.Message = message
	}
	return de
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
