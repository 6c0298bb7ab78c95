package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Kind classifies an error for the centralized error renderer.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindRateLimited  Kind = "rate_limited"
	KindOperational  Kind = "operational"
	KindInternal     Kind = "internal"
)

// Error is the error type every layer forwards to the error handler.
// Message is always safe to show to clients; Err carries the cause.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code that belongs to the error kind.
func (e *Error) HTTPStatus() int {
	if e.Code != 0 {
		return e.Code
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Status is "fail" for client errors and "error" for server errors.
func (e *Error) Status() string {
	if e.HTTPStatus() < 500 {
		return "fail"
	}
	return "error"
}

// IsOperational reports whether the message may be shown in production.
func (e *Error) IsOperational() bool {
	return e.Kind != KindInternal
}

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func RateLimited(msg string) *Error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

// Operational wraps an expected infrastructure failure (provider down, mail
// rejected) with a message that is safe to return.
func Operational(msg string, err error) *Error {
	return &Error{Kind: KindOperational, Message: msg, Err: err}
}

// Internal wraps an unexpected failure; its message is hidden in production.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Something went very wrong!", Err: err}
}

// From classifies any error returned by the stack into an *Error.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fromValidation(verrs)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		return &Error{Kind: kindForStatus(he.Code), Code: he.Code, Message: msg, Err: he.Internal}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("No document found with that ID")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Validation("Duplicate field value. Please use another value!", nil)
	case errors.Is(err, jwt.ErrTokenExpired):
		return Unauthorized("Your token has expired! Please log in again.")
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable), errors.Is(err, jwt.ErrTokenInvalidClaims):
		return Unauthorized("Invalid token. Please log in again!")
	}

	return Internal(err)
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return KindValidation
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return KindNotFound
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusTooManyRequests:
		return KindRateLimited
	}
	if code >= 500 {
		return KindOperational
	}
	return KindValidation
}

func fromValidation(verrs validator.ValidationErrors) *Error {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return Validation(joinFieldMessages(fields), fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "email":
		return "Please provide a valid email"
	case "username":
		return "Name can only contain letters, numbers, space, '_', '-' and '$'"
	}
	return fmt.Sprintf("%s is invalid (%v)", fe.Field(), fe.Value())
}

// JoinFields builds a validation error out of field level messages.
func JoinFields(fields map[string]string) *Error {
	return Validation(joinFieldMessages(fields), fields)
}

func joinFieldMessages(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k])
	}
	return "Invalid input data. " + strings.Join(msgs, ". ")
}
