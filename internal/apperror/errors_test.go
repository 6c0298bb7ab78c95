package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   Kind
		wantMsg    string
	}{
		{
			name:       "record not found",
			err:        fmt.Errorf("load tour: %w", gorm.ErrRecordNotFound),
			wantStatus: http.StatusNotFound,
			wantKind:   KindNotFound,
			wantMsg:    "No document found with that ID",
		},
		{
			name:       "duplicated key",
			err:        gorm.ErrDuplicatedKey,
			wantStatus: http.StatusBadRequest,
			wantKind:   KindValidation,
			wantMsg:    "Duplicate field value. Please use another value!",
		},
		{
			name:       "expired token",
			err:        fmt.Errorf("parse: %w", jwt.ErrTokenExpired),
			wantStatus: http.StatusUnauthorized,
			wantKind:   KindUnauthorized,
			wantMsg:    "Your token has expired! Please log in again.",
		},
		{
			name:       "malformed token",
			err:        jwt.ErrTokenMalformed,
			wantStatus: http.StatusUnauthorized,
			wantKind:   KindUnauthorized,
			wantMsg:    "Invalid token. Please log in again!",
		},
		{
			name:       "echo http error",
			err:        echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request Entity Too Large"),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantKind:   KindValidation,
			wantMsg:    "Request Entity Too Large",
		},
		{
			name:       "echo not found",
			err:        echo.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantKind:   KindNotFound,
			wantMsg:    "Not Found",
		},
		{
			name:       "wrapped app error is kept",
			err:        fmt.Errorf("ctx: %w", Forbidden("nope")),
			wantStatus: http.StatusForbidden,
			wantKind:   KindForbidden,
			wantMsg:    "nope",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   KindInternal,
			wantMsg:    "Something went very wrong!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.HTTPStatus())
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
}

func TestFromNil(t *testing.T) {
	assert.Nil(t, From(nil))
}

func TestFromValidationErrors(t *testing.T) {
	type payload struct {
		Name  string  `json:"name" validate:"required"`
		Price float64 `json:"price" validate:"gt=0"`
	}
	v := validator.New()
	err := v.Struct(payload{Price: -1})
	require.Error(t, err)

	got := From(err)
	assert.Equal(t, http.StatusBadRequest, got.HTTPStatus())
	assert.Equal(t, "fail", got.Status())
	assert.Contains(t, got.Fields, "Name")
	assert.Contains(t, got.Fields, "Price")
	assert.Contains(t, got.Message, "Invalid input data. ")
}

func TestStatusAndOperational(t *testing.T) {
	assert.Equal(t, "fail", NotFound("x").Status())
	assert.Equal(t, "error", Internal(errors.New("x")).Status())
	assert.Equal(t, http.StatusTooManyRequests, RateLimited("slow down").HTTPStatus())

	assert.True(t, Validation("bad", nil).IsOperational())
	assert.True(t, Operational("mail down", errors.New("smtp")).IsOperational())
	assert.False(t, Internal(errors.New("nil map")).IsOperational())
}

func TestJoinFieldsIsSorted(t *testing.T) {
	err := JoinFields(map[string]string{
		"passwordConfirm": "Passwords are not the same!",
		"password":        "Please provide a password",
	})
	assert.Equal(t, "Invalid input data. Please provide a password. Passwords are not the same!", err.Message)
	assert.Len(t, err.Fields, 2)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("smtp 550")
	err := Operational("There was an error sending the email. Try again later!", cause)
	assert.ErrorIs(t, err, cause)
}
