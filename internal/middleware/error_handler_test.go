package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"natours_echo/internal/apperror"
	"natours_echo/internal/middleware"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		production  bool
		path        string
		err         error
		wantCode    int
		wantJSON    bool
		wantBody    string
		notWantBody string
	}{
		{
			name:     "api not found",
			path:     "/api/v1/tours/x",
			err:      apperror.NotFound("No tour found with that ID"),
			wantCode: http.StatusNotFound,
			wantJSON: true,
			wantBody: `"message":"No tour found with that ID"`,
		},
		{
			name:     "api validation fields",
			path:     "/api/v1/tours",
			err:      apperror.JoinFields(map[string]string{"name": "name is required"}),
			wantCode: http.StatusBadRequest,
			wantJSON: true,
			wantBody: `"errors":{"name":"name is required"}`,
		},
		{
			name:        "production hides internal errors",
			production:  true,
			path:        "/api/v1/tours",
			err:         errors.New("pq: connection refused"),
			wantCode:    http.StatusInternalServerError,
			wantJSON:    true,
			wantBody:    `"message":"Something went very wrong!"`,
			notWantBody: "connection refused",
		},
		{
			name:     "development shows cause",
			path:     "/api/v1/tours",
			err:      errors.New("pq: connection refused"),
			wantCode: http.StatusInternalServerError,
			wantJSON: true,
			wantBody: `"error":"pq: connection refused"`,
		},
		{
			name:       "production keeps operational messages",
			production: true,
			path:       "/api/v1/users/forgotPassword",
			err:        apperror.Operational("There was an error sending the email. Try again later!", errors.New("smtp")),
			wantCode:   http.StatusInternalServerError,
			wantJSON:   true,
			wantBody:   "There was an error sending the email. Try again later!",
		},
		{
			name:     "page error renders html",
			path:     "/tour/unknown",
			err:      apperror.NotFound("There is no tour with that name."),
			wantCode: http.StatusNotFound,
			wantBody: "There is no tour with that name.",
		},
		{
			name:        "production page hides server errors",
			production:  true,
			path:        "/me",
			err:         errors.New("template exploded"),
			wantCode:    http.StatusInternalServerError,
			wantBody:    "Please try again later.",
			notWantBody: "exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			middleware.NewErrorHandler(tt.production)(tt.err, c)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantJSON {
				assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
			} else {
				assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
			}
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			if tt.notWantBody != "" {
				assert.NotContains(t, rec.Body.String(), tt.notWantBody)
			}
		})
	}
}

func TestErrorHandlerUnknownRoute(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = middleware.NewErrorHandler(false)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"fail"`)
}
