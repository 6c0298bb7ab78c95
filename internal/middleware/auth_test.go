package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"natours_echo/internal/middleware"
	"natours_echo/internal/models"
	"natours_echo/internal/repository"
	"natours_echo/internal/services"
	"natours_echo/internal/testutil"
)

type authFixture struct {
	db     *gorm.DB
	e      *echo.Echo
	tokens *services.TokenService
	user   *models.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := testutil.NewModelsDB(t)
	users := repository.New[models.User](db)
	tokens := services.NewTokenService("test-secret-that-is-long-enough", time.Hour)

	user := users.New()
	user.Name = "Laura"
	user.Email = "laura@example.com"
	user.PasswordInput = "password123"
	user.PasswordConfirm = "password123"
	require.NoError(t, users.Create(context.Background(), user))

	auth := middleware.NewAuthenticator(tokens, users)

	e := echo.New()
	e.HTTPErrorHandler = middleware.NewErrorHandler(false)
	whoami := func(c echo.Context) error {
		u := middleware.CurrentUser(c.Request().Context())
		if u == nil {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, u.Name)
	}
	e.GET("/api/v1/me", whoami, auth.Protect())
	e.GET("/api/v1/admin", whoami, auth.Protect(), middleware.RestrictTo(models.RoleAdmin))
	e.GET("/overview", whoami, auth.IsLoggedIn())

	return &authFixture{db: db, e: e, tokens: tokens, user: user}
}

func (f *authFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *authFixture) token(t *testing.T) string {
	t.Helper()
	token, err := f.tokens.Sign(f.user.ID)
	require.NoError(t, err)
	return token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestProtect(t *testing.T) {
	f := newAuthFixture(t)
	otherSigner := services.NewTokenService("another-secret", time.Hour)
	foreign, err := otherSigner.Sign(f.user.ID)
	require.NoError(t, err)
	ghost, err := f.tokens.Sign("no-such-user")
	require.NoError(t, err)

	tests := []struct {
		name     string
		setup    func(r *http.Request)
		wantCode int
		wantMsg  string
	}{
		{
			name:     "no credential",
			setup:    func(r *http.Request) {},
			wantCode: http.StatusUnauthorized,
			wantMsg:  "You are not logged in! Please log in to get access.",
		},
		{
			name:     "malformed bearer",
			setup:    func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer garbage") },
			wantCode: http.StatusUnauthorized,
			wantMsg:  "Invalid token. Please log in again!",
		},
		{
			name:     "wrong signature",
			setup:    func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+foreign) },
			wantCode: http.StatusUnauthorized,
			wantMsg:  "Invalid token. Please log in again!",
		},
		{
			name:     "logged out cookie",
			setup:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: "loggedout"}) },
			wantCode: http.StatusUnauthorized,
			wantMsg:  "You are not logged in! Please log in to get access.",
		},
		{
			name:     "user no longer exists",
			setup:    func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+ghost) },
			wantCode: http.StatusUnauthorized,
			wantMsg:  "The user belonging to this token does no longer exist.",
		},
		{
			name:     "valid bearer",
			setup:    func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+f.token(t)) },
			wantCode: http.StatusOK,
		},
		{
			name:     "valid cookie",
			setup:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: f.token(t)}) },
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			tt.setup(req)
			rec := f.do(req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "Laura", rec.Body.String())
				return
			}
			body := decodeError(t, rec)
			assert.Equal(t, "fail", body["status"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestProtectUnknownResourceIsUnauthorized(t *testing.T) {
	f := newAuthFixture(t)
	f.e.GET("/api/v1/tours/:id", func(c echo.Context) error {
		return echo.ErrNotFound
	}, middleware.NewAuthenticator(f.tokens, repository.New[models.User](f.db)).Protect())

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/tours/does-not-exist", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectRejectsTokenIssuedBeforePasswordChange(t *testing.T) {
	f := newAuthFixture(t)
	token := f.token(t)

	changed := time.Now().Add(time.Hour)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", f.user.ID).Update("password_changed_at", changed).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User recently changed password! Please log in again.", decodeError(t, rec)["message"])
}

func TestRestrictTo(t *testing.T) {
	f := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+f.token(t))
	rec := f.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You do not have permission to perform this action", decodeError(t, rec)["message"])

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", f.user.ID).Update("role", models.RoleAdmin).Error)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+f.token(t))
	rec = f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIsLoggedIn(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/overview", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/overview", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: "broken"})
	rec = f.do(req)
	assert.Equal(t, "anonymous", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/overview", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: f.token(t)})
	rec = f.do(req)
	assert.Equal(t, "Laura", rec.Body.String())
}

func TestSessionCookie(t *testing.T) {
	c := middleware.SessionCookie("abc", 3600, true)
	assert.Equal(t, middleware.CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, 3600, c.MaxAge)
	assert.Equal(t, "/", c.Path)
}
