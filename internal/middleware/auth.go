package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
	"natours_echo/internal/models"
	"natours_echo/internal/repository"
	"natours_echo/internal/services"
)

// CookieName is the cookie carrying the session token.
const CookieName = "jwt"

// Authenticator resolves session tokens into users.
type Authenticator struct {
	tokens *services.TokenService
	users  *repository.Repository[models.User]
}

func NewAuthenticator(tokens *services.TokenService, users *repository.Repository[models.User]) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Protect rejects requests without a valid session. The token comes from
// a Bearer Authorization header or the jwt cookie.
func (a *Authenticator) Protect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := tokenFromRequest(c)
			if token == "" {
				return apperror.Unauthorized("You are not logged in! Please log in to get access.")
			}

			user, err := a.resolve(c, token)
			if err != nil {
				return err
			}

			setInfo(c, func(info *RequestInfo) { info.User = user })
			return next(c)
		}
	}
}

// IsLoggedIn attaches the user of a valid session, if any, and never fails.
// View routes use it to render the logged in navigation.
func (a *Authenticator) IsLoggedIn() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}
			if user, err := a.resolve(c, cookie.Value); err == nil {
				setInfo(c, func(info *RequestInfo) { info.User = user })
			}
			return next(c)
		}
	}
}

func (a *Authenticator) resolve(c echo.Context, token string) (*models.User, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, apperror.From(err)
	}

	user, err := a.users.FindOne(c.Request().Context(), "id = ?", claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("The user belonging to this token does no longer exist.")
		}
		return nil, err
	}

	iat, err := claims.IssuedAtTime()
	if err != nil {
		return nil, apperror.Unauthorized("Invalid token. Please log in again!")
	}
	if user.ChangedPasswordAfter(iat) {
		return nil, apperror.Unauthorized("User recently changed password! Please log in again.")
	}
	return user, nil
}

// RestrictTo allows only users holding one of roles. It must run after
// Protect.
func RestrictTo(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c.Request().Context())
			if user == nil {
				return apperror.Unauthorized("You are not logged in! Please log in to get access.")
			}
			if !user.HasRole(roles...) {
				return apperror.Forbidden("You do not have permission to perform this action")
			}
			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "loggedout" {
		return cookie.Value
	}
	return ""
}

// SessionCookie builds the cookie holding token.
func SessionCookie(token string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	}
}
