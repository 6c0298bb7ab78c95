package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"natours_echo/internal/apperror"
	"natours_echo/web/templates/pages"
)

type errorBody struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// NewErrorHandler renders every error returned by a handler or middleware.
// API paths get JSON, other paths the error page. In production only
// operational messages reach the client.
func NewErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		appErr := apperror.From(err)
		code := appErr.HTTPStatus()

		if code >= http.StatusInternalServerError {
			c.Logger().Error(err)
		} else {
			c.Logger().Debug(err)
		}

		message := appErr.Message
		if production && !appErr.IsOperational() {
			message = "Something went very wrong!"
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}

		if strings.HasPrefix(c.Request().URL.Path, "/api") {
			body := errorBody{Status: appErr.Status(), Message: message, Errors: appErr.Fields}
			if !production {
				body.Error = err.Error()
			}
			if jsonErr := c.JSON(code, body); jsonErr != nil {
				c.Logger().Error(jsonErr)
			}
			return
		}

		if production && code >= http.StatusInternalServerError {
			message = "Please try again later."
		}
		props := pages.ErrorPageProps{
			Layout:  pages.Layout{Title: "Something went wrong!", User: CurrentUser(c.Request().Context())},
			Code:    code,
			Message: message,
		}

		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(code)
		if renderErr := pages.ErrorPage(props).Render(c.Request().Context(), c.Response()); renderErr != nil {
			c.Logger().Error(fmt.Errorf("failed to render error page: %w", renderErr))
		}
	}
}
