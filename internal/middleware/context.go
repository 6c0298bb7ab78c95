package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"natours_echo/internal/models"
)

type requestInfoKey struct{}

// RequestInfo is the per-request state handlers read from the request
// context: the acting user (if any) and the time the request arrived.
type RequestInfo struct {
	User        *models.User
	RequestTime time.Time
}

// WithRequestInfo stores info in ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// Info returns the request info stored in ctx.
func Info(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(ctx context.Context) *models.User {
	return Info(ctx).User
}

// RequestTime stamps every request with its arrival time.
func RequestTime() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			setInfo(c, func(info *RequestInfo) { info.RequestTime = time.Now() })
			return next(c)
		}
	}
}

func setInfo(c echo.Context, fn func(*RequestInfo)) {
	req := c.Request()
	info := Info(req.Context())
	fn(&info)
	c.SetRequest(req.WithContext(WithRequestInfo(req.Context(), info)))
}
