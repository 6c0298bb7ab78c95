package middleware

import (
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// SanitizeParams drops query keys that look like database operators ("$"
// or "." in the name) and collapses repeated keys to their last value,
// except for whitelisted fields which may legitimately repeat.
func SanitizeParams(whitelist ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(whitelist))
	for _, name := range whitelist {
		allowed[name] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.URL.RawQuery == "" {
				return next(c)
			}

			clean := CleanQuery(req.URL.Query(), allowed)
			req.URL.RawQuery = clean.Encode()
			return next(c)
		}
	}
}

// CleanQuery applies the SanitizeParams rules to values.
func CleanQuery(values url.Values, allowed map[string]bool) url.Values {
	clean := make(url.Values, len(values))
	for key, vals := range values {
		if key == "" || strings.ContainsAny(key, "$.") || len(vals) == 0 {
			continue
		}
		base := key
		if i := strings.IndexByte(key, '['); i > 0 {
			base = key[:i]
		}
		if len(vals) > 1 && !allowed[base] {
			vals = vals[len(vals)-1:]
		}
		clean[key] = vals
	}
	return clean
}
