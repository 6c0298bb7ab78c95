package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"natours_echo/internal/apperror"
	"natours_echo/internal/services"
)

// RedisRateLimiterStore is a fixed window counter per client identifier,
// shared by every server instance using the same Redis.
type RedisRateLimiterStore struct {
	cache  *services.RedisCache
	max    int64
	window time.Duration
	prefix string
}

func NewRedisRateLimiterStore(cache *services.RedisCache, max int, window time.Duration) *RedisRateLimiterStore {
	return &RedisRateLimiterStore{cache: cache, max: int64(max), window: window, prefix: "ratelimit:"}
}

// Allow implements echo's RateLimiterStore. Redis failures let the request
// through.
func (s *RedisRateLimiterStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	n, err := s.cache.IncrementWindow(ctx, s.prefix+identifier, s.window)
	if err != nil {
		log.Warnf("rate limiter: %v", err)
		return true, nil
	}
	return n <= s.max, nil
}

// RateLimit limits each client IP to max requests per window. Without a
// Redis cache an in-process token bucket is used.
func RateLimit(cache *services.RedisCache, max int, window time.Duration) echo.MiddlewareFunc {
	var store echomw.RateLimiterStore
	if cache != nil {
		store = NewRedisRateLimiterStore(cache, max, window)
	} else {
		store = echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(float64(max) / window.Seconds()),
			Burst:     max,
			ExpiresIn: window,
		})
	}

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperror.Forbidden("Could not identify the client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return apperror.RateLimited("Too many requests from this IP, please try again in an hour!")
		},
	})
}
