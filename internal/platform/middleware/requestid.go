package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const RequestIDHeader = "X-Request-ID"

// requestIDKey is the echo context key the correlation id is stored under.
const requestIDKey = "request_id"

// RequestID assigns each request a correlation id. An X-Request-ID header
// supplied by the client is honored; otherwise a fresh uuid is generated. The
// id is stored on the echo context for the logger and echoed back in the
// response headers.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(requestIDKey, rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// RequestIDFromEcho returns the correlation id RequestID stored, or "".
func RequestIDFromEcho(c echo.Context) string {
	rid, _ := c.Get(requestIDKey).(string)
	return rid
}
