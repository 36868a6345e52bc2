package logger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ContextKey is where the request-scoped logger is stored in echo.Context.
const ContextKey = "logger"

// RequestLogger logs one line per request, at warn for 4xx and error for
// 5xx responses, and stores a request-scoped logger in the context.
func RequestLogger(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			reqLog := base.With(
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
			)
			c.Set(ContextKey, reqLog)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			fields := []zap.Field{
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("client_ip", c.RealIP()),
				zap.Int64("body_size", c.Response().Size),
			}
			if q := req.URL.RawQuery; q != "" {
				fields = append(fields, zap.String("query", q))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			switch {
			case status >= http.StatusInternalServerError:
				reqLog.Error("http request", fields...)
			case status >= http.StatusBadRequest:
				reqLog.Warn("http request", fields...)
			default:
				reqLog.Info("http request", fields...)
			}
			return nil
		}
	}
}

// Recover turns a panic into a 500 and logs it with a stack trace.
func Recover(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					base.Error("panic recovered",
						zap.String("path", c.Request().URL.Path),
						zap.String("panic", fmt.Sprint(r)),
						zap.Stack("stack"),
					)
					err = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
				}
			}()
			return next(c)
		}
	}
}

// FromContext returns the request-scoped logger, or fallback when the
// request did not pass through RequestLogger.
func FromContext(c echo.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := c.Get(ContextKey).(*zap.Logger); ok && l != nil {
		return l
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}
