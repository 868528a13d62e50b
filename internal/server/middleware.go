package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"tradecopilot/internal/logging"
)

// HTTPRecorder receives request metrics.
type HTTPRecorder interface {
	RecordHTTPRequest(route, method, status string, duration time.Duration)
}

// requestLogging logs each request through zerolog and records metrics by route
// template. Handlers find a request-scoped logger in the request context.
func requestLogging(logger zerolog.Logger, recorder HTTPRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			reqLogger := logger.With().Str("method", req.Method).Str("uri", req.RequestURI).Logger()
			c.SetRequest(req.WithContext(logging.WithLogger(req.Context(), reqLogger)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			latency := time.Since(start)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			if recorder != nil {
				recorder.RecordHTTPRequest(route, req.Method, strconv.Itoa(status), latency)
			}

			event := logger.Debug()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("method", req.Method).
				Str("route", route).
				Str("uri", req.RequestURI).
				Str("remote", c.RealIP()).
				Int("status", status).
				Dur("latency", latency).
				Msg("HTTP request")

			return nil
		}
	}
}

// recoverPanics turns handler panics into 500 responses.
func recoverPanics(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					perr, ok := r.(error)
					if !ok {
						perr = fmt.Errorf("%v", r)
					}
					logger.Error().Err(perr).Bytes("stack", debug.Stack()).Msg("Panic in handler")
					err = dataResponse(c, http.StatusInternalServerError, ErrorBody{Code: "internal", Message: "Internal Server Error"})
				}
			}()
			return next(c)
		}
	}
}

// Limiter admits or rejects a request.
type Limiter interface {
	Allow() bool
}

// rateLimited rejects requests with 429 once limiter runs out of tokens.
func rateLimited(limiter Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				return dataResponse(c, http.StatusTooManyRequests, ErrorBody{Code: "rate_limited", Message: "Too many analyst requests, try again shortly."})
			}
			return next(c)
		}
	}
}
