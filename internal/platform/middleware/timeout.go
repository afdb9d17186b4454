package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rxocr/rxocr/internal/platform/outcome"
)

// RequestTimeout sets a deadline on each request context. Recognition and
// storage honour the context; extraction itself runs to completion, so the
// deadline bounds the whole call from outside. When the deadline passes
// before the handler returns, the client receives 504.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return gatewayTimeout(c)
				}
				return ctx.Err()
			}
		}
	}
}

func gatewayTimeout(c echo.Context) error {
	// A partially written response cannot be replaced.
	if !c.Response().Committed {
		return outcome.Respond(c, http.StatusGatewayTimeout, outcome.CodeTimeout,
			"Request processing exceeded the allowed time limit")
	}
	return nil
}
