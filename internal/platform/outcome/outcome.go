// Package outcome renders API errors as OperationOutcome-shaped JSON so every
// failure, from middleware or handler, reaches clients in one envelope.
package outcome

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Issue severities.
const (
	SeverityFatal       = "fatal"
	SeverityError       = "error"
	SeverityWarning     = "warning"
	SeverityInformation = "information"
)

// Issue type codes.
const (
	CodeInvalid      = "invalid"
	CodeRequired     = "required"
	CodeNotFound     = "not-found"
	CodeProcessing   = "processing"
	CodeSecurity     = "security"
	CodeLogin        = "login"
	CodeThrottled    = "throttled"
	CodeNotSupported = "not-supported"
	CodeTooCostly    = "too-costly"
	CodeException    = "exception"
	CodeTimeout      = "timeout"
	CodeTransient    = "transient"
)

// Outcome is the error envelope returned by every endpoint.
type Outcome struct {
	ResourceType string  `json:"resourceType"`
	Issue        []Issue `json:"issue"`
}

// Issue is a single problem reported in an Outcome.
type Issue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

// New creates an Outcome holding one issue.
func New(severity, code, diagnostics string) *Outcome {
	return &Outcome{
		ResourceType: "OperationOutcome",
		Issue: []Issue{{
			Severity:    severity,
			Code:        code,
			Diagnostics: diagnostics,
		}},
	}
}

// Respond writes an error Outcome with the given status.
func Respond(c echo.Context, status int, code, diagnostics string) error {
	return c.JSON(status, New(SeverityError, code, diagnostics))
}

// Error returns an *echo.HTTPError whose issue code is code rather than the
// one derived from status.
func Error(status int, code, diagnostics string) *echo.HTTPError {
	return echo.NewHTTPError(status, New(SeverityError, code, diagnostics))
}

// CodeForStatus maps an HTTP status to the issue code used for it.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalid
	case http.StatusUnauthorized:
		return CodeLogin
	case http.StatusForbidden:
		return CodeSecurity
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed, http.StatusUnsupportedMediaType:
		return CodeNotSupported
	case http.StatusRequestEntityTooLarge:
		return CodeTooCostly
	case http.StatusUnprocessableEntity:
		return CodeProcessing
	case http.StatusTooManyRequests:
		return CodeThrottled
	case http.StatusServiceUnavailable:
		return CodeTransient
	case http.StatusGatewayTimeout:
		return CodeTimeout
	default:
		if status >= 500 {
			return CodeException
		}
		return CodeProcessing
	}
}

// ErrorHandler returns an echo.HTTPErrorHandler that renders every error as
// an Outcome. Errors that are not *echo.HTTPError become 500s and are logged.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if o, ok := he.Message.(*Outcome); ok {
				if c.Request().Method == http.MethodHead {
					_ = c.NoContent(status)
					return
				}
				_ = c.JSON(status, o)
				return
			}
			msg = fmt.Sprintf("%v", he.Message)
		} else {
			logger.Error().Err(err).
				Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = Respond(c, status, CodeForStatus(status), msg)
	}
}
