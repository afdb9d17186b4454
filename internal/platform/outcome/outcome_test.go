package outcome

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	o := New(SeverityError, CodeRequired, "file is required")
	if o.ResourceType != "OperationOutcome" {
		t.Errorf("expected resourceType OperationOutcome, got %q", o.ResourceType)
	}
	if len(o.Issue) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(o.Issue))
	}
	if o.Issue[0].Code != CodeRequired || o.Issue[0].Diagnostics != "file is required" {
		t.Errorf("unexpected issue: %+v", o.Issue[0])
	}
}

func TestCodeForStatus(t *testing.T) {
	for status, want := range map[int]string{
		http.StatusBadRequest:            CodeInvalid,
		http.StatusUnauthorized:          CodeLogin,
		http.StatusRequestEntityTooLarge: CodeTooCostly,
		http.StatusUnprocessableEntity:   CodeProcessing,
		http.StatusTooManyRequests:       CodeThrottled,
		http.StatusServiceUnavailable:    CodeTransient,
		http.StatusGatewayTimeout:        CodeTimeout,
		http.StatusBadGateway:            CodeException,
	} {
		if got := CodeForStatus(status); got != want {
			t.Errorf("CodeForStatus(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestErrorHandler_HTTPError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.Nop())(echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), c)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	var o Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if o.Issue[0].Code != CodeThrottled || o.Issue[0].Diagnostics != "rate limit exceeded" {
		t.Errorf("unexpected issue: %+v", o.Issue[0])
	}
}

func TestErrorHandler_PlainError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.Nop())(errors.New("boom"), c)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	var o Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if o.Issue[0].Diagnostics == "boom" {
		t.Error("internal error text must not leak to clients")
	}
}

func TestErrorHandler_CarriedCode(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.Nop())(Error(http.StatusUnprocessableEntity, CodeInvalid, "unreadable image"), c)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	var o Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if o.Issue[0].Code != CodeInvalid || o.Issue[0].Diagnostics != "unreadable image" {
		t.Errorf("unexpected issue: %+v", o.Issue[0])
	}
}
