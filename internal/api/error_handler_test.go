package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/api/handler"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

func runErrorHandler(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return rec, body
}

func TestHTTPErrorHandler_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrAccountRevoked, http.StatusForbidden},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrAccountNotFound, http.StatusNotFound},
		{domain.ErrDuplicateEmail, http.StatusConflict},
		{domain.ErrDuplicateRequest, http.StatusConflict},
		{fmt.Errorf("%w: must be between 1 and 4", domain.ErrInvalidVariations), http.StatusUnprocessableEntity},
		{domain.ErrInvalidStyle, http.StatusUnprocessableEntity},
		{domain.ErrServiceNotConfigured, http.StatusServiceUnavailable},
		{domain.ErrGenerationTimeout, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: boom", domain.ErrUpstream), http.StatusBadGateway},
		{domain.ErrNoImageReturned, http.StatusBadGateway},
		{echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too big"), http.StatusRequestEntityTooLarge},
		{errors.New("mystery"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec, _ := runErrorHandler(t, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestHTTPErrorHandler_InsufficientCredits(t *testing.T) {
	err := fmt.Errorf("reserve credits: %w", &domain.InsufficientCreditsError{Required: 3, Available: 1})
	rec, body := runErrorHandler(t, err)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if body["credits"] != float64(1) || body["required"] != float64(3) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHTTPErrorHandler_UpstreamDetailsHidden(t *testing.T) {
	_, body := runErrorHandler(t, fmt.Errorf("%w: status 500: secret upstream payload", domain.ErrUpstream))
	if body["error"] != domain.ErrUpstream.Error() {
		t.Fatalf("upstream details leaked: %v", body["error"])
	}
	if body["retryable"] != true {
		t.Fatalf("expected retryable flag")
	}
}

func TestHTTPErrorHandler_ServiceNotConfiguredMessage(t *testing.T) {
	rec, body := runErrorHandler(t, fmt.Errorf("invoke model: %w: missing api key", domain.ErrServiceNotConfigured))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body["error"] != "service unavailable, contact administrator" {
		t.Fatalf("unexpected message: %v", body["error"])
	}
	if _, ok := body["retryable"]; ok {
		t.Fatalf("configuration errors must not be retryable: %v", body)
	}
}

func TestHTTPErrorHandler_InternalErrorIsGeneric(t *testing.T) {
	_, body := runErrorHandler(t, errors.New("mongo: connection refused"))
	if body["error"] != "internal server error" {
		t.Fatalf("internal details leaked: %v", body["error"])
	}
}

func TestHTTPErrorHandler_BalanceAttached(t *testing.T) {
	err := &handler.BalanceError{Err: fmt.Errorf("%w: boom", domain.ErrUpstream), Credits: 7}
	rec, body := runErrorHandler(t, err)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if body["credits"] != float64(7) {
		t.Fatalf("expected credits 7 in body, got %v", body["credits"])
	}
	if got := rec.Header().Get("X-Credits-Remaining"); got != "7" {
		t.Fatalf("expected balance header 7, got %q", got)
	}
}
