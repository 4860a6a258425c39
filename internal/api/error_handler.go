package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/api/handler"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

// creditsHeader reports the caller's balance when a failed request knows it.
const creditsHeader = "X-Credits-Remaining"

// errorResponse is the canonical error envelope for all API errors.
// Credits and Required are only set for billing failures.
type errorResponse struct {
	Error     string `json:"error"`
	Credits   *int   `json:"credits,omitempty"`
	Required  *int   `json:"required,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)

		var be *handler.BalanceError
		if errors.As(err, &be) {
			c.Response().Header().Set(creditsHeader, strconv.Itoa(be.Credits))
			if body.Credits == nil {
				credits := be.Credits
				body.Credits = &credits
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, body limit, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var ice *domain.InsufficientCreditsError
	if errors.As(err, &ice) {
		return http.StatusPaymentRequired, errorResponse{
			Error:    "insufficient credits",
			Credits:  &ice.Available,
			Required: &ice.Required,
		}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "invalid credentials"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: "unauthorized"}
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorResponse{Error: "insufficient credits"}
	case errors.Is(err, domain.ErrAccountRevoked):
		return http.StatusForbidden, errorResponse{Error: "account is revoked"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "access forbidden"}
	case errors.Is(err, domain.ErrPurchasesDisabled):
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, errorResponse{Error: "account not found"}
	case errors.Is(err, domain.ErrDuplicateEmail), errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrInvalidAccount),
		errors.Is(err, domain.ErrInvalidStyle),
		errors.Is(err, domain.ErrInvalidVariations),
		errors.Is(err, domain.ErrInvalidImage),
		errors.Is(err, domain.ErrEmptyPrompt),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnknownPackage):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrServiceNotConfigured):
		return http.StatusServiceUnavailable, errorResponse{Error: domain.ServiceUnavailableMessage}
	case errors.Is(err, domain.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, errorResponse{Error: domain.ErrGenerationTimeout.Error(), Retryable: true}
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrNoImageReturned):
		log.Warn().Err(err).Str("path", c.Path()).Msg("upstream generation failure")
		return http.StatusBadGateway, errorResponse{Error: rootMessage(err), Retryable: true}
	case errors.Is(err, domain.ErrGenerationCancelled):
		// The client went away; nobody reads this.
		return 499, errorResponse{Error: domain.ErrGenerationCancelled.Error()}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}

// rootMessage hides upstream payloads behind the sentinel's message.
func rootMessage(err error) string {
	if errors.Is(err, domain.ErrNoImageReturned) {
		return domain.ErrNoImageReturned.Error()
	}
	return domain.ErrUpstream.Error()
}
