package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
	"github.com/virtushot/photoshoot-api/pkg/logger"
)

const (
	// AccountKey is the echo context key holding the authenticated *domain.Account.
	AccountKey = "account"
	// APIKeyHeader carries a raw API key as an alternative to a bearer credential.
	APIKeyHeader = "X-API-Key"

	apiKeyPrefix = "prod_sk_"
)

type accountCtxKey struct{}

// WithAccount stores the caller in a request context.
func WithAccount(ctx context.Context, a *domain.Account) context.Context {
	return context.WithValue(ctx, accountCtxKey{}, a)
}

// AccountFromContext returns the caller stored by Auth, or nil.
func AccountFromContext(ctx context.Context) *domain.Account {
	a, _ := ctx.Value(accountCtxKey{}).(*domain.Account)
	return a
}

// Auth resolves the caller from a JWT or an API key and injects the account
// into both the echo context and the request context. It does not check
// status; revoked callers are rejected where spending or admin rights matter.
func Auth(auth ports.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			credential, err := extractCredential(c.Request())
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			var account *domain.Account
			if strings.HasPrefix(credential, apiKeyPrefix) {
				account, err = auth.AuthenticateAPIKey(ctx, credential)
			} else {
				account, err = auth.AuthenticateToken(ctx, credential)
			}
			if err != nil {
				return err
			}

			l := logger.Ctx(ctx).With().Str("account_id", account.ID).Logger()
			ctx = logger.WithContext(WithAccount(ctx, account), l)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(AccountKey, account)

			return next(c)
		}
	}
}

func extractCredential(r *http.Request) (string, error) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key, nil
	}

	authHeader := r.Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
