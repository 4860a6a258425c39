package ports

import (
	"context"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

// RegisterResult is returned by a successful signup. APIKey is the raw key and
// is only ever available at this point.
type RegisterResult struct {
	Account *domain.Account
	Token   string
	APIKey  string
}

// AuthService resolves callers to accounts. Authenticate* methods are read-only.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*RegisterResult, error)
	Login(ctx context.Context, email, password string) (string, *domain.Account, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Account, error)
	AuthenticateToken(ctx context.Context, token string) (*domain.Account, error)
	AuthenticateAPIKey(ctx context.Context, rawKey string) (*domain.Account, error)
	IssueToken(account *domain.Account) (string, error)
}
