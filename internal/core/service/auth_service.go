package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/virtushot/photoshoot-api/internal/api/metrics"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const (
	minPasswordLength = 6
	bcryptCost        = 12
)

// TokenClaims is the JWT payload issued at login and signup.
type TokenClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthConfig holds the tunables of the authenticator.
type AuthConfig struct {
	JWTSecret          string
	TokenTTL           time.Duration
	SignupBonus        int
	DefaultCreditLimit int
}

// AuthService implements signup, login and request authentication.
type AuthService struct {
	repo    ports.AccountRepository
	cfg     AuthConfig
	now     func() time.Time
	compare func(hash, password []byte) error
	logger  zerolog.Logger
}

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("virtushot-no-such-account"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}
	return h
})

func NewAuthService(repo ports.AccountRepository, cfg AuthConfig, logger zerolog.Logger) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &AuthService{
		repo:    repo,
		cfg:     cfg,
		now:     time.Now,
		compare: bcrypt.CompareHashAndPassword,
		logger:  logger,
	}
}

// Register creates an active client account with the signup bonus and a fresh API key,
// then issues a token for it.
func (s *AuthService) Register(ctx context.Context, email, password string) (*ports.RegisterResult, error) {
	email = domain.NormalizeEmail(email)
	if !validEmail(email) || len(password) < minPasswordLength {
		return nil, domain.ErrInvalidAccount
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	rawKey, keyHash, keyPrefix, err := NewAPIKey()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	account := &domain.Account{
		Email:        email,
		Name:         domain.DisplayNameFromEmail(email),
		PasswordHash: hash,
		APIKeyHash:   keyHash,
		APIKeyPrefix: keyPrefix,
		Role:         domain.RoleClient,
		Status:       domain.StatusActive,
		Credits:      s.cfg.SignupBonus,
		CreditLimit:  s.cfg.DefaultCreditLimit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	token, err := s.IssueToken(created)
	if err != nil {
		return nil, err
	}

	metrics.AccountsCreatedTotal.WithLabelValues("register").Inc()
	s.logger.Info().Str("account_id", created.ID).Int("credits", created.Credits).Msg("account registered")
	return &ports.RegisterResult{Account: created, Token: token, APIKey: rawKey}, nil
}

// Login authenticates with email and password and issues a new token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.Account, error) {
	account, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.IssueToken(account)
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

// Authenticate resolves an email/password pair. Unknown emails and wrong passwords
// yield the same error.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			_ = s.compare(dummyHash(), []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if s.compare([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return account, nil
}

// AuthenticateToken verifies signature and expiry and loads the current account,
// so role and status changes apply to tokens already issued.
func (s *AuthService) AuthenticateToken(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}

	account, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return account, nil
}

// AuthenticateAPIKey resolves a raw API key by its hash.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, rawKey string) (*domain.Account, error) {
	if !IsAPIKey(rawKey) {
		return nil, domain.ErrUnauthorized
	}

	account, err := s.repo.FindByAPIKeyHash(ctx, HashAPIKey(rawKey))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return account, nil
}

// IssueToken signs a short-lived token bound to the account id.
func (s *AuthService) IssueToken(account *domain.Account) (string, error) {
	now := s.now()
	claims := TokenClaims{
		Role: account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ProvisionAdmin creates an admin account, or promotes and reactivates an existing one.
func (s *AuthService) ProvisionAdmin(ctx context.Context, email, password, name string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if !validEmail(email) || len(password) < minPasswordLength {
		return nil, domain.ErrInvalidAccount
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		role, status := domain.RoleAdmin, domain.StatusActive
		return s.repo.Update(ctx, existing.ID, domain.AccountUpdate{Role: &role, Status: &status})
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	_, keyHash, keyPrefix, err := NewAPIKey()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = domain.DisplayNameFromEmail(email)
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		APIKeyHash:   keyHash,
		APIKeyPrefix: keyPrefix,
		Role:         domain.RoleAdmin,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	metrics.AccountsCreatedTotal.WithLabelValues("cli").Inc()
	s.logger.Info().Str("account_id", created.ID).Msg("admin provisioned")
	return created, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func validEmail(email string) bool {
	local, host, ok := strings.Cut(email, "@")
	return ok && local != "" && strings.Contains(host, ".")
}
