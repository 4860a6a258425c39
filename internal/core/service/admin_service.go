package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/api/metrics"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

type adminService struct {
	repo               ports.AccountRepository
	usage              ports.UsageRepository
	ledger             ports.CreditLedger
	defaultCreditLimit int
	now                func() time.Time
	logger             zerolog.Logger
}

// NewAdminService returns the operator surface. Role checks happen in the
// transport layer before any method is reached.
func NewAdminService(
	repo ports.AccountRepository,
	usage ports.UsageRepository,
	ledger ports.CreditLedger,
	defaultCreditLimit int,
	logger zerolog.Logger,
) ports.AdminService {
	return &adminService{
		repo:               repo,
		usage:              usage,
		ledger:             ledger,
		defaultCreditLimit: defaultCreditLimit,
		now:                time.Now,
		logger:             logger,
	}
}

func (s *adminService) ListClients(ctx context.Context, page, limit int) (*ports.ClientPage, error) {
	page, limit = normalizePage(page, limit)

	items, total, err := s.repo.List(ctx, ports.ListAccountsFilter{Role: domain.RoleClient, Page: page, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	return &ports.ClientPage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

func (s *adminService) CreateClient(ctx context.Context, in ports.CreateClientInput) (*ports.ProvisionResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if !validEmail(email) || len(in.Password) < minPasswordLength || in.Credits < 0 || in.CreditLimit < 0 {
		return nil, domain.ErrInvalidAccount
	}

	status := in.Status
	if status == "" {
		status = domain.StatusActive
	}
	role := in.Role
	if role == "" {
		role = domain.RoleClient
	}
	if !status.Valid() || !role.Valid() {
		return nil, domain.ErrInvalidAccount
	}

	limit := in.CreditLimit
	if limit == 0 {
		limit = s.defaultCreditLimit
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = domain.DisplayNameFromEmail(email)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	rawKey, keyHash, keyPrefix, err := NewAPIKey()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		APIKeyHash:   keyHash,
		APIKeyPrefix: keyPrefix,
		Role:         role,
		Status:       status,
		Credits:      in.Credits,
		CreditLimit:  limit,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	metrics.AccountsCreatedTotal.WithLabelValues("admin").Inc()
	s.logger.Info().Str("account_id", created.ID).Str("role", string(role)).Int("credits", created.Credits).Msg("client provisioned")
	return &ports.ProvisionResult{Account: created, APIKey: rawKey}, nil
}

func (s *adminService) UpdateClient(ctx context.Context, id string, in ports.UpdateClientInput) (*domain.Account, error) {
	update := domain.AccountUpdate{Status: in.Status, CreditLimit: in.CreditLimit}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.ErrInvalidAccount
		}
		update.Name = &name
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, domain.ErrInvalidAccount
	}
	if in.CreditLimit != nil && *in.CreditLimit < 0 {
		return nil, domain.ErrInvalidAccount
	}
	if update.Empty() {
		return s.repo.FindByID(ctx, id)
	}

	account, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("account_id", id).Str("status", string(account.Status)).Msg("client updated")
	return account, nil
}

// AddCredits tops up through the ledger so it races safely with in-flight reservations.
func (s *adminService) AddCredits(ctx context.Context, id string, amount int) (int, error) {
	return s.ledger.TopUp(ctx, id, amount)
}

func (s *adminService) RotateAPIKey(ctx context.Context, id string) (*ports.ProvisionResult, error) {
	rawKey, keyHash, keyPrefix, err := NewAPIKey()
	if err != nil {
		return nil, err
	}

	account, err := s.repo.Update(ctx, id, domain.AccountUpdate{APIKeyHash: &keyHash, APIKeyPrefix: &keyPrefix})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("account_id", id).Str("api_key_prefix", keyPrefix).Msg("api key rotated")
	return &ports.ProvisionResult{Account: account, APIKey: rawKey}, nil
}

func (s *adminService) ClientUsage(ctx context.Context, id string, page, limit int) (*ports.UsagePage, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return usagePage(ctx, s.usage, id, page, limit)
}

func (s *adminService) Overview(ctx context.Context) (*domain.Overview, error) {
	overview, err := s.repo.Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("account overview: %w", err)
	}

	generations, err := s.usage.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count usage: %w", err)
	}
	overview.Generations = generations
	return overview, nil
}
