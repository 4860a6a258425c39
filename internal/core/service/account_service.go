package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type accountService struct {
	repo            ports.AccountRepository
	usage           ports.UsageRepository
	ledger          ports.CreditLedger
	purchaseEnabled bool
	logger          zerolog.Logger
}

// NewAccountService returns the client self-service surface. Purchases are
// rejected unless purchaseEnabled is set, since no payment provider is wired.
func NewAccountService(
	repo ports.AccountRepository,
	usage ports.UsageRepository,
	ledger ports.CreditLedger,
	purchaseEnabled bool,
	logger zerolog.Logger,
) ports.AccountService {
	return &accountService{
		repo:            repo,
		usage:           usage,
		ledger:          ledger,
		purchaseEnabled: purchaseEnabled,
		logger:          logger,
	}
}

func (s *accountService) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.repo.FindByID(ctx, accountID)
}

func (s *accountService) Usage(ctx context.Context, accountID string, page, limit int) (*ports.UsagePage, error) {
	return usagePage(ctx, s.usage, accountID, page, limit)
}

func (s *accountService) PurchaseCredits(ctx context.Context, accountID string, credits int) (int, error) {
	if !s.purchaseEnabled {
		return 0, domain.ErrPurchasesDisabled
	}
	if !domain.CreditPackages[credits] {
		return 0, domain.ErrUnknownPackage
	}

	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if !account.IsActive() {
		return 0, domain.ErrAccountRevoked
	}

	balance, err := s.ledger.TopUp(ctx, accountID, credits)
	if err != nil {
		return 0, fmt.Errorf("purchase credits: %w", err)
	}

	s.logger.Info().Str("account_id", accountID).Int("package", credits).Int("balance", balance).Msg("credit package purchased")
	return balance, nil
}

// normalizePage clamps paging input to sane values.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	return int((total + int64(limit) - 1) / int64(limit))
}

func usagePage(ctx context.Context, repo ports.UsageRepository, accountID string, page, limit int) (*ports.UsagePage, error) {
	page, limit = normalizePage(page, limit)

	items, total, err := repo.ListByAccount(ctx, accountID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}

	return &ports.UsagePage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}
