package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/api/metrics"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

// LedgerService reserves, commits and refunds credits. The atomic check-and-decrement
// itself lives in the repository so concurrent reservations on one account are
// linearized by the store.
type LedgerService struct {
	repo   ports.AccountRepository
	now    func() time.Time
	logger zerolog.Logger
}

func NewLedgerService(repo ports.AccountRepository, logger zerolog.Logger) *LedgerService {
	return &LedgerService{repo: repo, now: time.Now, logger: logger}
}

// Reserve takes cost credits from the account or fails with an
// *domain.InsufficientCreditsError without touching the balance.
func (s *LedgerService) Reserve(ctx context.Context, accountID string, cost int) (*domain.Reservation, error) {
	if cost <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	res := domain.Reservation{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Amount:    cost,
		CreatedAt: s.now().UTC(),
	}

	balance, err := s.repo.ReserveCredits(ctx, res)
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientCredits) {
			s.logger.Error().Err(err).Str("account_id", accountID).Int("cost", cost).Msg("credit reservation failed")
		}
		return nil, fmt.Errorf("reserve credits: %w", err)
	}

	metrics.CreditsReservedTotal.Add(float64(cost))
	s.logger.Debug().
		Str("account_id", accountID).
		Str("reservation_id", res.ID).
		Int("cost", cost).
		Int("balance", balance).
		Msg("credits reserved")
	return &res, nil
}

// Commit finalizes a reservation. The balance was already decremented by Reserve.
func (s *LedgerService) Commit(ctx context.Context, res *domain.Reservation) error {
	balance, err := s.repo.SettleReservation(ctx, *res, false)
	if err != nil {
		return fmt.Errorf("commit reservation %s: %w", res.ID, err)
	}

	metrics.CreditsCommittedTotal.Add(float64(res.Amount))
	s.logger.Debug().
		Str("account_id", res.AccountID).
		Str("reservation_id", res.ID).
		Int("balance", balance).
		Msg("reservation committed")
	return nil
}

// Rollback refunds a reservation exactly once.
func (s *LedgerService) Rollback(ctx context.Context, res *domain.Reservation) error {
	balance, err := s.repo.SettleReservation(ctx, *res, true)
	if err != nil {
		return fmt.Errorf("rollback reservation %s: %w", res.ID, err)
	}

	metrics.CreditsRefundedTotal.Add(float64(res.Amount))
	s.logger.Info().
		Str("account_id", res.AccountID).
		Str("reservation_id", res.ID).
		Int("refunded", res.Amount).
		Int("balance", balance).
		Msg("reservation rolled back")
	return nil
}

// Balance returns the current spendable credits.
func (s *LedgerService) Balance(ctx context.Context, accountID string) (int, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Credits, nil
}

// TopUp adds credits from an admin action or a purchase.
func (s *LedgerService) TopUp(ctx context.Context, accountID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	balance, err := s.repo.AddCredits(ctx, accountID, amount)
	if err != nil {
		return 0, fmt.Errorf("top up: %w", err)
	}

	s.logger.Info().Str("account_id", accountID).Int("amount", amount).Int("balance", balance).Msg("credits added")
	return balance, nil
}

// RefundStale rolls back reservations that outlived maxAge, e.g. after a crash
// between reserve and settle.
func (s *LedgerService) RefundStale(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.repo.ListStaleReservations(ctx, s.now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("list stale reservations: %w", err)
	}

	refunded := 0
	for _, sr := range stale {
		res := sr.Reservation
		res.AccountID = sr.AccountID
		if err := s.Rollback(ctx, &res); err != nil {
			if errors.Is(err, domain.ErrReservationSettled) {
				continue
			}
			s.logger.Warn().Err(err).Str("reservation_id", res.ID).Msg("stale reservation refund failed")
			continue
		}
		refunded++
	}

	if refunded > 0 {
		s.logger.Warn().Int("count", refunded).Msg("refunded stale reservations")
	}
	return refunded, nil
}
