package ports

import (
	"context"
	"time"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

// ListAccountsFilter carries the query parameters for listing accounts.
type ListAccountsFilter struct {
	Role  domain.Role // empty = all roles
	Page  int         // 1-based
	Limit int
}

// StaleReservation is a reservation still held by an account past its deadline.
type StaleReservation struct {
	AccountID   string
	Reservation domain.Reservation
}

// AccountRepository persists accounts and applies every balance change atomically
// against a single account record.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// FindByEmail matches the normalized (lowercased) email.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByAPIKeyHash(ctx context.Context, hash string) (*domain.Account, error)
	// Update applies a partial update. It never changes credits.
	Update(ctx context.Context, id string, update domain.AccountUpdate) (*domain.Account, error)
	List(ctx context.Context, filter ListAccountsFilter) ([]*domain.Account, int64, error)
	Overview(ctx context.Context) (*domain.Overview, error)

	// ReserveCredits decrements credits by res.Amount and records the hold in one
	// atomic step, only if the account is active and credits >= res.Amount.
	// It returns the balance after the decrement.
	ReserveCredits(ctx context.Context, res domain.Reservation) (int, error)
	// SettleReservation removes a held reservation, refunding its amount when
	// refund is true. A reservation that is no longer held yields
	// domain.ErrReservationSettled. It returns the balance after settlement.
	SettleReservation(ctx context.Context, res domain.Reservation, refund bool) (int, error)
	// AddCredits atomically increments credits and returns the new balance.
	AddCredits(ctx context.Context, id string, amount int) (int, error)
	// ListStaleReservations returns holds created before the cutoff.
	ListStaleReservations(ctx context.Context, before time.Time) ([]StaleReservation, error)
}
