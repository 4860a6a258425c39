package ports

import (
	"context"
	"time"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

// CreditLedger is the only component allowed to change an account's credits.
type CreditLedger interface {
	Reserve(ctx context.Context, accountID string, cost int) (*domain.Reservation, error)
	Commit(ctx context.Context, res *domain.Reservation) error
	// Rollback refunds a held reservation. A second rollback of the same
	// reservation returns domain.ErrReservationSettled and refunds nothing.
	Rollback(ctx context.Context, res *domain.Reservation) error
	Balance(ctx context.Context, accountID string) (int, error)
	TopUp(ctx context.Context, accountID string, amount int) (int, error)
	// RefundStale rolls back reservations older than maxAge and reports how many were refunded.
	RefundStale(ctx context.Context, maxAge time.Duration) (int, error)
}
