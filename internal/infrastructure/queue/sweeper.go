package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

// Sweeper periodically refunds reservations that were never settled, for
// example because the process died between reserve and settle.
type Sweeper struct {
	ledger ports.CreditLedger
	maxAge time.Duration
	every  time.Duration
	log    zerolog.Logger
}

// NewSweeper refunds holds older than maxAge, checking every maxAge/2.
func NewSweeper(ledger ports.CreditLedger, maxAge time.Duration, log zerolog.Logger) *Sweeper {
	every := maxAge / 2
	if every <= 0 {
		every = time.Minute
	}
	return &Sweeper{ledger: ledger, maxAge: maxAge, every: every, log: log}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.ledger.RefundStale(ctx, s.maxAge)
	if err != nil {
		s.log.Error().Err(err).Msg("stale reservation sweep failed")
		return
	}
	if n > 0 {
		s.log.Warn().Int("refunded", n).Msg("refunded stale reservations")
	}
}
