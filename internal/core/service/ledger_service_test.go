package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/infrastructure/db/memory"
)

func newTestLedger(t *testing.T, credits int) (*LedgerService, *memory.AccountRepository, string) {
	t.Helper()
	repo := memory.NewAccountRepository()
	a, err := repo.Create(context.Background(), &domain.Account{
		Email:   "ledger@example.com",
		Role:    domain.RoleClient,
		Status:  domain.StatusActive,
		Credits: credits,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewLedgerService(repo, zerolog.Nop()), repo, a.ID
}

func TestLedger_ReserveCommit(t *testing.T) {
	ctx := context.Background()
	ledger, _, id := newTestLedger(t, 3)

	res, err := ledger.Reserve(ctx, id, 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := ledger.Commit(ctx, res); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if b, _ := ledger.Balance(ctx, id); b != 2 {
		t.Fatalf("expected balance 2, got %d", b)
	}
}

func TestLedger_ReserveRollbackRestoresBalance(t *testing.T) {
	ctx := context.Background()
	ledger, repo, id := newTestLedger(t, 3)

	res, _ := ledger.Reserve(ctx, id, 1)
	if err := ledger.Rollback(ctx, res); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if b, _ := ledger.Balance(ctx, id); b != 3 {
		t.Fatalf("expected balance 3, got %d", b)
	}
	if len(repo.Holds(id)) != 0 {
		t.Fatalf("hold left after rollback")
	}
}

func TestLedger_SecondRollbackDoesNotRefund(t *testing.T) {
	ctx := context.Background()
	ledger, _, id := newTestLedger(t, 3)

	res, _ := ledger.Reserve(ctx, id, 1)
	_ = ledger.Rollback(ctx, res)
	if err := ledger.Rollback(ctx, res); !errors.Is(err, domain.ErrReservationSettled) {
		t.Fatalf("expected ErrReservationSettled, got %v", err)
	}
	if b, _ := ledger.Balance(ctx, id); b != 3 {
		t.Fatalf("double rollback changed balance to %d", b)
	}
}

func TestLedger_CommitAfterRollbackFails(t *testing.T) {
	ctx := context.Background()
	ledger, _, id := newTestLedger(t, 1)

	res, _ := ledger.Reserve(ctx, id, 1)
	_ = ledger.Rollback(ctx, res)
	if err := ledger.Commit(ctx, res); !errors.Is(err, domain.ErrReservationSettled) {
		t.Fatalf("expected ErrReservationSettled, got %v", err)
	}
}

func TestLedger_ReserveInsufficient(t *testing.T) {
	ledger, _, id := newTestLedger(t, 0)

	_, err := ledger.Reserve(context.Background(), id, 1)
	var ice *domain.InsufficientCreditsError
	if !errors.As(err, &ice) {
		t.Fatalf("expected InsufficientCreditsError, got %v", err)
	}
	if ice.Required != 1 || ice.Available != 0 {
		t.Fatalf("unexpected amounts: %+v", ice)
	}
}

func TestLedger_ReserveRejectsNonPositiveCost(t *testing.T) {
	ledger, _, id := newTestLedger(t, 5)

	if _, err := ledger.Reserve(context.Background(), id, 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestLedger_ConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	const credits, callers = 5, 20
	ledger, _, id := newTestLedger(t, credits)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.Reserve(ctx, id, 1)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, domain.ErrInsufficientCredits) {
					rejected++
				}
				return
			}
			succeeded++
			_ = ledger.Commit(ctx, res)
		}()
	}
	wg.Wait()

	if succeeded != credits || rejected != callers-credits {
		t.Fatalf("expected %d successes and %d rejections, got %d and %d", credits, callers-credits, succeeded, rejected)
	}
	if b, _ := ledger.Balance(ctx, id); b != 0 {
		t.Fatalf("expected balance 0, got %d", b)
	}
}

func TestLedger_TopUp(t *testing.T) {
	ctx := context.Background()
	ledger, _, id := newTestLedger(t, 1)

	balance, err := ledger.TopUp(ctx, id, 49)
	if err != nil || balance != 50 {
		t.Fatalf("TopUp: balance=%d err=%v", balance, err)
	}
	if _, err := ledger.TopUp(ctx, id, -1); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ledger.TopUp(ctx, "missing", 5); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLedger_RefundStale(t *testing.T) {
	ctx := context.Background()
	ledger, repo, id := newTestLedger(t, 3)

	old, _ := ledger.Reserve(ctx, id, 1)
	_, _ = ledger.Reserve(ctx, id, 1)

	// Only the first reservation is old enough.
	ledger.now = func() time.Time { return old.CreatedAt.Add(10 * time.Minute) }
	fresh := domain.Reservation{ID: "fresh", AccountID: id, Amount: 1, CreatedAt: old.CreatedAt.Add(9 * time.Minute)}
	if _, err := repo.ReserveCredits(ctx, fresh); err != nil {
		t.Fatalf("seed fresh hold: %v", err)
	}

	n, err := ledger.RefundStale(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("RefundStale: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 refunds, got %d", n)
	}
	if b, _ := ledger.Balance(ctx, id); b != 2 {
		t.Fatalf("expected balance 2, got %d", b)
	}
	if holds := repo.Holds(id); len(holds) != 1 || holds[0].ID != "fresh" {
		t.Fatalf("unexpected remaining holds: %+v", holds)
	}
}
