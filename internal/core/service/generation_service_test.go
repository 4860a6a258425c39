package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/api/metrics"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
	"github.com/virtushot/photoshoot-api/internal/infrastructure/db/memory"
)

type stubGateway struct {
	invoke func(ctx context.Context, style domain.Style) (*domain.ImageResult, error)
	calls  atomic.Int32
}

func (g *stubGateway) Invoke(ctx context.Context, _ []byte, _, _ string, style domain.Style) (*domain.ImageResult, error) {
	g.calls.Add(1)
	return g.invoke(ctx, style)
}

func okGateway() *stubGateway {
	return &stubGateway{invoke: func(context.Context, domain.Style) (*domain.ImageResult, error) {
		return &domain.ImageResult{Data: []byte("img"), MIMEType: "image/png"}, nil
	}}
}

type stubRecorder struct {
	mu        sync.Mutex
	summaries []string
	err       error
}

func (r *stubRecorder) Record(_ context.Context, _ string, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.summaries = append(r.summaries, summary)
	return nil
}

func (r *stubRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.summaries)
}

type stubGuard struct {
	claim    func(accountID, key string) (bool, error)
	released []string
}

func (g *stubGuard) Claim(_ context.Context, accountID, key string) (bool, error) {
	return g.claim(accountID, key)
}

func (g *stubGuard) Release(_ context.Context, _ string, key string) error {
	g.released = append(g.released, key)
	return nil
}

type mediatorFixture struct {
	svc      ports.GenerationService
	ledger   *LedgerService
	repo     *memory.AccountRepository
	recorder *stubRecorder
	account  *domain.Account
}

func newMediatorFixture(t *testing.T, credits int, gw ports.GenerationGateway, guard *stubGuard, cfg GenerationConfig) *mediatorFixture {
	t.Helper()
	repo := memory.NewAccountRepository()
	account, err := repo.Create(context.Background(), &domain.Account{
		Email:   "client@example.com",
		Role:    domain.RoleClient,
		Status:  domain.StatusActive,
		Credits: credits,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger := NewLedgerService(repo, zerolog.Nop())
	recorder := &stubRecorder{}
	var idem ports.IdempotencyGuard
	if guard != nil {
		idem = guard
	}
	svc := NewGenerationService(ledger, gw, recorder, idem, cfg, zerolog.Nop())
	return &mediatorFixture{svc: svc, ledger: ledger, repo: repo, recorder: recorder, account: account}
}

func (f *mediatorFixture) balance(t *testing.T) int {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), f.account.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func (f *mediatorFixture) input(style string, variations int) ports.GenerateInput {
	return ports.GenerateInput{
		Account:    f.account,
		Image:      []byte("source"),
		MIMEType:   "image/png",
		Prompt:     "on a marble table",
		Style:      style,
		Variations: variations,
	}
}

func TestGenerate_SuccessChargesOneCredit(t *testing.T) {
	gw := okGateway()
	f := newMediatorFixture(t, 3, gw, nil, GenerationConfig{})

	res, err := f.svc.Generate(context.Background(), f.input("vintage", 1))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Images) != 1 || len(res.Failures) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Balance != 2 || f.balance(t) != 2 {
		t.Fatalf("expected balance 2, got result=%d store=%d", res.Balance, f.balance(t))
	}
	if f.recorder.count() != 1 || f.recorder.summaries[0] != "[vintage] on a marble table" {
		t.Fatalf("unexpected usage records: %v", f.recorder.summaries)
	}
	if len(f.repo.Holds(f.account.ID)) != 0 {
		t.Fatalf("hold left after commit")
	}
}

func TestGenerate_InsufficientCreditsNeverCallsGateway(t *testing.T) {
	gw := okGateway()
	f := newMediatorFixture(t, 0, gw, nil, GenerationConfig{})

	res, err := f.svc.Generate(context.Background(), f.input("", 1))
	var ice *domain.InsufficientCreditsError
	if !errors.As(err, &ice) || ice.Required != 1 || ice.Available != 0 {
		t.Fatalf("expected insufficient credits 1/0, got %v", err)
	}
	if res == nil || res.Balance != 0 {
		t.Fatalf("expected result carrying balance 0, got %+v", res)
	}
	if gw.calls.Load() != 0 {
		t.Fatalf("gateway was called %d times", gw.calls.Load())
	}
	if f.recorder.count() != 0 {
		t.Fatalf("usage recorded for a failed request")
	}
}

func TestGenerate_UpstreamFailureRefunds(t *testing.T) {
	gw := &stubGateway{invoke: func(context.Context, domain.Style) (*domain.ImageResult, error) {
		return nil, domain.ErrUpstream
	}}
	f := newMediatorFixture(t, 3, gw, nil, GenerationConfig{})

	res, err := f.svc.Generate(context.Background(), f.input("dramatic", 1))
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if res.Balance != 3 || f.balance(t) != 3 {
		t.Fatalf("expected balance restored to 3, got %d", f.balance(t))
	}
	if f.recorder.count() != 0 {
		t.Fatalf("usage recorded for a failed generation")
	}
	if len(f.repo.Holds(f.account.ID)) != 0 {
		t.Fatalf("hold left after rollback")
	}
}

func TestGenerate_RevokedAccountRejectedBeforeReservation(t *testing.T) {
	gw := okGateway()
	f := newMediatorFixture(t, 5, gw, nil, GenerationConfig{})
	in := f.input("", 1)
	revoked := *f.account
	revoked.Status = domain.StatusRevoked
	in.Account = &revoked

	res, err := f.svc.Generate(context.Background(), in)
	if !errors.Is(err, domain.ErrAccountRevoked) || res != nil {
		t.Fatalf("expected ErrAccountRevoked, got %v", err)
	}
	if f.balance(t) != 5 || gw.calls.Load() != 0 {
		t.Fatalf("revoked request touched balance or gateway")
	}
}

func TestGenerate_NilAccountUnauthorized(t *testing.T) {
	f := newMediatorFixture(t, 5, okGateway(), nil, GenerationConfig{})
	in := f.input("", 1)
	in.Account = nil

	if _, err := f.svc.Generate(context.Background(), in); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGenerate_PartialVariations(t *testing.T) {
	gw := okGateway()
	f := newMediatorFixture(t, 2, gw, nil, GenerationConfig{Parallelism: 2})

	res, err := f.svc.Generate(context.Background(), f.input("minimalist", 3))
	if err != nil {
		t.Fatalf("partial success should not error: %v", err)
	}
	if len(res.Images) != 2 || len(res.Failures) != 1 {
		t.Fatalf("expected 2 images and 1 failure, got %d/%d", len(res.Images), len(res.Failures))
	}
	if !errors.Is(res.Failures[0].Err, domain.ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits failure, got %v", res.Failures[0].Err)
	}
	if res.Balance != 0 || f.recorder.count() != 2 {
		t.Fatalf("expected balance 0 and 2 usage records, got %d and %d", res.Balance, f.recorder.count())
	}
}

func TestGenerate_AllInsufficientReportsRequestedCost(t *testing.T) {
	f := newMediatorFixture(t, 0, okGateway(), nil, GenerationConfig{})

	_, err := f.svc.Generate(context.Background(), f.input("vintage", 3))
	var ice *domain.InsufficientCreditsError
	if !errors.As(err, &ice) || ice.Required != 3 || ice.Available != 0 {
		t.Fatalf("expected insufficient credits 3/0, got %v", err)
	}
}

func TestGenerate_PreviewIsSinglePass(t *testing.T) {
	gw := okGateway()
	f := newMediatorFixture(t, 5, gw, nil, GenerationConfig{})

	res, err := f.svc.Generate(context.Background(), f.input("All-Styles-Preview", 4))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Images) != 1 || gw.calls.Load() != 1 {
		t.Fatalf("expected a single pass, got %d images and %d calls", len(res.Images), gw.calls.Load())
	}
	if f.balance(t) != 4 {
		t.Fatalf("preview should cost 1 credit, balance is %d", f.balance(t))
	}
}

func TestGenerate_Validation(t *testing.T) {
	f := newMediatorFixture(t, 5, okGateway(), nil, GenerationConfig{MaxVariations: 4})

	cases := []struct {
		name string
		mut  func(*ports.GenerateInput)
		want error
	}{
		{"unknown style", func(in *ports.GenerateInput) { in.Style = "cubist" }, domain.ErrInvalidStyle},
		{"too many variations", func(in *ports.GenerateInput) { in.Variations = 5 }, domain.ErrInvalidVariations},
		{"negative variations", func(in *ports.GenerateInput) { in.Variations = -1 }, domain.ErrInvalidVariations},
		{"no image", func(in *ports.GenerateInput) { in.Image = nil }, domain.ErrInvalidImage},
		{"blank prompt", func(in *ports.GenerateInput) { in.Prompt = "   " }, domain.ErrEmptyPrompt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := f.input("", 1)
			tc.mut(&in)
			if _, err := f.svc.Generate(context.Background(), in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if f.balance(t) != 5 {
		t.Fatalf("validation failures changed balance to %d", f.balance(t))
	}
}

func TestGenerate_RetryReusesReservation(t *testing.T) {
	var attempts atomic.Int32
	gw := &stubGateway{invoke: func(context.Context, domain.Style) (*domain.ImageResult, error) {
		if attempts.Add(1) == 1 {
			return nil, domain.ErrUpstream
		}
		return &domain.ImageResult{Data: []byte("img"), MIMEType: "image/png"}, nil
	}}
	f := newMediatorFixture(t, 3, gw, nil, GenerationConfig{MaxAttempts: 2, RetryDelay: time.Millisecond})

	res, err := f.svc.Generate(context.Background(), f.input("", 1))
	if err != nil || len(res.Images) != 1 {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if gw.calls.Load() != 2 || f.balance(t) != 2 {
		t.Fatalf("expected 2 calls and 1 credit charged, got %d calls, balance %d", gw.calls.Load(), f.balance(t))
	}
}

func TestGenerate_TimeoutIsNotRetried(t *testing.T) {
	gw := &stubGateway{invoke: func(context.Context, domain.Style) (*domain.ImageResult, error) {
		return nil, domain.ErrGenerationTimeout
	}}
	f := newMediatorFixture(t, 3, gw, nil, GenerationConfig{MaxAttempts: 3, RetryDelay: time.Millisecond})

	if _, err := f.svc.Generate(context.Background(), f.input("", 1)); !errors.Is(err, domain.ErrGenerationTimeout) {
		t.Fatalf("expected ErrGenerationTimeout, got %v", err)
	}
	if gw.calls.Load() != 1 || f.balance(t) != 3 {
		t.Fatalf("expected one call and full refund, got %d calls, balance %d", gw.calls.Load(), f.balance(t))
	}
}

func TestGenerate_CallerCancellationStillRefunds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &stubGateway{invoke: func(ctx context.Context, _ domain.Style) (*domain.ImageResult, error) {
		cancel()
		return nil, domain.ErrGenerationCancelled
	}}
	f := newMediatorFixture(t, 2, gw, nil, GenerationConfig{})

	if _, err := f.svc.Generate(ctx, f.input("", 1)); !errors.Is(err, domain.ErrGenerationCancelled) {
		t.Fatalf("expected ErrGenerationCancelled, got %v", err)
	}
	if f.balance(t) != 2 || len(f.repo.Holds(f.account.ID)) != 0 {
		t.Fatalf("cancelled request was not refunded, balance %d", f.balance(t))
	}
}

func TestGenerate_UsageFailureKeepsCharge(t *testing.T) {
	f := newMediatorFixture(t, 2, okGateway(), nil, GenerationConfig{})
	f.recorder.err = errors.New("disk full")

	res, err := f.svc.Generate(context.Background(), f.input("", 1))
	if err != nil || len(res.Images) != 1 {
		t.Fatalf("usage failure must not fail the request: %v", err)
	}
	if f.balance(t) != 1 {
		t.Fatalf("expected charge to stand, balance %d", f.balance(t))
	}
}

func TestGenerate_DuplicateIdempotencyKey(t *testing.T) {
	seen := map[string]bool{}
	guard := &stubGuard{claim: func(accountID, key string) (bool, error) {
		k := accountID + ":" + key
		if seen[k] {
			return false, nil
		}
		seen[k] = true
		return true, nil
	}}
	gw := okGateway()
	f := newMediatorFixture(t, 5, gw, guard, GenerationConfig{})
	in := f.input("", 1)
	in.IdempotencyKey = "req-1"

	if _, err := f.svc.Generate(context.Background(), in); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if _, err := f.svc.Generate(context.Background(), in); !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
	if f.balance(t) != 4 || gw.calls.Load() != 1 {
		t.Fatalf("replay was charged: balance %d, calls %d", f.balance(t), gw.calls.Load())
	}
}

func TestGenerate_FailedRequestReleasesIdempotencyKey(t *testing.T) {
	guard := &stubGuard{claim: func(string, string) (bool, error) { return true, nil }}
	gw := &stubGateway{invoke: func(context.Context, domain.Style) (*domain.ImageResult, error) {
		return nil, domain.ErrUpstream
	}}
	f := newMediatorFixture(t, 5, gw, guard, GenerationConfig{})
	in := f.input("", 1)
	in.IdempotencyKey = "req-2"

	_, _ = f.svc.Generate(context.Background(), in)
	if len(guard.released) != 1 || guard.released[0] != "req-2" {
		t.Fatalf("expected key released, got %v", guard.released)
	}
}

func TestGenerate_ConcurrentRequestsNeverOverspend(t *testing.T) {
	const credits, callers = 3, 12
	f := newMediatorFixture(t, credits, okGateway(), nil, GenerationConfig{})

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Generate(context.Background(), f.input("", 1)); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != credits || f.balance(t) != 0 {
		t.Fatalf("expected %d successes and balance 0, got %d and %d", credits, succeeded.Load(), f.balance(t))
	}
	if f.recorder.count() != credits {
		t.Fatalf("expected %d usage records, got %d", credits, f.recorder.count())
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestGenerate_HoldRefundedMidCallIsReportedUnbilled(t *testing.T) {
	var ledger *LedgerService
	gw := &stubGateway{invoke: func(ctx context.Context, _ domain.Style) (*domain.ImageResult, error) {
		// The sweeper fires while the model is still working.
		n, err := ledger.RefundStale(ctx, -time.Second)
		if err != nil || n != 1 {
			t.Errorf("expected the in-flight hold to be swept, got n=%d err=%v", n, err)
		}
		return &domain.ImageResult{Data: []byte("img"), MIMEType: "image/png"}, nil
	}}
	f := newMediatorFixture(t, 1, gw, nil, GenerationConfig{})
	ledger = f.ledger
	before := counterValue(t, metrics.UnbilledGenerationsTotal)

	res, err := f.svc.Generate(context.Background(), f.input("vintage", 1))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Images) != 1 {
		t.Fatalf("expected the image to be delivered, got %d", len(res.Images))
	}
	if got := counterValue(t, metrics.UnbilledGenerationsTotal) - before; got != 1 {
		t.Fatalf("expected one unbilled generation to be counted, got %v", got)
	}
	if got := f.balance(t); got != 1 {
		t.Fatalf("expected the swept refund to stand, got balance %d", got)
	}
}

func TestGenerate_NormalCommitIsNotCountedUnbilled(t *testing.T) {
	f := newMediatorFixture(t, 2, okGateway(), nil, GenerationConfig{})
	before := counterValue(t, metrics.UnbilledGenerationsTotal)

	if _, err := f.svc.Generate(context.Background(), f.input("vintage", 2)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := counterValue(t, metrics.UnbilledGenerationsTotal) - before; got != 0 {
		t.Fatalf("expected no unbilled generations, got %v", got)
	}
}
