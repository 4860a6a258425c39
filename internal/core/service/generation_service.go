package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/virtushot/photoshoot-api/internal/api/metrics"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const (
	defaultMaxVariations = 4
	commitAttempts       = 3
)

// GenerationConfig tunes the mediator.
type GenerationConfig struct {
	MaxVariations int
	// MaxAttempts bounds gateway calls per variation. Retries reuse the same
	// reservation, so a variation is never charged twice.
	MaxAttempts int
	RetryDelay  time.Duration
	Parallelism int
}

type generationService struct {
	ledger   ports.CreditLedger
	gateway  ports.GenerationGateway
	recorder ports.UsageRecorder
	guard    ports.IdempotencyGuard
	cfg      GenerationConfig
	logger   zerolog.Logger
}

// NewGenerationService returns the request mediator. guard may be nil.
func NewGenerationService(
	ledger ports.CreditLedger,
	gateway ports.GenerationGateway,
	recorder ports.UsageRecorder,
	guard ports.IdempotencyGuard,
	cfg GenerationConfig,
	logger zerolog.Logger,
) ports.GenerationService {
	if cfg.MaxVariations <= 0 {
		cfg.MaxVariations = defaultMaxVariations
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &generationService{
		ledger:   ledger,
		gateway:  gateway,
		recorder: recorder,
		guard:    guard,
		cfg:      cfg,
		logger:   logger,
	}
}

type passOutcome struct {
	image *domain.ImageResult
	err   error
}

// Generate runs each variation through reserve → invoke → commit or rollback.
func (s *generationService) Generate(ctx context.Context, in ports.GenerateInput) (*ports.GenerateResult, error) {
	// 1. The caller must be resolved and allowed to spend. Checked before any reservation.
	if in.Account == nil {
		return nil, domain.ErrUnauthorized
	}
	if !in.Account.IsActive() {
		return nil, domain.ErrAccountRevoked
	}

	// 2. Validate the request.
	style, err := domain.ParseStyle(in.Style)
	if err != nil {
		return nil, err
	}
	variations := in.Variations
	if variations == 0 {
		variations = 1
	}
	if variations < 1 || variations > s.cfg.MaxVariations {
		return nil, fmt.Errorf("%w: must be between 1 and %d", domain.ErrInvalidVariations, s.cfg.MaxVariations)
	}
	if len(in.Image) == 0 || in.MIMEType == "" {
		return nil, domain.ErrInvalidImage
	}
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	passes := style.Passes(variations)
	accountID := in.Account.ID

	// 3. Idempotency: a replayed submission must not be charged again.
	claimed := false
	if s.guard != nil && in.IdempotencyKey != "" {
		ok, err := s.guard.Claim(ctx, accountID, in.IdempotencyKey)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("account_id", accountID).Msg("idempotency check failed, processing anyway")
		case !ok:
			metrics.IdempotencyTotal.WithLabelValues("hit").Inc()
			return nil, domain.ErrDuplicateRequest
		default:
			metrics.IdempotencyTotal.WithLabelValues("miss").Inc()
			claimed = true
		}
	}

	// 4. Settlement must complete even if the caller goes away.
	settleCtx := context.WithoutCancel(ctx)

	// 5. Independent passes, bounded parallelism.
	outcomes := make([]passOutcome, passes)
	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for i := range passes {
		g.Go(func() error {
			outcomes[i] = s.runPass(ctx, settleCtx, accountID, in, style, prompt, i+1)
			return nil
		})
	}
	_ = g.Wait()

	// 6. Aggregate.
	result := &ports.GenerateResult{Balance: -1}
	for i, o := range outcomes {
		if o.err != nil {
			result.Failures = append(result.Failures, ports.VariationFailure{Variation: i + 1, Err: o.err})
			continue
		}
		result.Images = append(result.Images, ports.GeneratedImage{Variation: i + 1, Image: *o.image})
	}

	if balance, err := s.ledger.Balance(settleCtx, accountID); err == nil {
		result.Balance = balance
	} else {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("could not read balance after generation")
	}

	if len(result.Images) == 0 {
		if claimed {
			if err := s.guard.Release(settleCtx, accountID, in.IdempotencyKey); err != nil {
				s.logger.Warn().Err(err).Str("account_id", accountID).Msg("failed to release idempotency key")
			}
		}
		return result, failureCause(result, passes)
	}

	s.logger.Info().
		Str("account_id", accountID).
		Str("style", string(style)).
		Int("requested", passes).
		Int("succeeded", len(result.Images)).
		Int("balance", result.Balance).
		Msg("generation completed")
	return result, nil
}

// runPass is one Reserved → Invoked → {Committed, RolledBack} pass.
func (s *generationService) runPass(
	ctx, settleCtx context.Context,
	accountID string,
	in ports.GenerateInput,
	style domain.Style,
	prompt string,
	variation int,
) passOutcome {
	res, err := s.ledger.Reserve(ctx, accountID, domain.CreditsPerImage)
	if err != nil {
		outcome := "reserve_failed"
		if errors.Is(err, domain.ErrInsufficientCredits) {
			outcome = "insufficient_credits"
		}
		metrics.GenerationsTotal.WithLabelValues(string(style), outcome).Inc()
		return passOutcome{err: err}
	}

	img, err := s.invoke(ctx, in, style, prompt, variation)
	if err != nil {
		if rbErr := s.ledger.Rollback(settleCtx, res); rbErr != nil {
			// The stale-reservation sweeper refunds holds left behind here.
			s.logger.Error().Err(rbErr).Str("reservation_id", res.ID).Msg("rollback failed")
		}
		metrics.GenerationsTotal.WithLabelValues(string(style), outcomeLabel(err)).Inc()
		s.logger.Warn().
			Err(err).
			Str("account_id", accountID).
			Int("variation", variation).
			Msg("variation failed, credit refunded")
		return passOutcome{err: err}
	}

	s.commit(settleCtx, res)
	metrics.GenerationsTotal.WithLabelValues(string(style), "success").Inc()

	if err := s.recorder.Record(settleCtx, accountID, PromptSummary(style, prompt)); err != nil {
		metrics.UsageRecordFailuresTotal.Inc()
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("failed to record usage")
	}
	return passOutcome{image: img}
}

func (s *generationService) invoke(ctx context.Context, in ports.GenerateInput, style domain.Style, prompt string, variation int) (*domain.ImageResult, error) {
	for attempt := 1; ; attempt++ {
		img, err := s.gateway.Invoke(ctx, in.Image, in.MIMEType, prompt, style)
		if err == nil || attempt >= s.cfg.MaxAttempts || !domain.RetryableGenerationError(err) {
			return img, err
		}

		s.logger.Warn().Err(err).Int("variation", variation).Int("attempt", attempt).Msg("retrying generation")
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrGenerationCancelled, ctx.Err())
		case <-time.After(s.cfg.RetryDelay):
		}
	}
}

func (s *generationService) commit(ctx context.Context, res *domain.Reservation) {
	var err error
	for i := 0; i < commitAttempts; i++ {
		err = s.ledger.Commit(ctx, res)
		if err == nil {
			return
		}
		if errors.Is(err, domain.ErrReservationSettled) {
			// Refunded while the generation ran: the image is delivered for free.
			metrics.UnbilledGenerationsTotal.Inc()
			s.logger.Error().
				Err(err).
				Str("account_id", res.AccountID).
				Str("reservation_id", res.ID).
				Str("operator_action", "raise RESERVATION_TTL above the longest generation pass").
				Msg("reservation refunded before commit, generation unbilled")
			return
		}
	}
	s.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("commit failed, hold left on account")
}

// failureCause picks the error reported when no variation succeeded.
func failureCause(result *ports.GenerateResult, passes int) error {
	allInsufficient := true
	for _, f := range result.Failures {
		if !errors.Is(f.Err, domain.ErrInsufficientCredits) {
			allInsufficient = false
			break
		}
	}
	if allInsufficient {
		available := result.Balance
		if available < 0 {
			available = 0
		}
		return &domain.InsufficientCreditsError{Required: passes * domain.CreditsPerImage, Available: available}
	}
	for _, f := range result.Failures {
		if !errors.Is(f.Err, domain.ErrInsufficientCredits) {
			return f.Err
		}
	}
	return result.Failures[0].Err
}
