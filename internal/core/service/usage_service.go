package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const promptSummaryMaxRunes = 120

// UsageService appends usage records synchronously.
type UsageService struct {
	repo   ports.UsageRepository
	now    func() time.Time
	logger zerolog.Logger
}

func NewUsageService(repo ports.UsageRepository, logger zerolog.Logger) *UsageService {
	return &UsageService{repo: repo, now: time.Now, logger: logger}
}

// Record appends one usage record stamped with the current time.
func (s *UsageService) Record(ctx context.Context, accountID, promptSummary string) error {
	return s.RecordAt(ctx, accountID, promptSummary, s.now())
}

// RecordAt appends one usage record stamped with at.
func (s *UsageService) RecordAt(ctx context.Context, accountID, promptSummary string, at time.Time) error {
	rec := &domain.UsageRecord{
		AccountID:     accountID,
		Timestamp:     at.UTC(),
		PromptSummary: promptSummary,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// PromptSummary renders the audit summary of a generation request.
func PromptSummary(style domain.Style, prompt string) string {
	summary := fmt.Sprintf("[%s] %s", style, prompt)
	runes := []rune(summary)
	if len(runes) <= promptSummaryMaxRunes {
		return summary
	}
	return string(runes[:promptSummaryMaxRunes-1]) + "…"
}
