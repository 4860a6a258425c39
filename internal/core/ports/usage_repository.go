package ports

import (
	"context"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

// UsageRepository is the append-only store of usage records.
type UsageRepository interface {
	Insert(ctx context.Context, record *domain.UsageRecord) error
	// ListByAccount returns a page of records, newest first, plus the total count.
	ListByAccount(ctx context.Context, accountID string, page, limit int) ([]*domain.UsageRecord, int64, error)
	Count(ctx context.Context) (int64, error)
}
