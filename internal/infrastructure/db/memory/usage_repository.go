package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

type UsageRepository struct {
	mu      sync.Mutex
	records []domain.UsageRecord
}

func NewUsageRepository() *UsageRepository {
	return &UsageRepository{}
}

func (r *UsageRepository) Insert(_ context.Context, record *domain.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	r.records = append(r.records, *record)
	return nil
}

// ListByAccount returns records newest first.
func (r *UsageRepository) ListByAccount(_ context.Context, accountID string, page, limit int) ([]*domain.UsageRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.UsageRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].AccountID == accountID {
			rec := r.records[i]
			out = append(out, &rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	return paginate(out, page, limit), int64(len(out)), nil
}

func (r *UsageRepository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.records)), nil
}
