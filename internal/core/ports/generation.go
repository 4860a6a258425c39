package ports

import (
	"context"
	"time"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

// ModelRequest is the raw payload sent to the external image model.
type ModelRequest struct {
	Image    []byte
	MIMEType string
	Prompt   string
}

// ModelPart is one part of the external model's answer: either text or inline binary data.
type ModelPart struct {
	Text     string
	MIMEType string
	Data     []byte
}

// ImageModel is the external generation service.
type ImageModel interface {
	Generate(ctx context.Context, req ModelRequest) ([]ModelPart, error)
}

// GenerationGateway builds the final instruction, calls the external model once
// and classifies failures. It never retries.
type GenerationGateway interface {
	Invoke(ctx context.Context, image []byte, mimeType, userPrompt string, style domain.Style) (*domain.ImageResult, error)
}

// UsageRecorder appends usage records. Failures are reported but never undo a charge.
type UsageRecorder interface {
	Record(ctx context.Context, accountID, promptSummary string) error
}

// UsageSink persists a usage record stamped with the time the usage happened,
// which may be earlier than the write.
type UsageSink interface {
	RecordAt(ctx context.Context, accountID, promptSummary string, at time.Time) error
}

// IdempotencyGuard rejects a second submission of the same request key.
type IdempotencyGuard interface {
	// Claim returns false when the key was already claimed.
	Claim(ctx context.Context, accountID, key string) (bool, error)
	Release(ctx context.Context, accountID, key string) error
}

// GenerateInput is handed to the mediator by the transport layer.
type GenerateInput struct {
	Account        *domain.Account
	Image          []byte
	MIMEType       string
	Prompt         string
	Style          string
	Variations     int
	IdempotencyKey string
}

// GeneratedImage is one successful variation.
type GeneratedImage struct {
	Variation int
	Image     domain.ImageResult
}

// VariationFailure describes one variation that was rolled back.
type VariationFailure struct {
	Variation int
	Err       error
}

// GenerateResult aggregates the outcome of all variation passes.
type GenerateResult struct {
	Images   []GeneratedImage
	Failures []VariationFailure
	// Balance is the account's balance after every pass settled, or -1 when unknown.
	Balance int
}

// GenerationService mediates between callers, the credit ledger and the gateway.
type GenerationService interface {
	// Generate returns a non-nil result whenever any reservation was attempted,
	// even if it also returns an error because no variation succeeded.
	Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error)
}
