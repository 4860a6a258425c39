package domain

import (
	"errors"
	"strings"
)

// Style selects the aesthetic applied to a generated product shot.
type Style string

const (
	StylePhotorealistic   Style = "photorealistic"
	StyleVintage          Style = "vintage"
	StyleMinimalist       Style = "minimalist"
	StyleFuturistic       Style = "futuristic"
	StyleDramatic         Style = "dramatic"
	StyleBohemian         Style = "bohemian"
	StyleAllStylesPreview Style = "all-styles-preview"
)

// GridStyles is the ordered set of styles rendered in an all-styles preview.
var GridStyles = []Style{
	StylePhotorealistic,
	StyleVintage,
	StyleMinimalist,
	StyleFuturistic,
	StyleDramatic,
	StyleBohemian,
}

var (
	ErrInvalidStyle      = errors.New("unknown style")
	ErrInvalidVariations = errors.New("invalid variation count")
	ErrInvalidImage      = errors.New("image data and mime type are required")
	ErrEmptyPrompt       = errors.New("prompt is required")
	ErrDuplicateRequest  = errors.New("request with this idempotency key was already submitted")
)

// ServiceUnavailableMessage is shown to clients in place of configuration errors.
const ServiceUnavailableMessage = "service unavailable, contact administrator"

// Failure classes surfaced by the generation gateway.
var (
	// ErrServiceNotConfigured means the external service has no usable credentials.
	// It is not retryable; an administrator must configure the service.
	ErrServiceNotConfigured = errors.New("image generation service is not configured")
	// ErrUpstream means the external service failed or answered with something unusable.
	ErrUpstream            = errors.New("image generation service error")
	ErrGenerationTimeout   = errors.New("image generation timed out")
	ErrGenerationCancelled = errors.New("image generation cancelled")
	ErrNoImageReturned     = errors.New("image generation returned no image")
)

// ParseStyle resolves a style tag case-insensitively. An empty tag means photorealistic.
func ParseStyle(tag string) (Style, error) {
	s := Style(strings.ToLower(strings.TrimSpace(tag)))
	if s == "" {
		return StylePhotorealistic, nil
	}
	if s == StyleAllStylesPreview {
		return s, nil
	}
	for _, known := range GridStyles {
		if s == known {
			return s, nil
		}
	}
	return "", ErrInvalidStyle
}

// IsPreview reports whether the style renders every style into one composite image.
func (s Style) IsPreview() bool {
	return s == StyleAllStylesPreview
}

// Passes returns how many independent generations a request needs.
// A preview is always a single pass regardless of the requested count.
func (s Style) Passes(variations int) int {
	if s.IsPreview() {
		return 1
	}
	return variations
}

// CreditsPerImage is the cost of one generated image.
const CreditsPerImage = 1

// GenerationRequest is the ephemeral input of one generation call.
type GenerationRequest struct {
	AccountID  string
	Image      []byte
	MIMEType   string
	Prompt     string
	Style      Style
	Variations int
}

// ImageResult is a single generated image.
type ImageResult struct {
	Data     []byte
	MIMEType string
}

// RetryableGenerationError reports whether a gateway failure may be retried by the caller.
func RetryableGenerationError(err error) bool {
	return errors.Is(err, ErrUpstream)
}
