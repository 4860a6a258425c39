package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/virtushot/photoshoot-api/internal/api/metrics"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const defaultGenerationTimeout = 90 * time.Second

var stylePrefixes = map[domain.Style]string{
	domain.StylePhotorealistic: "",
	domain.StyleVintage:        "Create a vintage-style photo. Apply a faded, warm color palette, and subtle film grain effect. ",
	domain.StyleMinimalist:     "Create a minimalist product shot. Use clean lines, simple composition, and a neutral color palette. ",
	domain.StyleFuturistic: "Create a futuristic product shot. Incorporate sleek metallic surfaces, glowing neon lights, and holographic elements. " +
		"The atmosphere should feel high-tech, clean, and inspired by cyberpunk or sci-fi aesthetics. ",
	domain.StyleDramatic: "Create a dramatic product shot using high-contrast lighting (chiaroscuro). Emphasize deep, rich shadows and focused spotlights " +
		"to create a moody, intense, and luxurious atmosphere. The composition should feel powerful and mysterious. ",
	domain.StyleBohemian: "Create a bohemian-style product shot. Feature natural textures like macrame, rattan, and linen. Use a warm, earthy color palette " +
		"and soft, sun-drenched natural light. The scene should feel relaxed, free-spirited, and artisanal, possibly with elements like pampas grass or dried flowers. ",
}

const productShotTemplate = "Create a high-resolution, professional-grade product photograph. The image should be sharp, clear, and highly detailed. " +
	"Take the clothing item from the provided image, meticulously remove its original background, and place it in a new, photorealistic product shot " +
	"based on the following scene: %q. The clothing item must be the main focus. Pay close attention to preserving the texture and fine details of the fabric. " +
	"Ensure the lighting on the clothing seamlessly integrates with the new scene for a professional look. " +
	"The final output must be only the generated, high-quality image."

const previewGridTemplate = "Create a single, high-resolution image formatted as a 2x3 grid. Each of the six cells in the grid should showcase " +
	"the provided clothing item in a different artistic style, based on the scene: %q. The styles to include are: %s. " +
	"Each cell must be clearly and elegantly labeled with the name of its style. " +
	"The final output must be only this single composite grid image, professionally presented."

// BuildPrompt returns the final instruction sent to the model for a style.
func BuildPrompt(style domain.Style, userPrompt string) string {
	if style.IsPreview() {
		names := make([]string, len(domain.GridStyles))
		for i, s := range domain.GridStyles {
			names[i] = styleTitle(s)
		}
		list := strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
		return fmt.Sprintf(previewGridTemplate, userPrompt, list)
	}
	return stylePrefixes[style] + fmt.Sprintf(productShotTemplate, userPrompt)
}

func styleTitle(s domain.Style) string {
	name := string(s)
	return strings.ToUpper(name[:1]) + name[1:]
}

// Gateway wraps the external image model with a bounded timeout and error classification.
type Gateway struct {
	model   ports.ImageModel
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGateway returns a Gateway. A nil model makes every call fail with
// domain.ErrServiceNotConfigured.
func NewGateway(model ports.ImageModel, timeout time.Duration, logger zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	return &Gateway{model: model, timeout: timeout, logger: logger}
}

// Invoke performs exactly one call to the external model.
func (g *Gateway) Invoke(ctx context.Context, image []byte, mimeType, userPrompt string, style domain.Style) (*domain.ImageResult, error) {
	if g.model == nil {
		g.logger.Error().Str("operator_action", "set GEMINI_API_KEY").Msg("image generation service is not configured")
		return nil, domain.ErrServiceNotConfigured
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	parts, err := g.model.Generate(callCtx, ports.ModelRequest{
		Image:    image,
		MIMEType: mimeType,
		Prompt:   BuildPrompt(style, userPrompt),
	})
	if err != nil {
		err = g.classify(ctx, callCtx, err)
		metrics.GatewayDuration.WithLabelValues(outcomeLabel(err)).Observe(time.Since(start).Seconds())
		return nil, err
	}

	for _, p := range parts {
		if len(p.Data) > 0 {
			metrics.GatewayDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
			return &domain.ImageResult{Data: p.Data, MIMEType: p.MIMEType}, nil
		}
	}

	metrics.GatewayDuration.WithLabelValues("no_image").Observe(time.Since(start).Seconds())
	return nil, domain.ErrNoImageReturned
}

func (g *Gateway) classify(parent, callCtx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrServiceNotConfigured):
		g.logger.Error().Err(err).Str("operator_action", "check GEMINI_API_KEY").Msg("image generation service rejected credentials")
		return err
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrNoImageReturned):
		return err
	case parent.Err() != nil:
		return fmt.Errorf("%w: %v", domain.ErrGenerationCancelled, err)
	case errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded:
		return fmt.Errorf("%w after %s", domain.ErrGenerationTimeout, g.timeout)
	default:
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrServiceNotConfigured):
		return "not_configured"
	case errors.Is(err, domain.ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrGenerationCancelled):
		return "cancelled"
	case errors.Is(err, domain.ErrNoImageReturned):
		return "no_image"
	default:
		return "upstream_error"
	}
}
