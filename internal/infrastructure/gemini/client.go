// Package gemini adapts the Gemini image model to ports.ImageModel.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const DefaultModel = "gemini-2.5-flash-image-preview"

// Config holds the connection settings for the Gemini API.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// HTTPClient is optional; tests point it at an httptest server.
	HTTPClient *http.Client
}

// Client calls generateContent with an image and an instruction and returns
// the parts of the first candidate.
type Client struct {
	models *genai.Models
	model  string
}

// NewClient builds a Gemini client. A missing API key is reported as
// domain.ErrServiceNotConfigured.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrServiceNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{models: client.Models, model: cfg.Model}, nil
}

// Generate sends one request. Credential rejections map to
// domain.ErrServiceNotConfigured; other API errors to domain.ErrUpstream.
func (c *Client) Generate(ctx context.Context, req ports.ModelRequest) ([]ports.ModelPart, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image, req.MIMEType),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, domain.ErrNoImageReturned
	}

	var parts []ports.ModelPart
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		part := ports.ModelPart{Text: p.Text}
		if p.InlineData != nil {
			part.Data = p.InlineData.Data
			part.MIMEType = p.InlineData.MIMEType
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", domain.ErrServiceNotConfigured, err)
	case 0:
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	default:
		return fmt.Errorf("%w: status %d: %v", domain.ErrUpstream, code, err)
	}
}
