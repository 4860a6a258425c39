package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const idempotencyHeader = "Idempotency-Key"

// GenerationHandler exposes the product-shot generation endpoint.
type GenerationHandler struct {
	service ports.GenerationService
}

func NewGenerationHandler(service ports.GenerationService) *GenerationHandler {
	return &GenerationHandler{service: service}
}

// Generate handles POST /v1/generate.
//
// Each variation is charged one credit and refunded if it fails. An
// all-styles-preview request is always a single image.
//
// @Summary      Generate product shots
// @Tags         generation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        Idempotency-Key  header    string           false  "Rejects a replay of the same request"
// @Param        body             body      generateRequest  true   "Source image and scene"
// @Success      200              {object}  generateResponse
// @Failure      401              {object}  errorResponse
// @Failure      402              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      422              {object}  errorResponse
// @Failure      429              {object}  errorResponse
// @Failure      502              {object}  errorResponse
// @Failure      503              {object}  errorResponse
// @Failure      504              {object}  errorResponse
// @Router       /v1/generate [post]
func (h *GenerationHandler) Generate(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	image, err := decodeImage(req.ImageData)
	if err != nil {
		return domain.ErrInvalidImage
	}

	result, err := h.service.Generate(c.Request().Context(), ports.GenerateInput{
		Account:        account,
		Image:          image,
		MIMEType:       req.MIMEType,
		Prompt:         req.Prompt,
		Style:          req.Style,
		Variations:     req.Variations,
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get(idempotencyHeader)),
	})
	if err != nil {
		if result != nil && result.Balance >= 0 {
			return &BalanceError{Err: err, Credits: result.Balance}
		}
		return err
	}

	return c.JSON(http.StatusOK, toGenerateResponse(result))
}

// decodeImage accepts raw base64 or a data URI.
func decodeImage(data string) ([]byte, error) {
	if strings.HasPrefix(data, "data:") {
		_, payload, ok := strings.Cut(data, ";base64,")
		if !ok {
			return nil, errors.New("unsupported data uri")
		}
		data = payload
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty image")
	}
	return b, nil
}

func toGenerateResponse(r *ports.GenerateResult) generateResponse {
	resp := generateResponse{Images: make([]generatedImageResponse, len(r.Images))}
	for i, img := range r.Images {
		resp.Images[i] = generatedImageResponse{
			ImageURL:  "data:" + img.Image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Image.Data),
			MIMEType:  img.Image.MIMEType,
			Variation: img.Variation,
		}
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, variationFailureResponse{Variation: f.Variation, Error: failureMessage(f.Err)})
	}
	if r.Balance >= 0 {
		balance := r.Balance
		resp.Credits = &balance
	}
	return resp
}

// failureMessage reports a variation failure without upstream payloads.
func failureMessage(err error) string {
	if errors.Is(err, domain.ErrServiceNotConfigured) {
		return domain.ServiceUnavailableMessage
	}
	for _, known := range []error{
		domain.ErrInsufficientCredits,
		domain.ErrGenerationTimeout,
		domain.ErrGenerationCancelled,
		domain.ErrNoImageReturned,
		domain.ErrAccountRevoked,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return domain.ErrUpstream.Error()
}
