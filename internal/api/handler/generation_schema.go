package handler

type generateRequest struct {
	// ImageData is base64, optionally as a data URI.
	ImageData  string `json:"image_data" validate:"required"`
	MIMEType   string `json:"mime_type"  validate:"required,oneof=image/png image/jpeg image/webp"`
	Prompt     string `json:"prompt"     validate:"required,max=2000"`
	Style      string `json:"style"`
	Variations int    `json:"variations" validate:"gte=0"`
}

type generatedImageResponse struct {
	ImageURL  string `json:"image_url"`
	MIMEType  string `json:"mime_type"`
	Variation int    `json:"variation"`
}

type variationFailureResponse struct {
	Variation int    `json:"variation"`
	Error     string `json:"error"`
}

type generateResponse struct {
	Images   []generatedImageResponse   `json:"images"`
	Failures []variationFailureResponse `json:"failures,omitempty"`
	Credits  *int                       `json:"credits,omitempty"`
}
