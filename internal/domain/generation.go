package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects how a generation request is fulfilled.
type Mode string

const (
	ModeTextToImage  Mode = "text-to-image"
	ModeImageToImage Mode = "image-to-image"
)

// ParseMode normalizes user input into a Mode. Blank input selects text-to-image.
func ParseMode(v string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "text-to-image", "text_to_image", "txt2img":
		return ModeTextToImage, nil
	case "image-to-image", "image_to_image", "img2img":
		return ModeImageToImage, nil
	default:
		return "", fmt.Errorf("%w: unsupported mode %q", ErrInvalidRequest, v)
	}
}

// DefaultResolution is used when the caller does not pick one.
const DefaultResolution = "1024x1024"

// Resolution is an output size in pixels.
type Resolution struct {
	Width  int
	Height int
}

// ParseResolution parses strings such as "1024x768".
func ParseResolution(v string) (Resolution, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		v = DefaultResolution
	}
	w, h, ok := strings.Cut(strings.ToLower(v), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, v)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, v)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, v)
	}
	return Resolution{Width: width, Height: height}, nil
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ImageUpload is a raw source image that still has to be placed in object storage.
type ImageUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// GenerationInput carries the user-facing fields of a generation request before validation.
type GenerationInput struct {
	Mode           string       `json:"mode"`
	ModelID        string       `json:"model"`
	Prompt         string       `json:"prompt"`
	Resolution     string       `json:"resolution,omitempty"`
	StyleTags      []string     `json:"styles,omitempty"`
	SourceImageRef string       `json:"source_image,omitempty"`
	SourceImage    *ImageUpload `json:"-"`
}

// GenerationRequest is a validated, immutable generation request.
type GenerationRequest struct {
	mode           Mode
	modelID        string
	prompt         string
	resolution     Resolution
	styleTags      []string
	sourceImageRef string
	sourceImage    *ImageUpload
}

// NewGenerationRequest validates input and builds an immutable request.
func NewGenerationRequest(in GenerationInput) (GenerationRequest, error) {
	mode, err := ParseMode(in.Mode)
	if err != nil {
		return GenerationRequest{}, err
	}
	// The prompt is kept verbatim; surrounding whitespace only matters for the emptiness check.
	prompt := in.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = ""
	}
	if mode == ModeTextToImage && prompt == "" {
		return GenerationRequest{}, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	res, err := ParseResolution(in.Resolution)
	if err != nil {
		return GenerationRequest{}, err
	}
	ref := strings.TrimSpace(in.SourceImageRef)
	var upload *ImageUpload
	if in.SourceImage != nil && len(in.SourceImage.Data) > 0 {
		cp := *in.SourceImage
		cp.Data = append([]byte(nil), in.SourceImage.Data...)
		upload = &cp
	}
	if mode == ModeImageToImage && ref == "" && upload == nil {
		return GenerationRequest{}, ErrSourceImageRequired
	}
	if mode == ModeTextToImage {
		ref = ""
		upload = nil
	}
	return GenerationRequest{
		mode:           mode,
		modelID:        strings.TrimSpace(in.ModelID),
		prompt:         prompt,
		resolution:     res,
		styleTags:      normalizeTags(in.StyleTags),
		sourceImageRef: ref,
		sourceImage:    upload,
	}, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r GenerationRequest) Mode() Mode             { return r.mode }
func (r GenerationRequest) ModelID() string        { return r.modelID }
func (r GenerationRequest) Prompt() string         { return r.prompt }
func (r GenerationRequest) Resolution() Resolution { return r.resolution }
func (r GenerationRequest) SourceImageRef() string { return r.sourceImageRef }

// StyleTags returns a copy of the ordered, de-duplicated tags.
func (r GenerationRequest) StyleTags() []string {
	return append([]string(nil), r.styleTags...)
}

// SourceImage returns the pending upload, if any.
func (r GenerationRequest) SourceImage() *ImageUpload {
	if r.sourceImage == nil {
		return nil
	}
	cp := *r.sourceImage
	cp.Data = append([]byte(nil), r.sourceImage.Data...)
	return &cp
}

// NeedsUpload reports whether the source image still has to be uploaded.
func (r GenerationRequest) NeedsUpload() bool {
	return r.mode == ModeImageToImage && r.sourceImageRef == "" && r.sourceImage != nil
}

// WithSourceImageRef returns a copy bound to an uploaded image URI. The pending upload is dropped.
func (r GenerationRequest) WithSourceImageRef(ref string) GenerationRequest {
	out := r
	out.styleTags = r.StyleTags()
	out.sourceImageRef = strings.TrimSpace(ref)
	out.sourceImage = nil
	return out
}

// Input converts the request back to its serializable form.
func (r GenerationRequest) Input() GenerationInput {
	return GenerationInput{
		Mode:           string(r.mode),
		ModelID:        r.modelID,
		Prompt:         r.prompt,
		Resolution:     r.resolution.String(),
		StyleTags:      r.StyleTags(),
		SourceImageRef: r.sourceImageRef,
	}
}

// ModelProfile describes how a hosted model expects its input.
type ModelProfile struct {
	ID                 string         `yaml:"id"`
	VersionID          string         `yaml:"version"`
	DefaultParameters  map[string]any `yaml:"parameters"`
	ImageParameters    map[string]any `yaml:"image_parameters"`
	SupportsImageInput bool           `yaml:"supports_image_input"`
}

// ResultImage is one generated image.
type ResultImage struct {
	ID             string `json:"id"`
	ImageURL       string `json:"image_url"`
	Prompt         string `json:"prompt"`
	ModelID        string `json:"model"`
	SourceImageRef string `json:"source_image,omitempty"`
}

// GenerationResult is the ordered output of one successful job.
type GenerationResult []ResultImage

// Generation is a persisted, completed generation.
type Generation struct {
	ID           string
	OwnerID      string
	Prompt       string
	ModelID      string
	Mode         Mode
	Styles       []string
	PredictionID string
	Results      GenerationResult
	CreatedAt    time.Time
}

// HistoryItem is one result flattened with the time its generation completed.
type HistoryItem struct {
	ResultImage
	GenerationID string    `json:"generation_id"`
	CreatedAt    time.Time `json:"created_at"`
}
