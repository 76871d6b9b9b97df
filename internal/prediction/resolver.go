package prediction

import (
	"strings"

	"brandkit/internal/domain"
)

// Payload is the body of a job submission.
type Payload struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

// Prompt returns the prompt that was placed in the payload input.
func (p Payload) Prompt() string {
	v, _ := p.Input["prompt"].(string)
	return v
}

// Resolver maps a generation request onto the parameter shape of a hosted model.
// It performs no I/O.
type Resolver struct {
	registry *Registry
}

// NewResolver builds a resolver over registry. A nil registry selects the built-in profiles.
func NewResolver(registry *Registry) *Resolver {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Resolver{registry: registry}
}

// Profile returns the profile used for req and whether the default profile was substituted.
// Unknown model ids fall back to the default profile instead of failing, and so does
// image-to-image on a model without image input.
func (r *Resolver) Profile(req domain.GenerationRequest) (domain.ModelProfile, bool) {
	profile, ok := r.registry.Lookup(req.ModelID())
	if !ok {
		return r.registry.Default(), true
	}
	if req.Mode() == domain.ModeImageToImage && !profile.SupportsImageInput {
		return r.registry.Default(), true
	}
	return profile, false
}

// ModelID is the identifier stamped on results: the requested id, or the default when blank.
func (r *Resolver) ModelID(req domain.GenerationRequest) string {
	if id := req.ModelID(); id != "" {
		return id
	}
	return r.registry.Default().ID
}

// Resolve produces the submission payload for req.
func (r *Resolver) Resolve(req domain.GenerationRequest) (Payload, error) {
	profile, _ := r.Profile(req)
	prompt := StyledPrompt(req.Prompt(), req.StyleTags())

	var input map[string]any
	switch req.Mode() {
	case domain.ModeImageToImage:
		ref := req.SourceImageRef()
		if ref == "" {
			return Payload{}, domain.ErrSourceImageRequired
		}
		if profile.ImageParameters != nil {
			input = copyParams(profile.ImageParameters)
		} else {
			input = copyParams(profile.DefaultParameters)
			delete(input, "width")
			delete(input, "height")
		}
		input["prompt"] = prompt
		input["image"] = ref
	default:
		res := req.Resolution()
		input = copyParams(profile.DefaultParameters)
		input["prompt"] = prompt
		input["width"] = res.Width
		input["height"] = res.Height
	}
	return Payload{Version: profile.VersionID, Input: input}, nil
}

// StyledPrompt appends style tags as ", a, b style". An empty tag list leaves prompt unchanged.
func StyledPrompt(prompt string, tags []string) string {
	if len(tags) == 0 {
		return prompt
	}
	return prompt + ", " + strings.Join(tags, ", ") + " style"
}

func copyParams(src map[string]any) map[string]any {
	out := make(map[string]any, len(src)+3)
	for k, v := range src {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyParams(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	default:
		return v
	}
}
