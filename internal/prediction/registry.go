package prediction

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"brandkit/internal/domain"
)

// Hosted model identifiers known out of the box.
const (
	ModelSDXL            = "stability-ai/sdxl"
	ModelStableDiffusion = "stability-ai/stable-diffusion"
	ModelMidjourneyV5    = "midjourney/midjourney-v5"
)

// Registry is a read-only set of model profiles with a designated default.
type Registry struct {
	profiles  map[string]domain.ModelProfile
	defaultID string
}

// NewRegistry validates profiles and returns a registry whose fallback is defaultID.
func NewRegistry(defaultID string, profiles ...domain.ModelProfile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, errors.New("prediction: registry needs at least one model")
	}
	reg := &Registry{profiles: make(map[string]domain.ModelProfile, len(profiles))}
	for _, p := range profiles {
		p.ID = strings.TrimSpace(p.ID)
		p.VersionID = strings.TrimSpace(p.VersionID)
		if p.ID == "" || p.VersionID == "" {
			return nil, fmt.Errorf("prediction: model %q needs id and version", p.ID)
		}
		if _, dup := reg.profiles[p.ID]; dup {
			return nil, fmt.Errorf("prediction: duplicate model %q", p.ID)
		}
		p.DefaultParameters = copyParams(p.DefaultParameters)
		if p.ImageParameters != nil {
			p.ImageParameters = copyParams(p.ImageParameters)
		}
		reg.profiles[p.ID] = p
	}
	defaultID = strings.TrimSpace(defaultID)
	if defaultID == "" {
		defaultID = strings.TrimSpace(profiles[0].ID)
	}
	if _, ok := reg.profiles[defaultID]; !ok {
		return nil, fmt.Errorf("prediction: default model %q is not registered", defaultID)
	}
	reg.defaultID = defaultID
	return reg, nil
}

// DefaultRegistry returns the built-in profiles with SDXL as the fallback.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(ModelSDXL,
		domain.ModelProfile{
			ID:        ModelSDXL,
			VersionID: "da77bc59ee60423279fd632efb4795ab731d9e3ca9705ef3341091fb989b7eaf",
			DefaultParameters: map[string]any{
				"refine":              "expert_ensemble_refiner",
				"scheduler":           "K_EULER",
				"num_outputs":         4,
				"guidance_scale":      7.5,
				"apply_watermark":     false,
				"high_noise_frac":     0.8,
				"prompt_strength":     0.8,
				"num_inference_steps": 50,
			},
			ImageParameters: map[string]any{
				"num_outputs":         4,
				"prompt_strength":     0.8,
				"num_inference_steps": 50,
			},
			SupportsImageInput: true,
		},
		domain.ModelProfile{
			ID:        ModelStableDiffusion,
			VersionID: "f178fa7a1ae43a9a9af01b833b9d2ecf97b1bcb0acfd2dc5dd04895e042863f1",
			DefaultParameters: map[string]any{
				"num_outputs":         4,
				"num_inference_steps": 50,
				"guidance_scale":      7.5,
			},
			ImageParameters: map[string]any{
				"num_outputs":         4,
				"num_inference_steps": 50,
				"guidance_scale":      7.5,
			},
			SupportsImageInput: true,
		},
		domain.ModelProfile{
			ID:        ModelMidjourneyV5,
			VersionID: "436b051ebd8f68d23e83d22de5e198e0995357afef113768c20f0b6fcef23c8b",
			DefaultParameters: map[string]any{
				"num_outputs": 4,
				"steps":       50,
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return reg
}

type registryFile struct {
	Default string                `yaml:"default"`
	Models  []domain.ModelProfile `yaml:"models"`
}

// LoadRegistry reads profiles from a YAML file. A blank path returns the built-in registry.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultRegistry(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prediction: read registry: %w", err)
	}
	return ParseRegistry(raw)
}

// ParseRegistry decodes a YAML registry document.
func ParseRegistry(raw []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("prediction: decode registry: %w", err)
	}
	return NewRegistry(file.Default, file.Models...)
}

// Lookup returns the profile registered under id.
func (r *Registry) Lookup(id string) (domain.ModelProfile, bool) {
	p, ok := r.profiles[strings.TrimSpace(id)]
	return p, ok
}

// Default returns the fallback profile.
func (r *Registry) Default() domain.ModelProfile {
	return r.profiles[r.defaultID]
}

// IDs lists registered model ids in lexical order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
