// Package replicate describes the image generation models available on
// Replicate and the settings a client applies when calling them.
package replicate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ImageModelID identifies a Replicate image model as "owner/name". The
// constants below are the models known to work; any other id is passed
// through unchanged so newly published models can be used without a release.
type ImageModelID string

const (
	Flux11Pro                      ImageModelID = "black-forest-labs/flux-1.1-pro"
	Flux11ProUltra                 ImageModelID = "black-forest-labs/flux-1.1-pro-ultra"
	FluxDev                        ImageModelID = "black-forest-labs/flux-dev"
	FluxPro                        ImageModelID = "black-forest-labs/flux-pro"
	FluxSchnell                    ImageModelID = "black-forest-labs/flux-schnell"
	SDXLLightning4Step             ImageModelID = "bytedance/sdxl-lightning-4step"
	AuraFlow                       ImageModelID = "fofr/aura-flow"
	LatentConsistencyModel         ImageModelID = "fofr/latent-consistency-model"
	RealVisXLV3MultiControlnetLora ImageModelID = "fofr/realvisxl-v3-multi-controlnet-lora"
	SDXLEmoji                      ImageModelID = "fofr/sdxl-emoji"
	SDXLMultiControlnetLora        ImageModelID = "fofr/sdxl-multi-controlnet-lora"
	IdeogramV2                     ImageModelID = "ideogram-ai/ideogram-v2"
	IdeogramV2Turbo                ImageModelID = "ideogram-ai/ideogram-v2-turbo"
	DreamshaperXLTurbo             ImageModelID = "lucataco/dreamshaper-xl-turbo"
	OpenDalleV11                   ImageModelID = "lucataco/open-dalle-v1.1"
	RealVisXLV20                   ImageModelID = "lucataco/realvisxl-v2.0"
	RealVisXL2LCM                  ImageModelID = "lucataco/realvisxl2-lcm"
	LumaPhoton                     ImageModelID = "luma/photon"
	LumaPhotonFlash                ImageModelID = "luma/photon-flash"
	NvidiaSana                     ImageModelID = "nvidia/sana"
	PlaygroundV25Aesthetic         ImageModelID = "playgroundai/playground-v2.5-1024px-aesthetic"
	RecraftV3                      ImageModelID = "recraft-ai/recraft-v3"
	RecraftV3SVG                   ImageModelID = "recraft-ai/recraft-v3-svg"
	StableDiffusion35Large         ImageModelID = "stability-ai/stable-diffusion-3.5-large"
	StableDiffusion35LargeTurbo    ImageModelID = "stability-ai/stable-diffusion-3.5-large-turbo"
	StableDiffusion35Medium        ImageModelID = "stability-ai/stable-diffusion-3.5-medium"
	MaterialDiffusion              ImageModelID = "tstramer/material-diffusion"
)

var knownImageModels = []ImageModelID{
	Flux11Pro,
	Flux11ProUltra,
	FluxDev,
	FluxPro,
	FluxSchnell,
	SDXLLightning4Step,
	AuraFlow,
	LatentConsistencyModel,
	RealVisXLV3MultiControlnetLora,
	SDXLEmoji,
	SDXLMultiControlnetLora,
	IdeogramV2,
	IdeogramV2Turbo,
	DreamshaperXLTurbo,
	OpenDalleV11,
	RealVisXLV20,
	RealVisXL2LCM,
	LumaPhoton,
	LumaPhotonFlash,
	NvidiaSana,
	PlaygroundV25Aesthetic,
	RecraftV3,
	RecraftV3SVG,
	StableDiffusion35Large,
	StableDiffusion35LargeTurbo,
	StableDiffusion35Medium,
	MaterialDiffusion,
}

// ErrEmptyModelID is returned by ParseImageModelID for a blank id.
var ErrEmptyModelID = errors.New("replicate: empty image model id")

// KnownImageModels returns a copy of the known model ids, sorted.
func KnownImageModels() []ImageModelID {
	return slices.Clone(knownImageModels)
}

// IsKnown reports whether id is one of the known constants.
func (id ImageModelID) IsKnown() bool {
	_, found := slices.BinarySearch(knownImageModels, id)
	return found
}

// ParseImageModelID accepts any non-empty id. Unknown ids are returned as-is.
func ParseImageModelID(s string) (ImageModelID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyModelID
	}
	return ImageModelID(s), nil
}

// DefaultMaxImagesPerCall is used when ImageSettings does not override it.
const DefaultMaxImagesPerCall = 1

// ImageSettings are per-model options for image generation calls.
type ImageSettings struct {
	// MaxImagesPerCall overrides the maximum number of images per call.
	MaxImagesPerCall *int `json:"maxImagesPerCall,omitempty"`
}

// MaxImages returns the effective maximum number of images per call.
func (s ImageSettings) MaxImages() int {
	if s.MaxImagesPerCall == nil {
		return DefaultMaxImagesPerCall
	}
	return *s.MaxImagesPerCall
}

// Validate rejects a non-positive override.
func (s ImageSettings) Validate() error {
	if s.MaxImagesPerCall != nil && *s.MaxImagesPerCall < 1 {
		return fmt.Errorf("replicate: maxImagesPerCall must be positive, got %d", *s.MaxImagesPerCall)
	}
	return nil
}
