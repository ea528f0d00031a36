package models

// ModelID identifies a hosted text-to-image model on the inference API.
type ModelID string

// Known models. Anything else parses to ModelUnlisted.
const (
	ModelFluxSchnell     ModelID = "black-forest-labs/FLUX.1-schnell"
	ModelSDXLBase        ModelID = "stabilityai/stable-diffusion-xl-base-1.0"
	ModelSDXLRefiner     ModelID = "stabilityai/stable-diffusion-xl-refiner-1.0"
	ModelSDXLLightning   ModelID = "ByteDance/SDXL-Lightning"
	ModelAnimateDiffSDXL ModelID = "guoyww/animatediff-motion-adapter-sdxl-beta"
	ModelControlNetUnion ModelID = "xinsir/controlnet-union-sdxl-1.0"
	ModelSD15            ModelID = "runwayml/stable-diffusion-v1-5"
	ModelSD14            ModelID = "CompVis/stable-diffusion-v1-4"
	ModelOpenjourneyV4   ModelID = "prompthero/openjourney-v4"
	ModelSDXLInpainting  ModelID = "diffusers/stable-diffusion-xl-1.0-inpainting-0.1"
	ModelProtogenX34     ModelID = "darkstorm2150/Protogen_x3.4_Official_Release"

	ModelUnlisted ModelID = ""
)

// ModelTier groups models that share a price.
type ModelTier int

const (
	TierUnlisted ModelTier = iota
	TierFast
	TierStandard
)

func (t ModelTier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierStandard:
		return "standard"
	default:
		return "unlisted"
	}
}

// ModelInfo describes a catalog entry as shown to clients.
type ModelInfo struct {
	ID    ModelID `json:"id"`
	Label string  `json:"label"`
	Tier  string  `json:"tier"`
}

var catalog = []struct {
	id    ModelID
	label string
	tier  ModelTier
}{
	{ModelFluxSchnell, "FLUX.1 Schnell", TierFast},
	{ModelSDXLBase, "Stable Diffusion XL", TierStandard},
	{ModelSDXLRefiner, "SDXL Refiner", TierStandard},
	{ModelSDXLLightning, "SDXL Lightning", TierStandard},
	{ModelAnimateDiffSDXL, "AnimateDiff SDXL", TierStandard},
	{ModelControlNetUnion, "ControlNet Union SDXL", TierStandard},
	{ModelSD15, "Stable Diffusion 1.5", TierStandard},
	{ModelSD14, "Stable Diffusion 1.4", TierStandard},
	{ModelOpenjourneyV4, "Openjourney v4", TierStandard},
	{ModelSDXLInpainting, "SDXL Inpainting", TierStandard},
	{ModelProtogenX34, "Protogen x3.4", TierStandard},
}

// ParseModel maps a raw identifier onto the catalog. The second result is
// false, and the ID is ModelUnlisted, when the identifier is not known.
func ParseModel(raw string) (ModelID, bool) {
	for _, m := range catalog {
		if string(m.id) == raw {
			return m.id, true
		}
	}
	return ModelUnlisted, false
}

// Tier returns the pricing tier of m.
func (m ModelID) Tier() ModelTier {
	for _, c := range catalog {
		if c.id == m {
			return c.tier
		}
	}
	return TierUnlisted
}

// Known reports whether m is in the catalog.
func (m ModelID) Known() bool { return m.Tier() != TierUnlisted }

// KnownModels returns every catalog model ID in display order.
func KnownModels() []ModelID {
	out := make([]ModelID, len(catalog))
	for i, c := range catalog {
		out[i] = c.id
	}
	return out
}

// Catalog returns the client-facing model list.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	for i, c := range catalog {
		out[i] = ModelInfo{ID: c.id, Label: c.label, Tier: c.tier.String()}
	}
	return out
}

// StylePreset is a free-form style tag; known values are listed below.
type StylePreset string

const (
	StyleAuto           StylePreset = "auto"
	StyleDynamic        StylePreset = "dynamic"
	StylePhotorealistic StylePreset = "photorealistic"
	StyleArtistic       StylePreset = "artistic"
	StyleAnime          StylePreset = "anime"
	StyleSciFi          StylePreset = "sci-fi"
	StyleFantasy        StylePreset = "fantasy"
	StyleHorror         StylePreset = "horror"
	StyleComic          StylePreset = "comic"
	StyleRetro          StylePreset = "retro"
	StyleMinimalist     StylePreset = "minimalist"
	StyleModern         StylePreset = "modern"
	StyleVintage        StylePreset = "vintage"
	StyleFuturistic     StylePreset = "futuristic"
)

var knownStyles = map[StylePreset]bool{
	StyleAuto: true, StyleDynamic: true, StylePhotorealistic: true, StyleArtistic: true,
	StyleAnime: true, StyleSciFi: true, StyleFantasy: true, StyleHorror: true,
	StyleComic: true, StyleRetro: true, StyleMinimalist: true, StyleModern: true,
	StyleVintage: true, StyleFuturistic: true,
}

// Known reports whether s is one of the predefined presets.
func (s StylePreset) Known() bool { return knownStyles[s] }
