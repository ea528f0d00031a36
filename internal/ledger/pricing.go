package ledger

import (
	"fmt"

	"github.com/mithix/backend/internal/models"
)

// Per-image prices in credits.
const (
	FastTierCost     = 2
	StandardTierCost = 5
)

// PerImageCost returns the price of one image on model m.
func PerImageCost(m models.ModelID) (int, error) {
	switch tier := m.Tier(); tier {
	case models.TierFast:
		return FastTierCost, nil
	case models.TierStandard:
		return StandardTierCost, nil
	case models.TierUnlisted:
		return 0, fmt.Errorf("%w: %q", ErrUnpricedModel, string(m))
	default:
		return 0, fmt.Errorf("%w: tier %s", ErrUnpricedModel, tier)
	}
}

// Quote returns numImages × PerImageCost(m). A zero numImages counts as one.
func Quote(m models.ModelID, numImages int) (int, error) {
	if numImages == 0 {
		numImages = 1
	}
	if numImages < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuantity, numImages)
	}
	per, err := PerImageCost(m)
	if err != nil {
		return 0, err
	}
	return per * numImages, nil
}

// PriceList is the catalog annotated with per-image prices.
type PriceList []PricedModel

type PricedModel struct {
	models.ModelInfo
	CreditsPerImage int `json:"creditsPerImage"`
}

// Prices returns every known model with its price.
func Prices() PriceList {
	catalog := models.Catalog()
	out := make(PriceList, 0, len(catalog))
	for _, m := range catalog {
		per, err := PerImageCost(m.ID)
		if err != nil {
			continue
		}
		out = append(out, PricedModel{ModelInfo: m, CreditsPerImage: per})
	}
	return out
}
