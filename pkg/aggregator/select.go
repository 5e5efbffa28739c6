package aggregator

import (
	"math"

	"offer-hunter/pkg/models"
)

// Cheapest returns the lowest priced offer among ok sources, or nil.
// Ties go to the earlier source in configuration order, then to the earlier
// offer within that source.
func Cheapest(sources []models.SourceResult) *models.Offer {
	var best *models.Offer
	for i := range sources {
		if sources[i].Status != models.StatusOK {
			continue
		}
		for j := range sources[i].Offers {
			o := &sources[i].Offers[j]
			if !validPrice(o.Price) {
				continue
			}
			if best == nil || o.Price < best.Price {
				best = o
			}
		}
	}
	if best == nil {
		return nil
	}
	cheapest := *best
	return &cheapest
}

// validPrice rejects zero, negatives, NaN and infinities. NaN would otherwise
// win every later comparison and break JSON encoding.
func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0)
}
