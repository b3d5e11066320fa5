package parser

import "github.com/itcaat/carlog/internal/models"

// Merge inner-joins structured and HTML candidates on listing id and stamps every
// row with the partition key. Candidates without a counterpart are dropped, as are
// structured candidates with no id; the HTML sentinel id never matches.
//
// When an id repeats within one side the last occurrence wins. Rows follow the
// order in which ids first appear among the HTML candidates.
func Merge(structured []models.StructuredCandidate, html []models.HTMLCandidate, key models.PartitionKey) []models.MergedListing {
	byID := make(map[int64]models.StructuredCandidate, len(structured))
	for _, s := range structured {
		if s.ID == nil {
			continue
		}
		byID[*s.ID] = s
	}

	order := make([]int64, 0, len(html))
	cards := make(map[int64]models.HTMLCandidate, len(html))
	for _, h := range html {
		if _, ok := byID[h.ID]; !ok {
			continue
		}
		if _, seen := cards[h.ID]; !seen {
			order = append(order, h.ID)
		}
		cards[h.ID] = h
	}

	merged := make([]models.MergedListing, 0, len(order))
	for _, id := range order {
		s, h := byID[id], cards[id]
		merged = append(merged, models.MergedListing{
			Position:       s.Position,
			ID:             id,
			Car:            s.Car,
			Brand:          s.Brand,
			BrandFull:      s.BrandFull,
			CarDescription: s.CarDescription,
			Price:          s.Price,
			Seller:         s.Seller,
			Image:          s.Image,
			URL:            s.URL,
			DisplayedPrice: h.DisplayedPrice,
			PrimarySpec:    h.PrimarySpec,
			Km:             h.Km,
			Description:    h.Description,
			ReferenceDate:  key.ReferenceDate,
			Page:           key.Page,
		})
	}

	return merged
}
