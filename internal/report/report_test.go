package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itcaat/carlog/internal/models"
)

var (
	day1 = time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
)

func sampleListings() []models.MergedListing {
	return []models.MergedListing{
		{ID: 1, Brand: "honda", Price: 98900, ReferenceDate: day2, Page: 1},
		{ID: 2, Brand: "fiat", Price: 79990, ReferenceDate: day2, Page: 1},
		{ID: 3, Brand: "honda", Price: 101100, ReferenceDate: day2, Page: 2},
		{ID: 4, Brand: "vw", Price: 42500, ReferenceDate: day1, Page: 1},
		{ID: 5, Brand: "fiat", Price: 60000.5, ReferenceDate: day1, Page: 3},
	}
}

func TestSummarizeByDate(t *testing.T) {
	s := Summarize(sampleListings())

	assert.Equal(t, 5, s.TotalListings)
	assert.Equal(t, []DateCount{
		{ReferenceDate: day1, Pages: 2, Listings: 2},
		{ReferenceDate: day2, Pages: 2, Listings: 3},
	}, s.ByDate)
}

func TestSummarizeByBrand(t *testing.T) {
	s := Summarize(sampleListings())

	require.Len(t, s.ByBrand, 3)
	assert.Equal(t, BrandStats{Brand: "fiat", Listings: 2, MeanPrice: 69995.25, MinPrice: 60000.5, MaxPrice: 79990}, s.ByBrand[0])
	assert.Equal(t, BrandStats{Brand: "honda", Listings: 2, MeanPrice: 100000, MinPrice: 98900, MaxPrice: 101100}, s.ByBrand[1])
	assert.Equal(t, "vw", s.ByBrand[2].Brand)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)

	assert.Zero(t, s.TotalListings)
	assert.Empty(t, s.ByDate)
	assert.Empty(t, s.ByBrand)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, Summarize(sampleListings())))

	out := buf.String()
	assert.Contains(t, out, "Total listings: 5")
	assert.Contains(t, out, "2024-03-14")
	assert.Contains(t, out, "69995.25")
	assert.Contains(t, out, "honda")
}

func TestPrintEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, Summarize(nil)))
	assert.Contains(t, buf.String(), "No listings stored yet")
}
