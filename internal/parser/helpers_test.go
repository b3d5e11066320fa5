package parser

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/itcaat/carlog/internal/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	content, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return content
}

// cardFromHTML wraps a single li.anuncio in a list so the HTML parser keeps it intact
func cardFromHTML(t *testing.T, card string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<ul>" + card + "</ul>"))
	require.NoError(t, err)
	sel := doc.Find(ListingSelector).First()
	require.Equal(t, 1, sel.Length(), "fixture must contain a listing card")
	return sel
}

func testKey() models.PartitionKey {
	return models.NewPartitionKey(time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC), 7)
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }
