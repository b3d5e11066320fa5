package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/itcaat/carlog/internal/models"
)

// StructuredBlockSelector matches the embedded JSON-LD script blocks
const StructuredBlockSelector = `script[type="application/ld+json"]`

// PageResult is the outcome of extracting one search page
type PageResult struct {
	Key      models.PartitionKey
	Listings []models.MergedListing
	Issues   []*ExtractionError
}

// Extract turns the raw markup of one search page into merged listings.
// It fails only when the page carries no usable structured block; every
// per-element problem is reported in PageResult.Issues instead.
func Extract(content []byte, key models.PartitionKey) (*PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	block, err := findStructuredBlock(doc)
	if err != nil {
		return nil, err
	}

	var (
		structured       []models.StructuredCandidate
		html             []models.HTMLCandidate
		structuredIssues []*ExtractionError
		htmlIssues       []*ExtractionError
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		structured, structuredIssues, err = ParseStructured(block)
		return err
	})
	g.Go(func() error {
		html, htmlIssues = ParseHTMLListings(doc)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	issues := make([]*ExtractionError, 0, len(structuredIssues)+len(htmlIssues))
	issues = append(issues, structuredIssues...)
	issues = append(issues, htmlIssues...)

	return &PageResult{
		Key:      key,
		Listings: Merge(structured, html, key),
		Issues:   issues,
	}, nil
}

// findStructuredBlock returns the first JSON-LD block carrying an item list,
// falling back to the first JSON-LD block of the page.
func findStructuredBlock(doc *goquery.Document) ([]byte, error) {
	blocks := doc.Find(StructuredBlockSelector)
	if blocks.Length() == 0 {
		return nil, ErrMissingStructuredBlock
	}

	var chosen []byte
	blocks.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := []byte(strings.TrimSpace(s.Text()))
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(text, &probe); err == nil {
			if _, ok := probe["itemListElement"]; ok {
				chosen = text
				return false
			}
		}
		return true
	})

	if chosen == nil {
		chosen = []byte(strings.TrimSpace(blocks.First().Text()))
	}
	return chosen, nil
}
