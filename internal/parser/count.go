package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseListingCount reads the total number of listings of a search from the
// JSON-LD description, which starts with the count ("1.234 carros ...").
func ParseListingCount(content []byte) (int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return 0, fmt.Errorf("error parsing HTML: %w", err)
	}

	block, err := findStructuredBlock(doc)
	if err != nil {
		return 0, err
	}

	var list ldItemList
	if err := json.Unmarshal(block, &list); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedStructuredBlock, err)
	}

	fields := strings.Fields(list.Description)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty description", ErrMalformedStructuredBlock)
	}

	// Thousands separators are dropped before parsing
	digits := strings.NewReplacer(".", "", ",", "").Replace(fields[0])
	count, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("listing count %q: %w", fields[0], err)
	}
	if count < 0 {
		return 0, fmt.Errorf("listing count %d is negative", count)
	}
	return count, nil
}

// LastPage returns the last page to fetch for total listings shown perPage at a time.
// An exact multiple still yields one extra page, which the crawl tolerates as empty.
func LastPage(total, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	return total/perPage + 1
}
