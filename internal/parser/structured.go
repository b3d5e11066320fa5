package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/itcaat/carlog/internal/models"
)

const (
	// Listing URLs look like https://www.icarros.com.br/comprar/<city>/<brand>/<car>/<...>/d<id>
	brandSegment = 5
	carSegment   = 6
)

type ldItemList struct {
	Description     string            `json:"description"`
	ItemListElement []json.RawMessage `json:"itemListElement"`
}

// ParseStructured decodes a JSON-LD ItemList block into one candidate per element.
// Elements missing a required key are reported and skipped; an unparsable id only
// leaves the candidate's ID nil. The returned error is set only when the block
// itself cannot be used.
func ParseStructured(block []byte) ([]models.StructuredCandidate, []*ExtractionError, error) {
	var list ldItemList
	if err := json.Unmarshal(block, &list); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedStructuredBlock, err)
	}
	if list.ItemListElement == nil {
		return nil, nil, fmt.Errorf("%w: itemListElement not found", ErrMalformedStructuredBlock)
	}

	candidates := make([]models.StructuredCandidate, 0, len(list.ItemListElement))
	var issues []*ExtractionError

	for i, raw := range list.ItemListElement {
		candidate, issue := parseStructuredElement(i, raw)
		if issue != nil {
			issues = append(issues, issue)
		}
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}
	}

	return candidates, issues, nil
}

// fieldError carries the JSON path of the key that broke an element
type fieldError struct {
	path string
	err  error
}

func (f *fieldError) at(idx int) *ExtractionError {
	return elementIssue(SourceStructured, idx, f.path, f.err)
}

// parseStructuredElement returns a nil candidate when a required key is missing.
// A candidate returned together with an issue has an unparsable id.
func parseStructuredElement(idx int, raw json.RawMessage) (*models.StructuredCandidate, *ExtractionError) {
	c := &models.StructuredCandidate{}

	var element map[string]any
	if err := json.Unmarshal(raw, &element); err != nil {
		return nil, elementIssue(SourceStructured, idx, "$", err)
	}

	position, ferr := digNumber(element, "position")
	if ferr != nil {
		return nil, ferr.at(idx)
	}
	c.Position = int(position)

	if c.URL, ferr = digString(element, "item", "url"); ferr != nil {
		return nil, ferr.at(idx)
	}
	segments := strings.Split(c.URL, "/")
	if len(segments) <= carSegment {
		err := fmt.Errorf("expected at least %d path segments, got %d", carSegment+1, len(segments))
		return nil, elementIssue(SourceStructured, idx, "item.url", err)
	}
	c.Brand = segments[brandSegment]
	c.Car = segments[carSegment]

	if c.BrandFull, ferr = digString(element, "item", "brand", "name"); ferr != nil {
		return nil, ferr.at(idx)
	}
	if c.CarDescription, ferr = digString(element, "item", "name"); ferr != nil {
		return nil, ferr.at(idx)
	}
	if c.Price, ferr = digNumber(element, "item", "offers", "price"); ferr != nil {
		return nil, ferr.at(idx)
	}
	if c.Seller, ferr = digString(element, "item", "offers", "seller", "name"); ferr != nil {
		return nil, ferr.at(idx)
	}
	if c.Image, ferr = digImage(element); ferr != nil {
		return nil, ferr.at(idx)
	}

	id, err := parseURLIdentifier(segments[len(segments)-1])
	if err != nil {
		return c, identifierIssue(SourceStructured, idx, "item.url", err)
	}
	c.ID = &id

	return c, nil
}

// parseURLIdentifier drops the one-letter prefix of the last URL segment ("d123" -> 123)
func parseURLIdentifier(segment string) (int64, error) {
	if segment == "" {
		return 0, errors.New("empty identifier segment")
	}
	_, size := utf8.DecodeRuneInString(segment)
	id, err := strconv.ParseInt(segment[size:], 10, 64)
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, fmt.Errorf("negative identifier %d", id)
	}
	return id, nil
}

func dig(v any, path ...string) (any, *fieldError) {
	cur := v
	for i, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, &fieldError{path: strings.Join(path[:i], "."), err: errors.New("not an object")}
		}
		next, ok := obj[key]
		if !ok || next == nil {
			return nil, &fieldError{path: strings.Join(path[:i+1], "."), err: errors.New("missing key")}
		}
		cur = next
	}
	return cur, nil
}

func digString(v any, path ...string) (string, *fieldError) {
	val, ferr := dig(v, path...)
	if ferr != nil {
		return "", ferr
	}
	s, ok := val.(string)
	if !ok {
		return "", &fieldError{path: strings.Join(path, "."), err: fmt.Errorf("expected string, got %T", val)}
	}
	return s, nil
}

// digNumber accepts JSON numbers and numeric strings, since sites publish offers.price both ways
func digNumber(v any, path ...string) (float64, *fieldError) {
	val, ferr := dig(v, path...)
	if ferr != nil {
		return 0, ferr
	}
	switch n := val.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, &fieldError{path: strings.Join(path, "."), err: err}
		}
		return f, nil
	default:
		return 0, &fieldError{path: strings.Join(path, "."), err: fmt.Errorf("expected number, got %T", val)}
	}
}

func digImage(v any) (string, *fieldError) {
	val, ferr := dig(v, "item", "image")
	if ferr != nil {
		return "", ferr
	}
	switch img := val.(type) {
	case string:
		return img, nil
	case []any:
		for _, entry := range img {
			if s, ok := entry.(string); ok {
				return s, nil
			}
		}
	}
	return "", &fieldError{path: "item.image", err: fmt.Errorf("unsupported image value %T", val)}
}
