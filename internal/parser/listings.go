package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/itcaat/carlog/internal/models"
)

const (
	// ListingSelector matches one listing card on a search page
	ListingSelector = "li.anuncio"

	// Card ids look like "ac12345678"
	idPrefixLen = 2
	// Zero-km badges end their first token with the unit, e.g. "0km"
	kmUnitLen = 2
)

var (
	// Regex to split badge texts into word runs, apostrophes included
	tokenRegex = regexp.MustCompile(`[\p{L}\p{N}_']+`)

	errNoTokens = errors.New("no alphanumeric tokens")
	errNoBadge  = errors.New("no mileage badge")
)

// ParseHTMLListings parses every listing card of a document
func ParseHTMLListings(doc *goquery.Document) ([]models.HTMLCandidate, []*ExtractionError) {
	return parseCards(doc.Selection)
}

func parseCards(root *goquery.Selection) ([]models.HTMLCandidate, []*ExtractionError) {
	cards := root.Find(ListingSelector)
	candidates := make([]models.HTMLCandidate, 0, cards.Length())
	var issues []*ExtractionError

	cards.Each(func(i int, card *goquery.Selection) {
		candidate, cardIssues := ParseHTMLListing(card)
		for _, issue := range cardIssues {
			issue.Index = i
		}
		candidates = append(candidates, candidate)
		issues = append(issues, cardIssues...)
	})

	return candidates, issues
}

// ParseHTMLListing extracts listing information from a single card.
// Every field is attempted independently; a card with nothing but its id is valid.
// The returned issues carry Index 0, callers iterating cards set the real index.
func ParseHTMLListing(card *goquery.Selection) (models.HTMLCandidate, []*ExtractionError) {
	var issues []*ExtractionError
	candidate := models.HTMLCandidate{ID: models.SentinelID}

	// Extract ID
	id, err := parseCardID(card)
	if err != nil {
		issues = append(issues, identifierIssue(SourceHTML, 0, "id", err))
	} else {
		candidate.ID = id
	}

	// Extract displayed price
	if price, ok := childText(card, "h3.preco_anuncio"); ok {
		candidate.DisplayedPrice = &price
	}

	// Extract primary spec
	spec, found, err := parsePrimarySpec(card)
	if err != nil {
		issues = append(issues, elementIssue(SourceHTML, 0, "primeiro", err))
	} else if found {
		candidate.PrimarySpec = spec
	}

	// Extract mileage
	km, found, err := parseMileage(card)
	if err != nil {
		issues = append(issues, elementIssue(SourceHTML, 0, "km", err))
	} else if found {
		candidate.Km = &km
	}

	// Extract description
	if description, ok := childText(card, "p.texto_padrao"); ok {
		candidate.Description = &description
	}

	return candidate, issues
}

func parseCardID(card *goquery.Selection) (int64, error) {
	raw, exists := card.Attr("id")
	if !exists {
		return 0, errors.New("id attribute missing")
	}
	if len(raw) < idPrefixLen {
		return 0, fmt.Errorf("id attribute %q shorter than its prefix", raw)
	}

	id, err := strconv.ParseInt(raw[idPrefixLen:], 10, 64)
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, fmt.Errorf("negative identifier %d", id)
	}
	return id, nil
}

// parsePrimarySpec reads the first highlight of a card (li.primeiro), keeping
// its label and the first token of its value.
func parsePrimarySpec(card *goquery.Selection) (*models.PrimarySpec, bool, error) {
	item := card.Find("li.primeiro").First()
	if item.Length() == 0 {
		return nil, false, nil
	}

	label, ok := childText(item, "span")
	if !ok || label == "" {
		return nil, false, errors.New("label not found")
	}
	value, ok := childText(item, "p")
	if !ok {
		return nil, false, errors.New("value not found")
	}

	token := tokenRegex.FindString(value)
	if token == "" {
		return nil, false, errNoTokens
	}

	return &models.PrimarySpec{Label: label, Value: token}, true, nil
}

// parseMileage normalises the two badge shapes a card may carry. A zero-km badge
// wins; the used badge is only read when the zero-km one is missing or unusable.
func parseMileage(card *goquery.Selection) (string, bool, error) {
	zeroErr := errNoBadge
	if zero := card.Find("li.zerokm").First(); zero.Length() > 0 {
		km, err := zeroKm(zero.Text())
		if err == nil {
			return km, true, nil
		}
		zeroErr = err
	}

	used := card.Find("li.usado").First()
	if used.Length() == 0 {
		if zeroErr != errNoBadge {
			return "", false, fmt.Errorf("zero km badge: %w", zeroErr)
		}
		return "", false, nil
	}

	km, err := usedKm(used)
	if err != nil {
		return "", false, fmt.Errorf("used badge: %w", err)
	}
	return km, true, nil
}

func zeroKm(text string) (string, error) {
	token := tokenRegex.FindString(text)
	if token == "" {
		return "", errNoTokens
	}
	n := utf8.RuneCountInString(token)
	if n <= kmUnitLen {
		return "", fmt.Errorf("token %q too short to strip unit", token)
	}
	return string([]rune(token)[:n-kmUnitLen]), nil
}

func usedKm(badge *goquery.Selection) (string, error) {
	if badge.Find("span").Length() == 0 {
		return "", errors.New("label not found")
	}
	value, ok := childText(badge, "p")
	if !ok {
		return "", errors.New("value not found")
	}

	tokens := tokenRegex.FindAllString(value, -1)
	if len(tokens) == 0 {
		return "", errNoTokens
	}
	return strings.Join(tokens, ""), nil
}

// childText returns the trimmed text of the first match of selector under s
func childText(s *goquery.Selection, selector string) (string, bool) {
	node := s.Find(selector).First()
	if node.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(node.Text()), true
}
