package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingStructuredBlock is returned when a page has no JSON-LD script block
	ErrMissingStructuredBlock = errors.New("structured data block not found")
	// ErrMalformedStructuredBlock is returned when the JSON-LD block cannot be decoded
	ErrMalformedStructuredBlock = errors.New("structured data block is malformed")
)

// IssueKind classifies a non-fatal extraction problem
type IssueKind int

const (
	// ElementExtractionFailure means a field of one element could not be read
	ElementExtractionFailure IssueKind = iota
	// IdentifierParseFailure means the listing id could not be parsed
	IdentifierParseFailure
)

func (k IssueKind) String() string {
	switch k {
	case ElementExtractionFailure:
		return "element"
	case IdentifierParseFailure:
		return "identifier"
	default:
		return fmt.Sprintf("IssueKind(%d)", int(k))
	}
}

// Source names the representation an issue came from
type Source string

const (
	SourceStructured Source = "structured"
	SourceHTML       Source = "html"
)

// ExtractionError describes one non-fatal problem found while extracting a page.
// Index is the element position within its source, starting at 0.
type ExtractionError struct {
	Kind   IssueKind
	Source Source
	Index  int
	Field  string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s %s[%d].%s: %v", e.Kind, e.Source, e.Index, e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func elementIssue(src Source, idx int, field string, err error) *ExtractionError {
	return &ExtractionError{Kind: ElementExtractionFailure, Source: src, Index: idx, Field: field, Err: err}
}

func identifierIssue(src Source, idx int, field string, err error) *ExtractionError {
	return &ExtractionError{Kind: IdentifierParseFailure, Source: src, Index: idx, Field: field, Err: err}
}
