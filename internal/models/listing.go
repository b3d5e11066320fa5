package models

import "time"

// SentinelID marks an HTML listing whose id attribute could not be parsed.
// It never matches a structured listing, whose ids are non-negative.
const SentinelID int64 = -1

// StructuredCandidate represents one entry of a page's JSON-LD item list
type StructuredCandidate struct {
	Position       int     `json:"position"`
	ID             *int64  `json:"id"`
	Car            string  `json:"car"`
	Brand          string  `json:"brand"`
	BrandFull      string  `json:"brand_full"`
	CarDescription string  `json:"car_description"`
	Price          float64 `json:"price"`
	Seller         string  `json:"seller"`
	Image          string  `json:"image"`
	URL            string  `json:"url"`
}

// PrimarySpec is the labeled highlight shown first on a listing card, e.g. the model year
type PrimarySpec struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// HTMLCandidate represents one listing card (li.anuncio) of a search page.
// Optional fields are nil when the card does not carry them.
type HTMLCandidate struct {
	ID             int64        `json:"id"`
	DisplayedPrice *string      `json:"preco,omitempty"`
	PrimarySpec    *PrimarySpec `json:"primary_spec,omitempty"`
	Km             *string      `json:"km,omitempty"`
	Description    *string      `json:"description,omitempty"`
}

// MergedListing is one row of the final dataset
type MergedListing struct {
	Position       int          `json:"position"`
	ID             int64        `json:"id"`
	Car            string       `json:"car"`
	Brand          string       `json:"brand"`
	BrandFull      string       `json:"brand_full"`
	CarDescription string       `json:"car_description"`
	Price          float64      `json:"price"`
	Seller         string       `json:"seller"`
	Image          string       `json:"image"`
	URL            string       `json:"url"`
	DisplayedPrice *string      `json:"preco,omitempty"`
	PrimarySpec    *PrimarySpec `json:"primary_spec,omitempty"`
	Km             *string      `json:"km,omitempty"`
	Description    *string      `json:"description,omitempty"`
	ReferenceDate  time.Time    `json:"reference_date"`
	Page           int          `json:"page"`
}
