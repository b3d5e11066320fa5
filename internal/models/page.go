package models

import (
	"fmt"
	"time"
)

// DateLayout is the format of reference_date partition values
const DateLayout = "2006-01-02"

// PartitionKey identifies where a page's batch is stored
type PartitionKey struct {
	ReferenceDate time.Time `json:"reference_date"`
	Page          int       `json:"page"`
}

// NewPartitionKey truncates t to its calendar day in UTC.
func NewPartitionKey(t time.Time, page int) PartitionKey {
	y, m, d := t.Date()
	return PartitionKey{
		ReferenceDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Page:          page,
	}
}

// Path renders the key as hive-style partition directories
func (k PartitionKey) Path() string {
	return fmt.Sprintf("reference_date=%s/page=%d", k.ReferenceDate.Format(DateLayout), k.Page)
}

func (k PartitionKey) String() string {
	return k.Path()
}

// CrawlStats summarises one crawl run
type CrawlStats struct {
	TotalListings int           `json:"total_listings"`
	LastPage      int           `json:"last_page"`
	PagesWritten  int           `json:"pages_written"`
	PagesSkipped  int           `json:"pages_skipped"`
	Listings      int           `json:"listings"`
	Issues        int           `json:"issues"`
	Duration      time.Duration `json:"duration"`
}
