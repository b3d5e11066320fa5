// Package report summarises a persisted listing dataset across partitions.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/itcaat/carlog/internal/models"
)

// DateCount is the number of listings collected on one reference date
type DateCount struct {
	ReferenceDate time.Time
	Pages         int
	Listings      int
}

// BrandStats aggregates prices for one brand
type BrandStats struct {
	Brand     string
	Listings  int
	MeanPrice float64
	MinPrice  float64
	MaxPrice  float64
}

// Summary is the cross-partition view of a dataset
type Summary struct {
	TotalListings int
	ByDate        []DateCount
	ByBrand       []BrandStats
}

// Summarize builds a Summary. Dates are ascending, brands by listing count
// descending then name.
func Summarize(listings []models.MergedListing) *Summary {
	s := &Summary{TotalListings: len(listings)}
	if len(listings) == 0 {
		return s
	}

	type datePages struct {
		count int
		pages map[int]struct{}
	}
	dates := make(map[time.Time]*datePages)
	brands := make(map[string]*BrandStats)
	sums := make(map[string]float64)

	for _, l := range listings {
		d, ok := dates[l.ReferenceDate]
		if !ok {
			d = &datePages{pages: make(map[int]struct{})}
			dates[l.ReferenceDate] = d
		}
		d.count++
		d.pages[l.Page] = struct{}{}

		b, ok := brands[l.Brand]
		if !ok {
			b = &BrandStats{Brand: l.Brand, MinPrice: l.Price, MaxPrice: l.Price}
			brands[l.Brand] = b
		}
		b.Listings++
		b.MinPrice = math.Min(b.MinPrice, l.Price)
		b.MaxPrice = math.Max(b.MaxPrice, l.Price)
		sums[l.Brand] += l.Price
	}

	for date, d := range dates {
		s.ByDate = append(s.ByDate, DateCount{ReferenceDate: date, Pages: len(d.pages), Listings: d.count})
	}
	sort.Slice(s.ByDate, func(i, j int) bool {
		return s.ByDate[i].ReferenceDate.Before(s.ByDate[j].ReferenceDate)
	})

	for name, b := range brands {
		b.MeanPrice = round2(sums[name] / float64(b.Listings))
		s.ByBrand = append(s.ByBrand, *b)
	}
	sort.Slice(s.ByBrand, func(i, j int) bool {
		if s.ByBrand[i].Listings != s.ByBrand[j].Listings {
			return s.ByBrand[i].Listings > s.ByBrand[j].Listings
		}
		return s.ByBrand[i].Brand < s.ByBrand[j].Brand
	})

	return s
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// Print writes a human readable Summary to w
func Print(w io.Writer, s *Summary) error {
	thin := strings.Repeat("─", 54)

	fmt.Fprintln(w, titleStyle.Render("Car listings summary"))
	fmt.Fprintf(w, "Total listings: %d\n\n", s.TotalListings)
	if s.TotalListings == 0 {
		fmt.Fprintln(w, "No listings stored yet")
		return nil
	}

	fmt.Fprintln(w, sectionStyle.Render("By reference date"))
	fmt.Fprintln(w, thin)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tPAGES\tLISTINGS")
	for _, d := range s.ByDate {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", d.ReferenceDate.Format(models.DateLayout), d.Pages, d.Listings)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, sectionStyle.Render("By brand"))
	fmt.Fprintln(w, thin)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BRAND\tLISTINGS\tMEAN PRICE\tMIN\tMAX")
	for _, b := range s.ByBrand {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\n", b.Brand, b.Listings, b.MeanPrice, b.MinPrice, b.MaxPrice)
	}
	return tw.Flush()
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
