package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/itcaat/carlog/internal/models"
)

const (
	dateDirPrefix = "reference_date="
	pageDirPrefix = "page="
	fileExt       = ".parquet"
)

// parquetRow is the on-disk schema. Partition columns are encoded in the
// directory names and never stored in the files.
type parquetRow struct {
	Position         int64   `parquet:"position"`
	ID               int64   `parquet:"id"`
	Car              string  `parquet:"car"`
	Brand            string  `parquet:"brand"`
	BrandFull        string  `parquet:"brand_full"`
	CarDescription   string  `parquet:"car_description"`
	Price            float64 `parquet:"price"`
	Seller           string  `parquet:"seller"`
	Image            string  `parquet:"image"`
	URL              string  `parquet:"url"`
	Preco            *string `parquet:"preco"`
	PrimarySpecLabel *string `parquet:"primary_spec_label"`
	PrimarySpecValue *string `parquet:"primary_spec_value"`
	Km               *string `parquet:"km"`
	Description      *string `parquet:"description"`
}

func toRow(l models.MergedListing) parquetRow {
	row := parquetRow{
		Position:       int64(l.Position),
		ID:             l.ID,
		Car:            l.Car,
		Brand:          l.Brand,
		BrandFull:      l.BrandFull,
		CarDescription: l.CarDescription,
		Price:          l.Price,
		Seller:         l.Seller,
		Image:          l.Image,
		URL:            l.URL,
		Preco:          l.DisplayedPrice,
		Km:             l.Km,
		Description:    l.Description,
	}
	if l.PrimarySpec != nil {
		label, value := l.PrimarySpec.Label, l.PrimarySpec.Value
		row.PrimarySpecLabel = &label
		row.PrimarySpecValue = &value
	}
	return row
}

func fromRow(r parquetRow, key models.PartitionKey) models.MergedListing {
	l := models.MergedListing{
		Position:       int(r.Position),
		ID:             r.ID,
		Car:            r.Car,
		Brand:          r.Brand,
		BrandFull:      r.BrandFull,
		CarDescription: r.CarDescription,
		Price:          r.Price,
		Seller:         r.Seller,
		Image:          r.Image,
		URL:            r.URL,
		DisplayedPrice: r.Preco,
		Km:             r.Km,
		Description:    r.Description,
		ReferenceDate:  key.ReferenceDate,
		Page:           key.Page,
	}
	if r.PrimarySpecLabel != nil && r.PrimarySpecValue != nil {
		l.PrimarySpec = &models.PrimarySpec{Label: *r.PrimarySpecLabel, Value: *r.PrimarySpecValue}
	}
	return l
}

// ParquetSink writes a hive-partitioned parquet dataset under Root
type ParquetSink struct {
	Root string
}

// NewParquetSink creates the dataset root if needed
func NewParquetSink(root string) (*ParquetSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("parquet: create root: %w", err)
	}
	return &ParquetSink{Root: root}, nil
}

// Write replaces the partition of key with listings. An empty batch leaves the
// partition directory empty.
func (s *ParquetSink) Write(ctx context.Context, listings []models.MergedListing, key models.PartitionKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(s.Root, filepath.FromSlash(key.Path()))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("parquet: clear partition %s: %w", key, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("parquet: create partition %s: %w", key, err)
	}
	if len(listings) == 0 {
		return nil
	}

	rows := make([]parquetRow, len(listings))
	for i, l := range listings {
		rows[i] = toRow(l)
	}

	name := filepath.Join(dir, uuid.NewString()+"-0"+fileExt)
	if err := parquet.WriteFile(name, rows); err != nil {
		return fmt.Errorf("parquet: write %s: %w", name, err)
	}
	return nil
}

func (s *ParquetSink) Close() error {
	return nil
}

// ReadDataset loads every partition under root, restoring reference_date and
// page from the directory names. Rows are ordered by date, page and position.
// A missing root yields an empty dataset.
func ReadDataset(root string) ([]models.MergedListing, error) {
	var listings []models.MergedListing

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != fileExt {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key, err := partitionFromPath(filepath.ToSlash(filepath.Dir(rel)))
		if err != nil {
			return err
		}

		rows, err := parquet.ReadFile[parquetRow](path)
		if err != nil {
			return fmt.Errorf("parquet: read %s: %w", path, err)
		}
		for _, r := range rows {
			listings = append(listings, fromRow(r, key))
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i], listings[j]
		if !a.ReferenceDate.Equal(b.ReferenceDate) {
			return a.ReferenceDate.Before(b.ReferenceDate)
		}
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Position < b.Position
	})
	return listings, nil
}

func partitionFromPath(dir string) (models.PartitionKey, error) {
	var (
		key              models.PartitionKey
		hasDate, hasPage bool
	)

	for _, part := range strings.Split(dir, "/") {
		switch {
		case strings.HasPrefix(part, dateDirPrefix):
			t, err := time.Parse(models.DateLayout, strings.TrimPrefix(part, dateDirPrefix))
			if err != nil {
				return key, fmt.Errorf("parquet: partition %q: %w", dir, err)
			}
			key.ReferenceDate = t
			hasDate = true
		case strings.HasPrefix(part, pageDirPrefix):
			page, err := strconv.Atoi(strings.TrimPrefix(part, pageDirPrefix))
			if err != nil {
				return key, fmt.Errorf("parquet: partition %q: %w", dir, err)
			}
			key.Page = page
			hasPage = true
		}
	}

	if !hasDate || !hasPage {
		return key, fmt.Errorf("parquet: %q is not a reference_date/page partition", dir)
	}
	return key, nil
}
