package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itcaat/carlog/internal/models"
)

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS car_listings (
		reference_date     DATE             NOT NULL,
		page               INTEGER          NOT NULL,
		listing_id         BIGINT           NOT NULL,
		position           INTEGER          NOT NULL,
		car                TEXT             NOT NULL,
		brand              TEXT             NOT NULL,
		brand_full         TEXT             NOT NULL,
		car_description    TEXT             NOT NULL DEFAULT '',
		price              DOUBLE PRECISION NOT NULL,
		seller             TEXT             NOT NULL DEFAULT '',
		image              TEXT             NOT NULL DEFAULT '',
		url                TEXT             NOT NULL,
		preco              TEXT,
		primary_spec_label TEXT,
		primary_spec_value TEXT,
		km                 TEXT,
		description        TEXT,
		PRIMARY KEY (reference_date, page, listing_id)
	);

	CREATE INDEX IF NOT EXISTS idx_car_listings_brand ON car_listings(brand);
`

const deletePartitionSQL = `DELETE FROM car_listings WHERE reference_date = $1 AND page = $2`

// Rows are unique per partition after the merge, so the conflict clause only
// fires when two crawls race on the same partition.
const insertListingSQL = `
	INSERT INTO car_listings
	(reference_date, page, listing_id, position, car, brand, brand_full, car_description,
	 price, seller, image, url, preco, primary_spec_label, primary_spec_value, km, description)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	ON CONFLICT (reference_date, page, listing_id) DO UPDATE SET
		position = EXCLUDED.position,
		price = EXCLUDED.price,
		preco = EXCLUDED.preco,
		km = EXCLUDED.km,
		description = EXCLUDED.description`

// PostgresSink mirrors every partition into the car_listings table
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to PostgreSQL and runs the schema migration
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &PostgresSink{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresSink) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createTableSQL)
	return err
}

// Write deletes the partition of key and inserts listings in one transaction
func (s *PostgresSink) Write(ctx context.Context, listings []models.MergedListing, key models.PartitionKey) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, deletePartitionSQL, key.ReferenceDate, key.Page); err != nil {
		return fmt.Errorf("postgres: clear partition %s: %w", key, err)
	}

	if len(listings) > 0 {
		b := &pgx.Batch{}
		for _, l := range listings {
			b.Queue(insertListingSQL, insertArgs(l, key)...)
		}

		br := tx.SendBatch(ctx, b)
		for range listings {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert partition %s: %w", key, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: insert partition %s: %w", key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

func insertArgs(l models.MergedListing, key models.PartitionKey) []any {
	var label, value *string
	if l.PrimarySpec != nil {
		label, value = &l.PrimarySpec.Label, &l.PrimarySpec.Value
	}
	return []any{
		key.ReferenceDate, key.Page, l.ID, l.Position, l.Car, l.Brand, l.BrandFull, l.CarDescription,
		l.Price, l.Seller, l.Image, l.URL, l.DisplayedPrice, label, value, l.Km, l.Description,
	}
}
