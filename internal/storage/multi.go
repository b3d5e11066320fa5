package storage

import (
	"context"
	"errors"

	"github.com/itcaat/carlog/internal/models"
)

// MultiSink writes every partition to all of its sinks in order
type MultiSink []Sink

// Write stops at the first failing sink
func (m MultiSink) Write(ctx context.Context, listings []models.MergedListing, key models.PartitionKey) error {
	for _, s := range m {
		if err := s.Write(ctx, listings, key); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink, joining their errors
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
