// Package storage persists merged listings, one partition (reference date and
// page) at a time. Every write replaces whatever the partition held before.
package storage

import (
	"context"

	"github.com/itcaat/carlog/internal/models"
)

// Sink is the interface any storage backend must satisfy.
type Sink interface {
	Write(ctx context.Context, listings []models.MergedListing, key models.PartitionKey) error
	Close() error
}
