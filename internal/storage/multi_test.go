package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itcaat/carlog/internal/models"
)

type recordingSink struct {
	keys     []models.PartitionKey
	writeErr error
	closeErr error
	closed   bool
}

func (r *recordingSink) Write(_ context.Context, _ []models.MergedListing, key models.PartitionKey) error {
	if r.writeErr != nil {
		return r.writeErr
	}
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.closeErr
}

func TestMultiSinkWritesAll(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	key := models.NewPartitionKey(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 2)

	err := MultiSink{a, b}.Write(context.Background(), nil, key)

	assert.NoError(t, err)
	assert.Equal(t, []models.PartitionKey{key}, a.keys)
	assert.Equal(t, []models.PartitionKey{key}, b.keys)
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recordingSink{writeErr: boom}, &recordingSink{}

	err := MultiSink{a, b}.Write(context.Background(), nil, models.PartitionKey{Page: 1})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, b.keys)
}

func TestMultiSinkClosesAll(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recordingSink{closeErr: boom}, &recordingSink{}

	err := MultiSink{a, b}.Close()

	assert.ErrorIs(t, err, boom)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
