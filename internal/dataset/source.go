package dataset

import (
	"context"

	"github.com/pkg/errors"

	"advforge/internal/model"
)

// Source is an ordered, restartable sequence of batches. Trainers walk it
// front to back once per epoch.
type Source interface {
	Len() int
	Batch(ctx context.Context, i int) (model.Batch, error)
}

// SliceSource serves pre-materialized batches from memory.
type SliceSource struct {
	batches []model.Batch
}

// NewSliceSource wraps batches as a Source.
func NewSliceSource(batches []model.Batch) *SliceSource {
	return &SliceSource{batches: batches}
}

// Len returns the number of batches.
func (s *SliceSource) Len() int { return len(s.batches) }

// Batch returns batch i.
func (s *SliceSource) Batch(ctx context.Context, i int) (model.Batch, error) {
	if err := ctx.Err(); err != nil {
		return model.Batch{}, err
	}
	if i < 0 || i >= len(s.batches) {
		return model.Batch{}, errors.Errorf("batch index %d out of range for %d batches", i, len(s.batches))
	}
	return s.batches[i], nil
}
