package dataset

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"advforge/internal/model"
)

// LoadOptions configures shard loading.
type LoadOptions struct {
	BatchSize  int
	Workers    int
	Grid       int
	PendingCap int
}

type decoded struct {
	features []float64
	label    int
}

// Load discovers shards beneath root, decodes them on a worker pool, and
// materializes tensor batches in shard order. Samples that fail to decode are
// skipped.
func Load(ctx context.Context, root string, opts LoadOptions) (*SliceSource, error) {
	if opts.BatchSize <= 0 {
		return nil, errors.New("load: batch size must be > 0")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Grid <= 0 {
		opts.Grid = DefaultGrid
	}

	shards, err := DiscoverShards(root)
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, errors.Errorf("no shards discovered under %s", root)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	perShard := make([][]decoded, len(shards))
	errCh := make(chan error, opts.Workers)

	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				samples, err := ReadShard(ctx, shards[idx], opts.PendingCap)
				if err != nil {
					errCh <- errors.Wrapf(err, "shard %s", shards[idx])
					cancel()
					return
				}
				out := make([]decoded, 0, len(samples))
				for _, s := range samples {
					features, err := ExtractFeatures(s.Image, opts.Grid)
					if err != nil {
						continue
					}
					out = append(out, decoded{features: features, label: s.Label})
				}
				perShard[idx] = out
			}
		}()
	}

	go func() {
		defer close(jobs)
		for idx := range shards {
			select {
			case <-ctx.Done():
				return
			case jobs <- idx:
			}
		}
	}()

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dim := opts.Grid * opts.Grid
	var flat []decoded
	for _, samples := range perShard {
		flat = append(flat, samples...)
	}
	if len(flat) == 0 {
		return nil, errors.Errorf("no decodable samples under %s", root)
	}

	var batches []model.Batch
	for start := 0; start < len(flat); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(flat) {
			end = len(flat)
		}
		n := end - start
		backing := make([]float64, 0, n*dim)
		targets := make([]int, 0, n)
		for _, d := range flat[start:end] {
			backing = append(backing, d.features...)
			targets = append(targets, d.label)
		}
		batches = append(batches, model.Batch{
			Inputs:  tensor.New(tensor.WithShape(n, dim), tensor.WithBacking(backing)),
			Targets: targets,
		})
	}
	return NewSliceSource(batches), nil
}
