package jobstate

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/3leaps/gosperf/pkg/job"
)

// DefaultConcurrency bounds parallel directory reads in Scan.
const DefaultConcurrency = 8

// Scan reads the markers of every job, resolving directories with dirFor.
//
// Reads run with at most concurrency goroutines (DefaultConcurrency when
// <= 0). Scan only fails when ctx is cancelled.
func Scan(ctx context.Context, jobs job.Set, dirFor func(job.Job) string, concurrency int) (map[job.Job]Markers, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	out := make(map[job.Job]Markers, len(jobs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, j := range jobs.Sorted() {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m := Read(dirFor(j))
			mu.Lock()
			out[j] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
