package fetch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DownloadAll runs Download for every request with at most jobs transfers
// in flight, returning the destinations in request order. Requests must
// target distinct destinations. The first failure cancels the remaining
// transfers.
func (f *Fetcher) DownloadAll(ctx context.Context, reqs []Request, jobs int) ([]string, error) {
	seen := make(map[string]int, len(reqs))
	for i, r := range reqs {
		dest := r.Destination()
		if j, dup := seen[dest]; dup {
			return nil, fmt.Errorf("requests %d and %d both target %s", j, i, dest)
		}
		seen[dest] = i
	}
	if jobs < 1 {
		jobs = 1
	}

	paths := make([]string, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, r := range reqs {
		g.Go(func() error {
			p, err := f.Download(gctx, r)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
