package classify

import (
	"context"
	"sync"
)

// All classifies every request with at most limit concurrent calls and
// returns results in input order. Messages are independent, so the remote
// strategy's per-message latency amortizes across the pool; a limit of one
// (or a single request) runs strictly sequentially with no goroutines.
func All(ctx context.Context, c Classifier, reqs []Request, limit int) []Result {
	out := make([]Result, len(reqs))
	if len(reqs) == 0 {
		return out
	}
	if limit <= 1 || len(reqs) == 1 {
		for i, req := range reqs {
			out[i] = c.Classify(ctx, req)
		}
		return out
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[i] = c.Classify(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return out
}
