package processor

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Outcome is the result of one batch job.
type Outcome struct {
	Err     error
	Result  *Result
	Request Request
	Index   int
}

type job struct {
	Request Request
	Index   int
}

// ProcessBatch processes requests with a fixed number of workers.
// Outcomes are returned in request order; onDone, when set, is called from
// the collecting goroutine as each job finishes.
func ProcessBatch(ctx context.Context, f Fetcher, reqs []Request, concurrency int, onDone func(Outcome)) []Outcome {
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan job, len(reqs))
	results := make(chan Outcome, len(reqs))

	go func() {
		for i, r := range reqs {
			jobs <- job{Request: r, Index: i}
		}
		close(jobs)
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := Process(ctx, f, j.Request)
				if err != nil {
					log.Error().
						Err(err).
						Str("source", j.Request.Source).
						Msg("Failed to process track")
				}
				results <- Outcome{Request: j.Request, Index: j.Index, Result: res, Err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, len(reqs))
	for o := range results {
		outcomes[o.Index] = o
		if onDone != nil {
			onDone(o)
		}
	}

	return outcomes
}
