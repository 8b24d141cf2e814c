// Package batch runs bounded-concurrency scans over a list of URLs,
// deduplicating against the result cache and isolating per-target
// failures so one broken site never aborts its siblings.
package batch

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"compliance-scanner/cache"
	"compliance-scanner/compliance"
	"compliance-scanner/validate"
)

// Scanner is the single-target scan pipeline the orchestrator fans out
// over.
type Scanner interface {
	Scan(ctx context.Context, rawURL string) (*compliance.ScanResult, error)
}

// ProgressFunc receives an update after every resolved target, so a
// caller can render live status without waiting for the whole batch.
type ProgressFunc func(compliance.Progress)

type Orchestrator struct {
	scanner Scanner
	cache   *cache.ResultCache
	workers int
}

func New(scanner Scanner, resultCache *cache.ResultCache, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 5
	}
	return &Orchestrator{scanner: scanner, cache: resultCache, workers: workers}
}

// Run scans every URL and returns the final report. Items preserve
// input order. Cache hits and validation rejects resolve in a
// sequential pass before fan-out; misses queue on a fixed-size worker
// pool, so batches larger than the pool are queued, never rejected.
// A URL appearing more than once in the batch is scanned once and its
// outcome mirrored into every duplicate item.
// Cancelling the context stops dispatch; in-flight fetches run to their
// own timeout, and undispatched targets stay pending.
func (o *Orchestrator) Run(ctx context.Context, urls []string, onProgress ProgressFunc) *compliance.BatchJob {
	job := &compliance.BatchJob{
		ID:      uuid.NewString(),
		Items:   make([]compliance.BatchItem, len(urls)),
		Pending: len(urls),
	}
	total := len(urls)

	var mu sync.Mutex
	report := func(i int, result *compliance.ScanResult, err error) {
		mu.Lock()
		job.Items[i].Result = result
		if err != nil {
			job.Items[i].Err = err.Error()
			job.Failed++
		} else {
			job.Completed++
		}
		job.Pending--
		progress := compliance.Progress{
			URL:       job.Items[i].URL,
			Completed: job.Completed,
			Failed:    job.Failed,
			Total:     total,
		}
		mu.Unlock()
		if onProgress != nil {
			onProgress(progress)
		}
	}

	// Dedup-first: resolve cache hits and invalid input before any
	// network work, and collapse repeated targets onto the first
	// occurrence so a URL is never in flight twice.
	var misses []int
	firstMiss := make(map[string]int)
	duplicates := make(map[int][]int)
	for i, rawURL := range urls {
		job.Items[i].URL = rawURL

		target, err := validate.Target(rawURL)
		if err != nil {
			report(i, nil, err)
			continue
		}
		if result, ok := o.cache.Get(target.URL); ok {
			report(i, result, nil)
			continue
		}
		if first, seen := firstMiss[target.URL]; seen {
			duplicates[first] = append(duplicates[first], i)
			continue
		}
		firstMiss[target.URL] = i
		misses = append(misses, i)
	}

	if len(misses) == 0 {
		return job
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result, err := o.scanner.Scan(ctx, job.Items[i].URL)
				report(i, result, err)
				for _, dup := range duplicates[i] {
					report(dup, result, err)
				}
			}
		}()
	}

dispatch:
	for _, i := range misses {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	return job
}
