// Package dispatcher fans a batch of countries out to the worker pool.
package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/queue/memory"
	"github.com/JakeFAU/streamprice-crawler/internal/regions"
	"github.com/JakeFAU/streamprice-crawler/internal/worker"
)

// Dispatcher runs one batch at a time across a fixed pool of workers.
type Dispatcher struct {
	workers []*worker.Worker
	logger  *zap.Logger
	// batches run one after another; concurrent callers wait.
	mu sync.Mutex
}

// New creates a Dispatcher.
func New(workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{workers: workers, logger: logger}
}

// Scrape scrapes countries (every mapped country when empty) and returns one snapshot entry per
// country, keyed by upper-case code, plus the sorted codes that failed.
func (d *Dispatcher) Scrape(ctx context.Context, countries []string) (crawler.Snapshot, []string) {
	return d.ScrapeRun(ctx, "", countries)
}

// ScrapeRun is Scrape with a run ID attached to every queue item and log line.
func (d *Dispatcher) ScrapeRun(ctx context.Context, runID string, countries []string) (crawler.Snapshot, []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	codes := regions.Normalize(countries)
	snap := make(crawler.Snapshot, len(codes))
	if len(codes) == 0 {
		return snap, nil
	}
	if len(d.workers) == 0 {
		for _, cc := range codes {
			snap[strings.ToUpper(cc)] = failedSnapshot(cc, "no workers configured")
		}
		return snap, failedCodes(snap)
	}

	log := d.logger.With(zap.String("run_id", runID))
	log.Info("batch started", zap.Int("countries", len(codes)), zap.Int("workers", len(d.workers)))
	started := time.Now()

	// The queue holds the whole batch, so enqueueing never blocks.
	q := memory.NewQueue(len(codes))
	out := make(chan crawler.CountrySnapshot, len(codes))
	submitted := time.Now().Unix()
	for _, cc := range codes {
		if err := q.Enqueue(ctx, crawler.QueueItem{RunID: runID, Country: cc, Submitted: submitted}); err != nil {
			log.Warn("enqueue failed", zap.String("country", cc), zap.Error(err))
			break
		}
	}
	q.Close()

	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx, q, out)
		}(w)
	}
	wg.Wait()
	close(out)

	for cs := range out {
		snap[cs.CountryCode] = cs
	}
	for _, cc := range codes {
		if _, ok := snap[strings.ToUpper(cc)]; !ok {
			reason := "not scraped"
			if err := ctx.Err(); err != nil {
				reason = fmt.Sprintf("not scraped: %v", err)
			}
			snap[strings.ToUpper(cc)] = failedSnapshot(cc, reason)
		}
	}

	failed := failedCodes(snap)
	log.Info("batch finished",
		zap.Int("countries", len(snap)),
		zap.Int("failed", len(failed)),
		zap.Int("plans", snap.PlanCount()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return snap, failed
}

func failedSnapshot(cc, reason string) crawler.CountrySnapshot {
	return crawler.CountrySnapshot{
		CountryCode: strings.ToUpper(cc),
		CountryName: regions.Name(cc),
		ScrapedAt:   time.Now().UTC(),
		Error:       reason,
	}
}

func failedCodes(snap crawler.Snapshot) []string {
	var failed []string
	for cc, cs := range snap {
		if !cs.Success {
			failed = append(failed, cc)
		}
	}
	sort.Strings(failed)
	return failed
}
