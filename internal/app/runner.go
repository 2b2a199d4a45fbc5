// Package app holds the run pipeline shared by the CLI, the scheduler and the HTTP API: scrape a
// batch, archive the snapshot, persist plans, publish a completion event and track the run.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/streamprice-crawler/internal/archive"
	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/regions"
)

const tracerName = "github.com/JakeFAU/streamprice-crawler/internal/app"

// ErrNothingScraped fails a run in which no country produced plans. The latest snapshot is left
// untouched in that case.
var ErrNothingScraped = errors.New("app: no country produced plans")

// Scraper runs one batch of countries.
type Scraper interface {
	ScrapeRun(ctx context.Context, runID string, countries []string) (crawler.Snapshot, []string)
}

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Snapshot crawler.Snapshot
	Failed   []string
	Archive  archive.Result
}

// RunnerConfig wires a Runner. Plans and Publisher are optional.
type RunnerConfig struct {
	Scraper   Scraper
	Archive   *archive.Writer
	Plans     crawler.PlanStore
	Publisher crawler.Publisher
	Topic     string
	Runs      crawler.RunStore
	IDs       crawler.IDGenerator
	Clock     crawler.Clock
	Logger    *zap.Logger
}

// Runner executes scrape runs.
type Runner struct {
	cfg     RunnerConfig
	logger  *zap.Logger
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewRunner validates cfg and builds a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	switch {
	case cfg.Scraper == nil:
		return nil, fmt.Errorf("scraper is required")
	case cfg.Archive == nil:
		return nil, fmt.Errorf("archive writer is required")
	case cfg.Runs == nil:
		return nil, fmt.Errorf("run store is required")
	case cfg.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger, baseCtx: context.Background()}, nil
}

// SetBaseContext sets the context background runs started by Start inherit. Canceling it stops
// them.
func (r *Runner) SetBaseContext(ctx context.Context) {
	r.baseCtx = ctx
}

// Submit records a queued run for countries (every mapped country when empty).
func (r *Runner) Submit(ctx context.Context, countries []string) (crawler.Run, error) {
	id, err := r.cfg.IDs.NewID()
	if err != nil {
		return crawler.Run{}, fmt.Errorf("new run id: %w", err)
	}
	upper := regions.Normalize(countries)
	for i, cc := range upper {
		upper[i] = strings.ToUpper(cc)
	}
	run := crawler.Run{
		ID:        id,
		Status:    crawler.RunStatusQueued,
		Countries: upper,
		Submitted: r.cfg.Clock.Now(),
	}
	if err := r.cfg.Runs.CreateRun(ctx, run); err != nil {
		return crawler.Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// Run submits and executes a run synchronously.
func (r *Runner) Run(ctx context.Context, countries []string) (Result, error) {
	run, err := r.Submit(ctx, countries)
	if err != nil {
		return Result{}, err
	}
	return r.Execute(ctx, run)
}

// Start submits a run and executes it in the background.
func (r *Runner) Start(ctx context.Context, countries []string) (crawler.Run, error) {
	run, err := r.Submit(ctx, countries)
	if err != nil {
		return crawler.Run{}, err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.Execute(r.baseCtx, run); err != nil {
			r.logger.Warn("background run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()
	return run, nil
}

// Wait blocks until every background run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Execute scrapes run.Countries and records the outcome in the run store.
func (r *Runner) Execute(ctx context.Context, run crawler.Run) (res Result, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scrape_run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.Int("run.countries", len(run.Countries)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := r.logger.With(zap.String("run_id", run.ID))
	if err := r.cfg.Runs.UpdateRun(ctx, run.ID, crawler.RunUpdate{
		Status: crawler.RunStatusRunning,
		At:     r.cfg.Clock.Now(),
	}); err != nil {
		return Result{}, fmt.Errorf("mark run running: %w", err)
	}

	snap, failed := r.cfg.Scraper.ScrapeRun(ctx, run.ID, run.Countries)
	res = Result{RunID: run.ID, Snapshot: snap, Failed: failed}
	finished := r.cfg.Clock.Now()
	span.SetAttributes(attribute.Int("run.plans", snap.PlanCount()), attribute.Int("run.failed", len(failed)))

	err = r.persist(ctx, &res, finished, log)

	update := crawler.RunUpdate{
		Status:     crawler.RunStatusSucceeded,
		Failed:     failed,
		Plans:      snap.PlanCount(),
		LatestURI:  res.Archive.LatestURI,
		ArchiveURI: res.Archive.ArchiveURI,
		At:         finished,
	}
	if err != nil {
		update.Status = crawler.RunStatusFailed
		update.Error = err.Error()
	}
	// The run record must reach a terminal state even when ctx was canceled mid-run.
	if uerr := r.cfg.Runs.UpdateRun(context.WithoutCancel(ctx), run.ID, update); uerr != nil {
		log.Error("mark run finished failed", zap.Error(uerr))
		if err == nil {
			err = fmt.Errorf("mark run finished: %w", uerr)
		}
	}
	log.Info("run finished",
		zap.String("status", string(update.Status)),
		zap.Int("countries", len(snap)),
		zap.Strings("failed", failed),
		zap.Int("plans", update.Plans),
	)
	return res, err
}

// persist archives the snapshot, stores its plans and publishes the completion event. Plan store
// and publish failures are logged but do not fail the run; the archive is the system of record.
func (r *Runner) persist(ctx context.Context, res *Result, at time.Time, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run canceled: %w", err)
	}
	if len(res.Snapshot.Successful()) == 0 {
		return ErrNothingScraped
	}

	written, err := r.cfg.Archive.Write(ctx, res.Snapshot, at)
	if err != nil {
		return fmt.Errorf("archive snapshot: %w", err)
	}
	res.Archive = written
	log.Info("snapshot archived", zap.String("latest", written.LatestURI), zap.String("archive", written.ArchiveURI))

	if r.cfg.Plans != nil {
		if err := r.cfg.Plans.SaveRun(ctx, res.RunID, res.Snapshot); err != nil {
			log.Warn("save plans failed", zap.Error(err))
		}
	}

	if r.cfg.Publisher != nil && r.cfg.Topic != "" {
		failed := res.Failed
		if failed == nil {
			failed = []string{}
		}
		event := crawler.RunEvent{
			RunID:      res.RunID,
			Countries:  len(res.Snapshot),
			Failed:     failed,
			Plans:      res.Snapshot.PlanCount(),
			LatestURI:  written.LatestURI,
			ArchiveURI: written.ArchiveURI,
			Digest:     written.Digest,
			Finished:   at,
		}
		id, err := r.cfg.Publisher.Publish(ctx, r.cfg.Topic, event)
		if err != nil {
			log.Warn("publish run event failed", zap.Error(err))
		} else {
			log.Debug("run event published", zap.String("message_id", id))
		}
	}
	return nil
}
