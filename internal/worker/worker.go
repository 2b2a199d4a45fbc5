// Package worker scrapes one country at a time: fetch each regional URL, promote to headless when
// the probe looks unrendered, parse, and retry the whole country on failure.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/metrics"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing/page"
	"github.com/JakeFAU/streamprice-crawler/internal/regions"
)

// Parser extracts plan records from a page and names the strategy that matched.
type Parser interface {
	ParseDetailed(html, country string) page.Result
}

// Config controls Worker behavior.
type Config struct {
	// BaseURL is the pricing site root; regional paths are appended to it.
	BaseURL string
	Headers http.Header
	// CountryTimeout bounds one attempt across every regional URL; zero disables it.
	CountryTimeout time.Duration
}

// Worker consumes queue items and emits one CountrySnapshot per item.
type Worker struct {
	parser          Parser
	probeFetcher    crawler.Fetcher
	headlessFetcher crawler.Fetcher
	detector        crawler.HeadlessDetector
	policy          crawler.Policy
	limiter         crawler.RateLimiter
	proxies         crawler.ProxyProvider
	retry           crawler.RetryPolicy
	clock           crawler.Clock
	cfg             Config
	logger          *zap.Logger
	sleep           func(context.Context, time.Duration) error
}

// New constructs a Worker. headless, detector, policy, limiter and proxies may be nil.
func New(
	parser Parser,
	probe crawler.Fetcher,
	headless crawler.Fetcher,
	detector crawler.HeadlessDetector,
	policy crawler.Policy,
	limiter crawler.RateLimiter,
	proxies crawler.ProxyProvider,
	retry crawler.RetryPolicy,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = regions.DefaultBaseURL
	}
	if cfg.Headers == nil {
		cfg.Headers = crawler.DefaultHeaders()
	}
	if retry == nil {
		retry = crawler.NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		parser:          parser,
		probeFetcher:    probe,
		headlessFetcher: headless,
		detector:        detector,
		policy:          policy,
		limiter:         limiter,
		proxies:         proxies,
		retry:           retry,
		clock:           clock,
		cfg:             cfg,
		logger:          logger,
		sleep:           sleepCtx,
	}
}

// Run consumes queue items until the queue is closed or the context finishes. Every dequeued
// item yields exactly one snapshot on out.
func (w *Worker) Run(ctx context.Context, queue crawler.Queue, out chan<- crawler.CountrySnapshot) {
	for {
		item, err := queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued country", zap.String("run_id", item.RunID), zap.String("country", item.Country))
		out <- w.ScrapeCountry(ctx, item)
	}
}

// ScrapeCountry runs every attempt for one country and never returns an error; failures are
// reported in the snapshot.
func (w *Worker) ScrapeCountry(ctx context.Context, item crawler.QueueItem) crawler.CountrySnapshot {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	cc := strings.ToLower(strings.TrimSpace(item.Country))
	snap := crawler.CountrySnapshot{
		CountryCode: strings.ToUpper(cc),
		CountryName: regions.Name(cc),
	}
	ctx, span := otel.Tracer("github.com/JakeFAU/streamprice-crawler/internal/worker").Start(ctx, "scrape_country",
		trace.WithAttributes(attribute.String("run.id", item.RunID), attribute.String("country", cc)))
	defer func() {
		span.SetAttributes(
			attribute.Int("attempts", snap.Attempt),
			attribute.Int("plans", len(snap.Plans)),
			attribute.Bool("success", snap.Success),
			attribute.Bool("headless", snap.UsedHeadless),
		)
		span.End()
	}()
	log := w.logger.With(zap.String("run_id", item.RunID), zap.String("country", cc))

	if !w.allowFetch(cc, "", 0) {
		snap.ScrapedAt = w.now()
		snap.Error = "blocked by policy"
		snap.Summary = fmt.Sprintf("%s: blocked by policy", strings.ToUpper(cc))
		metrics.ObserveCountry("blocked")
		log.Warn("country blocked by policy")
		return snap
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		snap.Attempt = attempt
		res, err := w.attempt(ctx, cc, attempt, log)
		snap.ScrapedAt = w.now()
		if err == nil {
			snap.Success = true
			snap.Plans = res.Records
			snap.Summary = res.Summary
			snap.SourceURL = res.url
			snap.UsedHeadless = res.usedHeadless
			snap.Error = ""
			w.observeSuccess(res)
			log.Info("country scraped",
				zap.Int("attempt", attempt),
				zap.Int("plans", len(res.Records)),
				zap.String("strategy", res.Strategy),
				zap.String("url", res.url),
				zap.Bool("headless", res.usedHeadless),
			)
			return snap
		}
		lastErr = err
		snap.Summary = res.Summary
		if !w.retry.ShouldRetry(err, attempt) {
			break
		}
		backoff := w.retry.Backoff(attempt)
		log.Warn("country attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := w.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	snap.Error = lastErr.Error()
	if snap.Summary == "" {
		snap.Summary = fmt.Sprintf("%s: %s", strings.ToUpper(cc), snap.Error)
	}
	metrics.ObserveCountry("failed")
	log.Error("country failed", zap.Int("attempts", snap.Attempt), zap.Error(lastErr))
	return snap
}

type outcome struct {
	page.Result
	url          string
	usedHeadless bool
}

// attempt walks the regional URLs in order and stops at the first one that yields plans.
func (w *Worker) attempt(ctx context.Context, cc string, attempt int, log *zap.Logger) (outcome, error) {
	if w.cfg.CountryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.CountryTimeout)
		defer cancel()
	}

	proxyURL := w.proxyFor(ctx, cc, log)

	var (
		lastErr error
		last    outcome
	)
	for _, u := range regions.URLs(w.cfg.BaseURL, cc) {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		if !w.allowFetch(cc, u, attempt) {
			log.Debug("url blocked by policy", zap.String("url", u))
			continue
		}
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx, u); err != nil {
				return last, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		req := crawler.FetchRequest{
			Country:  cc,
			URL:      u,
			Headers:  w.cfg.Headers,
			ProxyURL: proxyURL,
		}
		resp, err := w.probeFetcher.Fetch(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("probe fetch %s: %w", u, err)
			log.Debug("probe fetch failed", zap.String("url", u), zap.Error(err))
			continue
		}
		resp = w.maybePromote(ctx, req, resp, attempt, log)

		res := w.parser.ParseDetailed(string(resp.Body), cc)
		last = outcome{Result: res, url: resp.URL, usedHeadless: resp.UsedHeadless}
		if len(res.Records) > 0 {
			return last, nil
		}
		lastErr = fmt.Errorf("%s: %w", u, crawler.ErrNoPrices)
		log.Debug("no prices on page", zap.String("url", u), zap.String("summary", res.Summary))
	}
	if lastErr == nil {
		lastErr = crawler.ErrNoPrices
	}
	return last, lastErr
}

func (w *Worker) maybePromote(
	ctx context.Context,
	req crawler.FetchRequest,
	probe crawler.FetchResponse,
	attempt int,
	log *zap.Logger,
) crawler.FetchResponse {
	if w.detector == nil || w.headlessFetcher == nil {
		return probe
	}
	if !w.allowHeadless(req.Country, req.URL, attempt) || !w.detector.ShouldPromote(probe) {
		return probe
	}
	metrics.ObserveHeadlessPromotion()
	req.UseHeadless = true
	resp, err := w.headlessFetcher.Fetch(ctx, req)
	if err != nil {
		log.Warn("headless promotion failed", zap.String("url", req.URL), zap.Error(err))
		return probe
	}
	resp.UsedHeadless = true
	log.Info("headless promotion applied", zap.String("url", req.URL))
	return resp
}

func (w *Worker) proxyFor(ctx context.Context, cc string, log *zap.Logger) string {
	if w.proxies == nil {
		return ""
	}
	p, err := w.proxies.ProxyFor(ctx, cc)
	if err != nil {
		log.Warn("proxy unavailable, fetching directly", zap.Error(err))
		return ""
	}
	return p
}

func (w *Worker) observeSuccess(res outcome) {
	metrics.ObserveCountry("succeeded")
	metrics.ObserveParseStrategy(res.Strategy)
	groups := make(map[string]int)
	for _, r := range res.Records {
		groups[string(r.PlanGroup)]++
	}
	for g, n := range groups {
		metrics.ObservePlans(g, n)
	}
}

func (w *Worker) allowFetch(country, url string, attempt int) bool {
	if w.policy == nil {
		return true
	}
	return w.policy.AllowFetch(country, url, attempt)
}

func (w *Worker) allowHeadless(country, url string, attempt int) bool {
	if w.policy == nil {
		return true
	}
	return w.policy.AllowHeadless(country, url, attempt)
}

func (w *Worker) now() time.Time {
	if w.clock == nil {
		return time.Now().UTC()
	}
	return w.clock.Now()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
