// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// DisableHTTPFallback turns off the plain-HTTP retry after a failed HTTPS connection.
	DisableHTTPFallback bool
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper

	mu         sync.Mutex
	proxyTrans map[string]*http.Transport
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Fetcher{
		cfg:        cfg,
		transport:  newHTTPTransport(nil),
		proxyTrans: make(map[string]*http.Transport),
	}
}

// Fetch executes a single HTTP GET using Colly. When an HTTPS connection fails before any
// response arrives, the same URL is retried over plain HTTP.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	resp, err := f.fetchOnce(ctx, request)
	if err == nil || f.cfg.DisableHTTPFallback || !shouldFallback(ctx, err) {
		return resp, err
	}
	fallback, ok := httpFallbackURL(request.URL)
	if !ok {
		return resp, err
	}
	request.URL = fallback
	resp, fbErr := f.fetchOnce(ctx, request)
	if fbErr != nil {
		return crawler.FetchResponse{}, fmt.Errorf("https failed (%v), http fallback: %w", err, fbErr)
	}
	return resp, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector, err := f.buildCollector(request, start, &result, &fetchErr)
	if err != nil {
		return crawler.FetchResponse{}, err
	}

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return crawler.FetchResponse{}, err
	}
	metrics.ObserveFetch("colly", result.URL, result.Duration, len(result.Body))
	return result, nil
}

// buildCollector returns a fresh collector per request; clones share the backend transport, so a
// per-request proxy would leak across workers.
func (f *Fetcher) buildCollector(
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) (*colly.Collector, error) {
	collector := colly.NewCollector()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)

	transport, err := f.transportFor(request.ProxyURL)
	if err != nil {
		return nil, err
	}
	collector.WithTransport(transport)

	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector, nil
}

func (f *Fetcher) transportFor(proxyURL string) (http.RoundTripper, error) {
	if proxyURL == "" {
		return f.transport, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.proxyTrans[proxyURL]; ok {
		return t, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q", proxyURL)
	}
	t := newHTTPTransport(http.ProxyURL(u))
	f.proxyTrans[proxyURL] = t
	return t, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:          r.Request.URL.String(),
			StatusCode:   r.StatusCode,
			Headers:      r.Headers.Clone(),
			Body:         append([]byte(nil), r.Body...),
			Duration:     time.Since(start),
			UsedHeadless: false,
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			*fetchErr = &StatusError{URL: request.URL, StatusCode: r.StatusCode}
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(request crawler.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

// Close releases idle connections held by proxy transports.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, t := range f.proxyTrans {
		t.CloseIdleConnections()
		delete(f.proxyTrans, key)
	}
}

func newHTTPTransport(proxy func(*http.Request) (*url.URL, error)) *http.Transport {
	if proxy == nil {
		proxy = http.ProxyFromEnvironment
	}
	return &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
