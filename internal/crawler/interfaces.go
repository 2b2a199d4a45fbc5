package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
)

// BlobStore writes snapshot documents and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// PlanStore persists plan records for historical queries.
type PlanStore interface {
	SaveRun(ctx context.Context, runID string, snap Snapshot) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// PageParser turns a pricing page into plan records.
type PageParser interface {
	Parse(html, country string) ([]pricing.PlanRecord, string)
}

// Queue provides enqueue/dequeue semantics for country scrapes.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Policy decides which fetches and headless renders are allowed.
type Policy interface {
	AllowFetch(country, url string, attempt int) bool
	AllowHeadless(country, url string, attempt int) bool
}

// RateLimiter paces requests per host.
type RateLimiter interface {
	Wait(ctx context.Context, url string) error
}

// RetryPolicy decides whether and when a failed country is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// ProxyProvider hands out a proxy URL for a country. An empty URL means fetch directly.
type ProxyProvider interface {
	ProxyFor(ctx context.Context, country string) (string, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// RunStore tracks scrape runs submitted through the API or scheduler.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRun(ctx context.Context, id string, update RunUpdate) error
	GetRun(ctx context.Context, id string) (Run, error)
}
