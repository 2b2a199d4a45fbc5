// Package crawler defines core types shared across subsystems.
package crawler

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
)

// ErrNoPrices is returned when every regional URL of a country was fetched but none produced a
// priced plan.
var ErrNoPrices = errors.New("crawler: no prices parsed")

// ErrQueueClosed is returned by Queue.Dequeue once the queue is closed and drained.
var ErrQueueClosed = errors.New("crawler: queue closed")

// ErrRunNotFound is returned by RunStore implementations for unknown run IDs.
var ErrRunNotFound = errors.New("crawler: run not found")

// CountrySnapshot is the scrape result for one country.
type CountrySnapshot struct {
	CountryCode  string               `json:"country_code"`
	CountryName  string               `json:"country_name"`
	Plans        []pricing.PlanRecord `json:"plans"`
	ScrapedAt    time.Time            `json:"scraped_at"`
	Attempt      int                  `json:"attempt"`
	Success      bool                 `json:"success"`
	Summary      string               `json:"summary,omitempty"`
	SourceURL    string               `json:"source_url,omitempty"`
	UsedHeadless bool                 `json:"used_headless,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Snapshot maps a country code to its scrape result.
type Snapshot map[string]CountrySnapshot

// Codes returns the country codes in sorted order.
func (s Snapshot) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Successful returns only the countries that produced plans.
func (s Snapshot) Successful() Snapshot {
	out := make(Snapshot, len(s))
	for code, cs := range s {
		if cs.Success && len(cs.Plans) > 0 {
			out[code] = cs
		}
	}
	return out
}

// PlanCount totals the plans across all countries.
func (s Snapshot) PlanCount() int {
	n := 0
	for _, cs := range s {
		n += len(cs.Plans)
	}
	return n
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	Country     string
	URL         string
	UseHeadless bool
	Headers     http.Header
	// ProxyURL routes the request through an HTTP proxy when set.
	ProxyURL string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// QueueItem is one country waiting to be scraped.
type QueueItem struct {
	RunID     string
	Country   string
	Submitted int64
}

// RunEvent is published when a scrape run finishes.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	Countries  int       `json:"countries"`
	Failed     []string  `json:"failed"`
	Plans      int       `json:"plans"`
	LatestURI  string    `json:"latest_uri,omitempty"`
	ArchiveURI string    `json:"archive_uri,omitempty"`
	Digest     string    `json:"digest,omitempty"`
	Finished   time.Time `json:"finished_at"`
}

// RunStatus is the lifecycle state of a scrape run.
type RunStatus string

// Run statuses.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Run tracks one batch scrape.
type Run struct {
	ID         string     `json:"run_id"`
	Status     RunStatus  `json:"status"`
	Countries  []string   `json:"countries"`
	Failed     []string   `json:"failed,omitempty"`
	Plans      int        `json:"plans"`
	LatestURI  string     `json:"latest_uri,omitempty"`
	ArchiveURI string     `json:"archive_uri,omitempty"`
	Error      string     `json:"error,omitempty"`
	Submitted  time.Time  `json:"submitted_at"`
	Started    *time.Time `json:"started_at,omitempty"`
	Finished   *time.Time `json:"finished_at,omitempty"`
}

// RunUpdate carries the fields written when a run changes state.
type RunUpdate struct {
	Status     RunStatus
	Failed     []string
	Plans      int
	LatestURI  string
	ArchiveURI string
	Error      string
	At         time.Time
}

// DefaultUserAgent is a desktop Chrome user agent; the pricing pages serve a reduced layout to
// unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// DefaultHeaders returns the browser-like request headers sent with every page fetch.
func DefaultHeaders() http.Header {
	return http.Header{
		"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language":           {"en-US,en;q=0.9"},
		"Upgrade-Insecure-Requests": {"1"},
		"Dnt":                       {"1"},
	}
}
