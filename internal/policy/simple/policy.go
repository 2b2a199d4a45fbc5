// Package simple contains the static fetch policy applied by workers.
package simple

import "strings"

// Policy gates headless rendering and restricts which countries may be fetched.
type Policy struct {
	headless bool
	// headlessFrom is the first attempt (1-based) allowed to use the headless renderer.
	headlessFrom int
	allowed      map[string]bool
}

// Config configures a Policy.
type Config struct {
	HeadlessEnabled bool
	// HeadlessFromAttempt delays headless promotion until a retry; zero allows it immediately.
	HeadlessFromAttempt int
	// Countries limits fetching to these codes; empty allows every country.
	Countries []string
}

// New creates a new Policy.
func New(cfg Config) *Policy {
	allowed := make(map[string]bool, len(cfg.Countries))
	for _, c := range cfg.Countries {
		allowed[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return &Policy{
		headless:     cfg.HeadlessEnabled,
		headlessFrom: cfg.HeadlessFromAttempt,
		allowed:      allowed,
	}
}

// AllowHeadless reports whether the country's attempt may be rendered headlessly.
func (p *Policy) AllowHeadless(_ string, _ string, attempt int) bool {
	return p.headless && attempt >= p.headlessFrom
}

// AllowFetch reports whether the country may be scraped at all.
func (p *Policy) AllowFetch(country string, _ string, _ int) bool {
	if len(p.allowed) == 0 {
		return true
	}
	return p.allowed[strings.ToLower(country)]
}
