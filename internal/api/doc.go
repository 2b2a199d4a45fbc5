// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/parse and /v1/convert run the parser and converter on posted data.
//   - GET /v1/snapshots/latest serves the most recent archived snapshot.
//   - POST /v1/scrape starts a background run; GET /v1/runs/{run_id} reports on it.
package api
