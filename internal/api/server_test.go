package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/streamprice-crawler/internal/clock/system"
	"github.com/JakeFAU/streamprice-crawler/internal/config"
	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
	"github.com/JakeFAU/streamprice-crawler/internal/storage"
	"github.com/JakeFAU/streamprice-crawler/internal/storage/memory"
)

type stubParser struct {
	records []pricing.PlanRecord
	country string
}

func (p *stubParser) Parse(_ string, country string) ([]pricing.PlanRecord, string) {
	p.country = country
	return p.records, "parsed " + country
}

type stubSnapshots struct {
	snap crawler.Snapshot
	err  error
}

func (s stubSnapshots) Latest(context.Context) (crawler.Snapshot, error) {
	return s.snap, s.err
}

type stubRunner struct {
	countries []string
	run       crawler.Run
	err       error
}

func (r *stubRunner) Start(_ context.Context, countries []string) (crawler.Run, error) {
	r.countries = countries
	return r.run, r.err
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Server.RequestTimeoutSeconds = 5
	cfg.Server.MaxBodyBytes = 1 << 20
	cfg.Scrape.Countries = []string{"us", "tr"}
	cfg.Exchange.Base = "USD"
	cfg.Exchange.Target = "CNY"
	cfg.Exchange.TopN = 10
	return cfg
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProbes(t *testing.T) {
	t.Parallel()

	srv := NewServer(Deps{}, testConfig(), nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	notReady := NewServer(Deps{Ready: func(context.Context) error { return errors.New("db down") }}, testConfig(), nil)
	rec = do(t, notReady.Handler(), http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	t.Parallel()

	srv := NewServer(Deps{}, testConfig(), nil)
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "", map[string]string{"X-Request-ID": "abc"})
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestParse(t *testing.T) {
	t.Parallel()

	parser := &stubParser{records: []pricing.PlanRecord{{Country: "tr", PlanName: "Premium", Currency: "TRY", PriceNumber: 149.99}}}
	srv := NewServer(Deps{Parser: parser}, testConfig(), nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "ok", body: `{"country":"TR","html":"<html></html>"}`, want: http.StatusOK},
		{name: "bad country", body: `{"country":"tur","html":"<html></html>"}`, want: http.StatusBadRequest},
		{name: "missing html", body: `{"country":"tr"}`, want: http.StatusBadRequest},
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv.Handler(), http.MethodPost, "/v1/parse", tt.body, nil)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/parse", `{"country":"TR","html":"<p/>"}`, nil)
	var resp parseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tr", parser.country)
	assert.Equal(t, "parsed tr", resp.Summary)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "Premium", resp.Records[0].PlanName)
}

func TestParse_EmptyRecordsIsArray(t *testing.T) {
	t.Parallel()

	srv := NewServer(Deps{Parser: &stubParser{}}, testConfig(), nil)
	rec := do(t, srv.Handler(), http.MethodPost, "/v1/parse", `{"country":"us","html":"<p/>"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":[]`)
}

func TestParse_BodyTooLarge(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.MaxBodyBytes = 16
	srv := NewServer(Deps{Parser: &stubParser{}}, cfg, nil)
	rec := do(t, srv.Handler(), http.MethodPost, "/v1/parse", `{"country":"us","html":"`+strings.Repeat("x", 64)+`"}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestConvert(t *testing.T) {
	t.Parallel()

	clk := system.NewFixed(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	srv := NewServer(Deps{Clock: clk}, testConfig(), nil)

	body := `{
		"records":[{"country_code":"de","name":"Standard","plan_group":"monthly","currency":"EUR","price":"5,99 €","price_number":5.99,"monthly_price":5.99}],
		"rates":{"eur":0.9,"CNY":7.2},
		"top_n":5
	}`
	rec := do(t, srv.Handler(), http.MethodPost, "/v1/convert", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc, "_metadata")
	assert.Contains(t, doc, "_top_5_cheapest_all")
	require.Contains(t, doc, "DE")
	assert.Contains(t, string(doc["DE"]), `"target_monthly_price":47.92`)
}

func TestConvert_Validation(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Exchange.Target = ""
	srv := NewServer(Deps{}, cfg, nil)

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/convert", `{"records":[],"rates":{"CNY":7.2}}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "target required")

	rec = do(t, srv.Handler(), http.MethodPost, "/v1/convert", `{"records":[],"target":"CNY"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "rates required")
}

func TestLatestSnapshot(t *testing.T) {
	t.Parallel()

	snap := crawler.Snapshot{"us": {CountryCode: "us", CountryName: "United States", Success: true}}
	tests := []struct {
		name string
		deps Deps
		want int
	}{
		{name: "found", deps: Deps{Snapshots: stubSnapshots{snap: snap}}, want: http.StatusOK},
		{name: "missing", deps: Deps{Snapshots: stubSnapshots{err: storage.ErrNotFound}}, want: http.StatusNotFound},
		{name: "broken", deps: Deps{Snapshots: stubSnapshots{err: errors.New("boom")}}, want: http.StatusInternalServerError},
		{name: "unconfigured", deps: Deps{}, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := NewServer(tt.deps, testConfig(), nil)
			rec := do(t, srv.Handler(), http.MethodGet, "/v1/snapshots/latest", "", nil)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStartScrape(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{run: crawler.Run{ID: "0192d5a0-0000-7000-8000-000000000001", Status: crawler.RunStatusQueued}}
	srv := NewServer(Deps{Runner: runner}, testConfig(), nil)

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/scrape", `{"countries":["de","fr"]}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"de", "fr"}, runner.countries)
	assert.Equal(t, "/v1/runs/"+runner.run.ID, rec.Header().Get("Location"))

	rec = do(t, srv.Handler(), http.MethodPost, "/v1/scrape", "", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"us", "tr"}, runner.countries)

	rec = do(t, srv.Handler(), http.MethodPost, "/v1/scrape", `{"countries":["usa","d1"]}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "d1, usa")
}

func TestStartScrape_RunnerError(t *testing.T) {
	t.Parallel()

	srv := NewServer(Deps{Runner: &stubRunner{err: errors.New("store down")}}, testConfig(), nil)
	rec := do(t, srv.Handler(), http.MethodPost, "/v1/scrape", `{}`, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	runs := memory.NewRunStore()
	id := "0192d5a0-0000-7000-8000-000000000002"
	require.NoError(t, runs.CreateRun(context.Background(), crawler.Run{ID: id, Status: crawler.RunStatusQueued, Countries: []string{"us"}}))
	srv := NewServer(Deps{Runs: runs}, testConfig(), nil)

	rec := do(t, srv.Handler(), http.MethodGet, "/v1/runs/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run crawler.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, crawler.RunStatusQueued, run.Status)

	rec = do(t, srv.Handler(), http.MethodGet, "/v1/runs/not-a-uuid", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, "/v1/runs/0192d5a0-0000-7000-8000-00000000ffff", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "s3cret"
	srv := NewServer(Deps{Snapshots: stubSnapshots{snap: crawler.Snapshot{}}}, cfg, nil)

	rec := do(t, srv.Handler(), http.MethodGet, "/v1/snapshots/latest", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, "/v1/snapshots/latest", "", map[string]string{"X-API-Key": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, "/v1/snapshots/latest?api_key=s3cret", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv.Handler(), http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := do(t, h, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
