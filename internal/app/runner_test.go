package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/streamprice-crawler/internal/app"
	"github.com/JakeFAU/streamprice-crawler/internal/archive"
	"github.com/JakeFAU/streamprice-crawler/internal/clock/system"
	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/hash/sha256"
	"github.com/JakeFAU/streamprice-crawler/internal/id/uuid"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
	"github.com/JakeFAU/streamprice-crawler/internal/storage/memory"
)

// MockPlanStore mocks crawler.PlanStore.
type MockPlanStore struct {
	mock.Mock
}

func (m *MockPlanStore) SaveRun(ctx context.Context, runID string, snap crawler.Snapshot) error {
	args := m.Called(ctx, runID, snap)
	return args.Error(0)
}

// MockPublisher mocks crawler.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	args := m.Called(ctx, topic, payload)
	return args.String(0), args.Error(1)
}

type stubScraper struct {
	snap   crawler.Snapshot
	failed []string
	runIDs []string
}

func (s *stubScraper) ScrapeRun(_ context.Context, runID string, _ []string) (crawler.Snapshot, []string) {
	s.runIDs = append(s.runIDs, runID)
	return s.snap, s.failed
}

var runAt = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func okSnapshot() crawler.Snapshot {
	return crawler.Snapshot{
		"ES": {
			CountryCode: "ES",
			CountryName: "Spain",
			Success:     true,
			Attempt:     1,
			ScrapedAt:   runAt,
			Plans: []pricing.PlanRecord{{
				Country: "ES", PlanName: "Standard", OriginalName: "Estándar",
				PlanGroup: pricing.PlanGroupMonthly, Currency: "EUR", PriceText: "€5,99",
				PriceNumber: 5.99, MonthlyPrice: 5.99,
			}},
		},
		"BR": {CountryCode: "BR", CountryName: "Brazil", Attempt: 3, Error: "no prices"},
	}
}

type fixture struct {
	runner *app.Runner
	runs   *memory.RunStore
	blobs  *memory.BlobStore
	plans  *MockPlanStore
	pub    *MockPublisher
	scrape *stubScraper
}

func newFixture(t *testing.T, snap crawler.Snapshot, failed []string) fixture {
	t.Helper()
	f := fixture{
		runs:   memory.NewRunStore(),
		blobs:  memory.NewBlobStore(),
		plans:  &MockPlanStore{},
		pub:    &MockPublisher{},
		scrape: &stubScraper{snap: snap, failed: failed},
	}
	runner, err := app.NewRunner(app.RunnerConfig{
		Scraper:   f.scrape,
		Archive:   archive.NewWriter(f.blobs, sha256.New()),
		Plans:     f.plans,
		Publisher: f.pub,
		Topic:     "streamprice-runs",
		Runs:      f.runs,
		IDs:       uuid.New(),
		Clock:     system.NewFixed(runAt),
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	f.runner = runner
	return f
}

func TestRunner_RunArchivesPersistsAndPublishes(t *testing.T) {
	t.Parallel()

	snap := okSnapshot()
	f := newFixture(t, snap, []string{"BR"})
	f.plans.On("SaveRun", mock.Anything, mock.AnythingOfType("string"), snap).Return(nil)
	f.pub.On("Publish", mock.Anything, "streamprice-runs", mock.MatchedBy(func(ev crawler.RunEvent) bool {
		return ev.Countries == 2 && ev.Plans == 1 && len(ev.Failed) == 1 &&
			ev.LatestURI == "memory://prices_latest.json" && ev.Digest != ""
	})).Return("msg-1", nil)

	res, err := f.runner.Run(context.Background(), []string{"ES", "br"})
	require.NoError(t, err)
	assert.Equal(t, "memory://archive/2024/prices_20240630_120000.json", res.Archive.ArchiveURI)
	assert.Equal(t, []string{"BR"}, res.Failed)
	assert.Equal(t, []string{res.RunID}, f.scrape.runIDs)

	run, err := f.runs.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, crawler.RunStatusSucceeded, run.Status)
	assert.Equal(t, []string{"ES", "BR"}, run.Countries)
	assert.Equal(t, 1, run.Plans)
	assert.Equal(t, res.Archive.LatestURI, run.LatestURI)
	require.NotNil(t, run.Finished)

	f.plans.AssertExpectations(t)
	f.pub.AssertExpectations(t)
}

func TestRunner_NothingScrapedKeepsLatest(t *testing.T) {
	t.Parallel()

	snap := crawler.Snapshot{"BR": {CountryCode: "BR", Error: "no prices"}}
	f := newFixture(t, snap, []string{"BR"})

	res, err := f.runner.Run(context.Background(), []string{"br"})
	require.ErrorIs(t, err, app.ErrNothingScraped)
	assert.Empty(t, f.blobs.Paths())

	run, err := f.runs.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, crawler.RunStatusFailed, run.Status)
	assert.Equal(t, app.ErrNothingScraped.Error(), run.Error)

	f.plans.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything, mock.Anything)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunner_SideEffectFailuresDoNotFailRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okSnapshot(), []string{"BR"})
	f.plans.On("SaveRun", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))
	f.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("pubsub down"))

	res, err := f.runner.Run(context.Background(), nil)
	require.NoError(t, err)

	run, err := f.runs.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, crawler.RunStatusSucceeded, run.Status)
}

func TestRunner_StartRunsInBackground(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okSnapshot(), nil)
	f.plans.On("SaveRun", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("msg", nil)

	run, err := f.runner.Start(context.Background(), []string{"es"})
	require.NoError(t, err)
	assert.Equal(t, crawler.RunStatusQueued, run.Status)

	f.runner.Wait()
	got, err := f.runs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, crawler.RunStatusSucceeded, got.Status)
	assert.True(t, got.Status.Terminal())
}

func TestNewRunnerValidation(t *testing.T) {
	t.Parallel()

	_, err := app.NewRunner(app.RunnerConfig{})
	require.ErrorContains(t, err, "scraper is required")
}
