package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/streamprice-crawler/internal/app"
	"github.com/JakeFAU/streamprice-crawler/internal/archive"
	"github.com/JakeFAU/streamprice-crawler/internal/clock/system"
	"github.com/JakeFAU/streamprice-crawler/internal/exchange"
	"github.com/JakeFAU/streamprice-crawler/internal/storage"
	"github.com/JakeFAU/streamprice-crawler/internal/storage/memory"
)

type staticRates exchange.Rates

func (s staticRates) Latest(context.Context, string) (exchange.Rates, error) {
	return exchange.Rates(s), nil
}

func (staticRates) Name() string { return "static" }

func TestReporter_Report(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	_, err := archive.NewWriter(blobs, nil).Write(context.Background(), okSnapshot(), runAt)
	require.NoError(t, err)

	rep, err := app.NewReporter(app.ReporterConfig{
		Snapshots: archive.NewReader(blobs),
		Archive:   archive.NewWriter(blobs, nil),
		Rates:     staticRates{"EUR": 0.9, "CNY": 7.2},
		Target:    "cny",
		TopN:      5,
		Clock:     system.NewFixed(runAt),
	})
	require.NoError(t, err)

	report, written, err := rep.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CNY", report.Metadata.TargetCurrency)
	assert.Equal(t, "static", report.Metadata.ExchangeAPI)
	assert.Equal(t, 1, report.Metadata.SuccessfulCountries)
	assert.Equal(t, 1, report.Metadata.FailedCountries)
	assert.Equal(t, "memory://ranking_latest.json", written.LatestURI)

	all, ok := report.Ranking(exchange.CategoryAll)
	require.True(t, ok)
	require.Len(t, all.Data, 1)
	require.NotNil(t, all.Data[0].TargetPrice)
	assert.InDelta(t, 47.92, *all.Data[0].TargetPrice, 1e-9)
}

func TestReporter_MissingTargetRate(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	_, err := archive.NewWriter(blobs, nil).Write(context.Background(), okSnapshot(), runAt)
	require.NoError(t, err)

	rep, err := app.NewReporter(app.ReporterConfig{
		Snapshots: archive.NewReader(blobs),
		Rates:     staticRates{"EUR": 0.9},
		Target:    "CNY",
		Clock:     system.NewFixed(runAt),
	})
	require.NoError(t, err)

	_, _, err = rep.Report(context.Background())
	require.ErrorIs(t, err, exchange.ErrMissingRate)
}

func TestReporter_NoSnapshot(t *testing.T) {
	t.Parallel()

	rep, err := app.NewReporter(app.ReporterConfig{
		Snapshots: archive.NewReader(memory.NewBlobStore()),
		Rates:     staticRates{"CNY": 7.2},
		Target:    "CNY",
		Clock:     system.NewFixed(runAt),
	})
	require.NoError(t, err)

	_, _, err = rep.Report(context.Background())
	require.ErrorIs(t, err, storage.ErrNotFound)
}
