package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/streamprice-crawler/internal/archive"
	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/exchange"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
)

// ReporterConfig wires a Reporter. Archive is optional; without it reports are not stored.
type ReporterConfig struct {
	Snapshots *archive.Reader
	Archive   *archive.Writer
	Rates     exchange.RateProvider
	Base      string
	Target    string
	TopN      int
	Clock     crawler.Clock
	Logger    *zap.Logger
}

// Reporter converts the latest snapshot into a ranked report.
type Reporter struct {
	cfg    ReporterConfig
	logger *zap.Logger
}

// NewReporter validates cfg and builds a Reporter.
func NewReporter(cfg ReporterConfig) (*Reporter, error) {
	switch {
	case cfg.Snapshots == nil:
		return nil, fmt.Errorf("snapshot reader is required")
	case cfg.Rates == nil:
		return nil, fmt.Errorf("rate provider is required")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case strings.TrimSpace(cfg.Target) == "":
		return nil, fmt.Errorf("target currency is required")
	}
	if cfg.Base == "" {
		cfg.Base = pricing.BaseCurrency
	}
	cfg.Base = strings.ToUpper(cfg.Base)
	cfg.Target = strings.ToUpper(cfg.Target)
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{cfg: cfg, logger: logger}, nil
}

// Report loads the latest snapshot and live rates, builds the report and stores it.
func (r *Reporter) Report(ctx context.Context) (exchange.Report, archive.Result, error) {
	snap, err := r.cfg.Snapshots.Latest(ctx)
	if err != nil {
		return exchange.Report{}, archive.Result{}, fmt.Errorf("load latest snapshot: %w", err)
	}
	rates, err := r.cfg.Rates.Latest(ctx, r.cfg.Base)
	if err != nil {
		return exchange.Report{}, archive.Result{}, fmt.Errorf("load rates: %w", err)
	}
	if err := rates.Require(r.cfg.Base, r.cfg.Target); err != nil {
		return exchange.Report{}, archive.Result{}, fmt.Errorf("target currency: %w", err)
	}

	report := exchange.BuildReport(snap, rates, exchange.ReportOptions{
		Base:     r.cfg.Base,
		Target:   r.cfg.Target,
		TopN:     r.cfg.TopN,
		Provider: providerName(r.cfg.Rates),
		Now:      r.cfg.Clock.Now(),
	})
	r.logger.Info("report built",
		zap.Int("countries", report.Metadata.TotalCountries),
		zap.Int("plans", report.Metadata.TotalPlans),
		zap.Int("conversion_misses", report.Metadata.ConversionMisses),
	)

	if r.cfg.Archive == nil {
		return report, archive.Result{}, nil
	}
	written, err := r.cfg.Archive.WriteReport(ctx, report, report.Metadata.GeneratedAt)
	if err != nil {
		return report, archive.Result{}, fmt.Errorf("archive report: %w", err)
	}
	return report, written, nil
}

func providerName(p exchange.RateProvider) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}
