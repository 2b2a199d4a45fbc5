// Package server wires configuration into a running application.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/streamprice-crawler/internal/api"
	"github.com/JakeFAU/streamprice-crawler/internal/app"
	"github.com/JakeFAU/streamprice-crawler/internal/archive"
	"github.com/JakeFAU/streamprice-crawler/internal/clock/system"
	"github.com/JakeFAU/streamprice-crawler/internal/config"
	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
	"github.com/JakeFAU/streamprice-crawler/internal/dispatcher"
	"github.com/JakeFAU/streamprice-crawler/internal/exchange"
	"github.com/JakeFAU/streamprice-crawler/internal/exchange/openexchange"
	collyfetcher "github.com/JakeFAU/streamprice-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/streamprice-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/streamprice-crawler/internal/hash/sha256"
	"github.com/JakeFAU/streamprice-crawler/internal/headless/detector"
	"github.com/JakeFAU/streamprice-crawler/internal/id/uuid"
	"github.com/JakeFAU/streamprice-crawler/internal/logging"
	"github.com/JakeFAU/streamprice-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/streamprice-crawler/internal/policy/simple"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing"
	"github.com/JakeFAU/streamprice-crawler/internal/pricing/page"
	"github.com/JakeFAU/streamprice-crawler/internal/proxy"
	memorypublisher "github.com/JakeFAU/streamprice-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/streamprice-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/streamprice-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/streamprice-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/streamprice-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/streamprice-crawler/internal/storage/postgres"
	"github.com/JakeFAU/streamprice-crawler/internal/telemetry"
	"github.com/JakeFAU/streamprice-crawler/internal/worker"
)

// ErrNoRateSource is returned by Reporter when neither an exchange API key nor a rates file is
// configured.
var ErrNoRateSource = errors.New("exchange.api_key or exchange.rates_file is required")

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	parser    *page.Parser
	runner    *app.Runner
	reporter  *app.Reporter
	snapshots *archive.Reader
	runs      crawler.RunStore
	apiServer *api.Server

	pool      *pgxpool.Pool
	gcs       *gcsstorage.BlobStore
	publisher *gcppublisher.Publisher
	probe     *collyfetcher.Fetcher
	headless  *headlessfetcher.Fetcher

	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Strings("countries", cfg.Scrape.Countries),
	)

	a := &App{
		cfg:    cfg,
		logger: logger,
		parser: page.NewParser(pricing.DefaultTables(), page.DefaultLayout()),
	}
	ok := false
	defer func() {
		if !ok {
			a.closeInfrastructure()
		}
	}()

	a.tracerShutdown, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Version:     cfg.Tracing.Version,
		ProjectID:   cfg.Tracing.ProjectID,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	blobStore, err := setupStorage(ctx, a)
	if err != nil {
		return nil, err
	}
	plans, err := setupDatabase(ctx, a)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, a)
	if err != nil {
		return nil, err
	}
	disp, err := setupDispatcher(a)
	if err != nil {
		return nil, err
	}

	clock := system.New()
	writer := archive.NewWriter(blobStore, sha256.New())
	a.snapshots = archive.NewReader(blobStore)

	a.runner, err = app.NewRunner(app.RunnerConfig{
		Scraper:   disp,
		Archive:   writer,
		Plans:     plans,
		Publisher: publisher,
		Topic:     cfg.PubSub.Topic,
		Runs:      a.runs,
		IDs:       uuid.New(),
		Clock:     clock,
		Logger:    logger.Named("runner"),
	})
	if err != nil {
		return nil, fmt.Errorf("runner init failed: %w", err)
	}

	rates, err := setupRates(cfg)
	switch {
	case errors.Is(err, ErrNoRateSource):
		logger.Warn("no exchange rate source configured; conversion disabled")
	case err != nil:
		return nil, err
	default:
		a.reporter, err = app.NewReporter(app.ReporterConfig{
			Snapshots: a.snapshots,
			Archive:   writer,
			Rates:     rates,
			Base:      cfg.Exchange.Base,
			Target:    cfg.Exchange.Target,
			TopN:      cfg.Exchange.TopN,
			Clock:     clock,
			Logger:    logger.Named("reporter"),
		})
		if err != nil {
			return nil, fmt.Errorf("reporter init failed: %w", err)
		}
	}

	a.apiServer = api.NewServer(api.Deps{
		Parser:    a.parser,
		Snapshots: a.snapshots,
		Runner:    a.runner,
		Runs:      a.runs,
		Clock:     clock,
		Ready:     a.ready,
	}, cfg, logger.Named("api"))

	ok = true
	return a, nil
}

// Parser returns the page parser.
func (a *App) Parser() *page.Parser { return a.parser }

// Runner returns the scrape runner.
func (a *App) Runner() *app.Runner { return a.runner }

// Reporter returns the report builder, or ErrNoRateSource when conversion is not configured.
func (a *App) Reporter() (*app.Reporter, error) {
	if a.reporter == nil {
		return nil, ErrNoRateSource
	}
	return a.reporter, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Scrape runs one synchronous scrape of countries (the configured set when empty).
func (a *App) Scrape(ctx context.Context, countries []string) (app.Result, error) {
	if len(countries) == 0 {
		countries = a.cfg.Scrape.Countries
	}
	res, err := a.runner.Run(ctx, countries)
	if err != nil {
		return res, fmt.Errorf("scrape: %w", err)
	}
	return res, nil
}

// Report converts the latest snapshot and archives the ranking.
func (a *App) Report(ctx context.Context) (exchange.Report, archive.Result, error) {
	r, err := a.Reporter()
	if err != nil {
		return exchange.Report{}, archive.Result{}, err
	}
	report, written, err := r.Report(ctx)
	if err != nil {
		return report, written, fmt.Errorf("report: %w", err)
	}
	return report, written, nil
}

// Run serves the HTTP API and the scrape schedule until the context is canceled or a signal
// arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a.runner.SetBaseContext(ctx)

	sched, err := a.schedule(ctx)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if sched != nil {
		<-sched.Stop().Done()
	}
	a.runner.Wait()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// schedule returns nil when no cron expression is configured.
func (a *App) schedule(ctx context.Context) (*cron.Cron, error) {
	if a.cfg.Schedule.Cron == "" {
		return nil, nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(a.cfg.Schedule.Cron, func() { a.scheduledRun(ctx) })
	if err != nil {
		return nil, fmt.Errorf("parse schedule.cron %q: %w", a.cfg.Schedule.Cron, err)
	}
	a.logger.Info("scrape schedule enabled",
		zap.String("cron", a.cfg.Schedule.Cron),
		zap.Bool("convert", a.cfg.Schedule.Convert),
	)
	return c, nil
}

func (a *App) scheduledRun(ctx context.Context) {
	res, err := a.runner.Run(ctx, a.cfg.Scrape.Countries)
	if err != nil {
		a.logger.Error("scheduled scrape failed", zap.Error(err))
		return
	}
	a.logger.Info("scheduled scrape finished",
		zap.String("run_id", res.RunID),
		zap.Int("plans", res.Snapshot.PlanCount()),
		zap.Strings("failed", res.Failed),
	)
	if !a.cfg.Schedule.Convert {
		return
	}
	if a.reporter == nil {
		a.logger.Warn("schedule.convert set without an exchange rate source")
		return
	}
	if _, written, err := a.reporter.Report(ctx); err != nil {
		a.logger.Error("scheduled report failed", zap.Error(err))
	} else {
		a.logger.Info("scheduled report written", zap.String("uri", written.LatestURI))
	}
}

func (a *App) ready(ctx context.Context) error {
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.CheckTopic(ctx); err != nil {
			return fmt.Errorf("pubsub: %w", err)
		}
	}
	return nil
}

// Close releases every client the application opened.
func (a *App) Close() error {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	return nil
}

func (a *App) closeInfrastructure() {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.probe != nil {
		a.probe.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}

func setupStorage(ctx context.Context, a *App) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.GCSBucket))
		store, err := gcsstorage.Dial(ctx, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.gcs = store
		return store, nil
	case config.BackendLocal:
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.BaseDir))
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return store, nil
	default:
		a.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	}
}

// setupDatabase connects Postgres when a DSN is configured. Without one, runs are tracked in
// memory and plan rows are not stored.
func setupDatabase(ctx context.Context, a *App) (crawler.PlanStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no DSN configured; tracking runs in memory and skipping plan history")
		a.runs = memorystorage.NewRunStore()
		return nil, nil
	}
	pool, err := pgstore.Connect(ctx, pgstore.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(a.cfg.DB.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres init failed: %w", err)
	}
	a.pool = pool

	plans, err := pgstore.NewPlanStoreWithPool(pool, a.cfg.DB.Table)
	if err != nil {
		return nil, fmt.Errorf("plan store init failed: %w", err)
	}
	runs, err := pgstore.NewRunStoreWithPool(pool, a.cfg.DB.RunTable)
	if err != nil {
		return nil, fmt.Errorf("run store init failed: %w", err)
	}
	if a.cfg.DB.AutoMigrate {
		if err := plans.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		if err := runs.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.logger.Info("database schema ensured")
	}
	a.runs = runs
	a.logger.Info("postgres stores initialized",
		zap.String("plan_table", a.cfg.DB.Table),
		zap.String("run_table", a.cfg.DB.RunTable),
	)
	return plans, nil
}

func setupPublisher(ctx context.Context, a *App) (crawler.Publisher, error) {
	if a.cfg.PubSub.Topic == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	pub, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.Topic)
	if err != nil {
		return nil, fmt.Errorf("pubsub init failed: %w", err)
	}
	a.publisher = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.Topic),
	)
	return pub, nil
}

func setupDispatcher(a *App) (*dispatcher.Dispatcher, error) {
	cfg := a.cfg
	a.probe = collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Scrape.UserAgent,
		RespectRobots: !cfg.Scrape.IgnoreRobots,
		Timeout:       cfg.FetchTimeout(),
	})
	a.logger.Info("using colly probe fetcher", zap.String("user_agent", cfg.Scrape.UserAgent))

	var headless crawler.Fetcher = headlessfetcher.NewNoop()
	if cfg.Headless.Enabled {
		f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Scrape.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.headless = f
		headless = f
		a.logger.Info("using headless fetcher", zap.Int("max_parallel", cfg.Headless.MaxParallel))
	}

	initial, maxDelay := cfg.RetryBackoff()
	retry := crawler.NewRetryPolicy(cfg.Scrape.MaxAttempts, initial, maxDelay)
	detect := detector.NewHeuristic(cfg.Headless.PromotionThresh)
	policy := simple.New(simple.Config{
		HeadlessEnabled:     cfg.Headless.Enabled,
		HeadlessFromAttempt: cfg.Headless.FromAttempt,
	})
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Scrape.RateLimitRPS,
		DefaultBurst: cfg.Scrape.RateLimitBurst,
	})
	var proxies crawler.ProxyProvider
	if cfg.Proxy.APITemplate != "" {
		proxies = proxy.New(proxy.Config{
			APITemplate: cfg.Proxy.APITemplate,
			Timeout:     time.Duration(cfg.Proxy.TimeoutSeconds) * time.Second,
			MaxAttempts: cfg.Proxy.MaxAttempts,
		}, a.logger.Named("proxy"))
	}

	workerCfg := worker.Config{
		BaseURL:        cfg.Scrape.BaseURL,
		CountryTimeout: time.Duration(cfg.Scrape.CountryTimeoutSeconds) * time.Second,
	}
	clock := system.New()
	workers := make([]*worker.Worker, 0, cfg.Scrape.Concurrency)
	for i := 0; i < cfg.Scrape.Concurrency; i++ {
		workers = append(workers, worker.New(
			a.parser,
			a.probe,
			headless,
			detect,
			policy,
			limiter,
			proxies,
			retry,
			clock,
			workerCfg,
			a.logger.Named("worker").With(zap.Int("worker_id", i)),
		))
	}
	a.logger.Info("worker pool configured",
		zap.Int("workers", len(workers)),
		zap.Int("max_attempts", retry.MaxAttempts()),
		zap.Duration("country_timeout", workerCfg.CountryTimeout),
	)
	return dispatcher.New(workers, a.logger.Named("dispatcher")), nil
}

func setupRates(cfg config.Config) (exchange.RateProvider, error) {
	switch {
	case cfg.Exchange.RatesFile != "":
		return exchange.FileRates{Path: cfg.Exchange.RatesFile}, nil
	case cfg.Exchange.APIKey != "":
		c, err := openexchange.New(openexchange.Config{APIKey: cfg.Exchange.APIKey, URL: cfg.Exchange.APIURL})
		if err != nil {
			return nil, fmt.Errorf("exchange client init failed: %w", err)
		}
		return c, nil
	default:
		return nil, ErrNoRateSource
	}
}
