package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/httpclient"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/catalogue"
	"github.com/ternarybob/specials/internal/services/imagerepair"
	"github.com/ternarybob/specials/internal/services/importer"
	"github.com/ternarybob/specials/internal/services/ingest"
	"github.com/ternarybob/specials/internal/services/llm"
	"github.com/ternarybob/specials/internal/services/normalizer"
	"github.com/ternarybob/specials/internal/services/runtracker"
	"github.com/ternarybob/specials/internal/services/scheduler"
	"github.com/ternarybob/specials/internal/services/sources"
	"github.com/ternarybob/specials/internal/services/sources/aiextract"
	"github.com/ternarybob/specials/internal/services/sources/cataloguefeed"
	"github.com/ternarybob/specials/internal/services/sources/freshfoods"
	"github.com/ternarybob/specials/internal/services/sources/salefinder"
	"github.com/ternarybob/specials/internal/storage"
)

const defaultRenderWait = 3 * time.Second

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage    interfaces.CatalogueStorage
	HTTPClient *httpclient.Client
	LLMService interfaces.LLMService // nil when no provider key is configured

	// Ingestion pipeline
	Registry    *sources.Registry
	Normalizer  *normalizer.Normalizer
	Catalogue   *catalogue.Service
	ImageRepair *imagerepair.Service
	Ingest      *ingest.Service
	Importer    *importer.Service

	// Scheduling
	Tracker          *runtracker.Tracker
	SchedulerService interfaces.SchedulerService
	Triggers         *ingest.Triggers
}

// New wires the application: storage -> sources -> services -> scheduler.
// Stores from the config seed list are inserted when missing. The scheduler
// is registered but not started.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initSources(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to initialize sources: %w", err)
	}

	if err := app.initScheduler(); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Str("timezone", cfg.Location().String()).
		Str("sources", fmt.Sprintf("%v", app.Registry.Names())).
		Bool("llm", app.LLMService != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens the catalogue store and seeds missing stores
func (a *App) initStorage(ctx context.Context) error {
	store, err := storage.NewCatalogueStorage(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.Storage = store

	a.Normalizer = normalizer.New(normalizer.WithLocation(a.Config.Location()))
	a.Catalogue = catalogue.NewService(a.Storage, a.Normalizer, a.Logger)

	seeded, err := a.Catalogue.SeedStores(ctx, a.Config.StoreModels())
	if err != nil {
		return fmt.Errorf("seed stores: %w", err)
	}
	if seeded > 0 {
		a.Logger.Info().Int("stores", seeded).Msg("Stores seeded")
	}
	return nil
}

// initSources registers every source adapter. The AI extraction source is
// registered even without an LLM so its job reports not configured.
func (a *App) initSources(ctx context.Context) error {
	a.HTTPClient = httpclient.New(&a.Config.HTTP, a.Logger)
	a.Registry = sources.NewRegistry()

	srcCfg := &a.Config.Sources
	if srcCfg.AIExtract.Enabled {
		service, err := llm.NewLLMService(ctx, a.Config, srcCfg.AIExtract.Provider, a.Logger)
		switch {
		case err == nil:
			a.LLMService = service
		case errors.Is(err, models.ErrNotConfigured):
			a.Logger.Warn().Err(err).Msg("AI extraction has no LLM credentials, source will be skipped")
		default:
			return err
		}
	}

	var fetcher aiextract.PageFetcher = aiextract.NewHTTPFetcher(a.HTTPClient)
	if srcCfg.AIExtract.RenderJavaScript {
		fetcher = aiextract.NewChromeRenderer(
			a.Config.HTTP.UserAgent,
			common.ParseDurationOr(srcCfg.AIExtract.RenderWait, defaultRenderWait),
			common.ParseDurationOr(a.Config.Scheduler.StoreTimeout, 2*time.Minute),
			a.Logger,
		)
	}

	adapters := []interfaces.SourceAdapter{
		aiextract.NewAdapter(&srcCfg.AIExtract, a.LLMService, fetcher, a.Logger),
		salefinder.NewAdapter(&srcCfg.SaleFinder, a.HTTPClient, a.Logger),
		cataloguefeed.NewAdapter(&srcCfg.Catalogue, a.HTTPClient, a.Logger),
	}
	for _, adapter := range adapters {
		if err := a.Registry.Register(adapter); err != nil {
			return err
		}
	}
	if err := a.Registry.RegisterEveryday(freshfoods.NewSource(&srcCfg.FreshFoods, a.HTTPClient, a.Logger)); err != nil {
		return err
	}

	a.ImageRepair = imagerepair.NewService(a.Catalogue, a.HTTPClient, &srcCfg.ImageRepair, a.Logger)
	a.Ingest = ingest.NewService(a.Catalogue, a.Registry, a.ImageRepair, &a.Config.Scheduler, a.Logger)
	a.Importer = importer.NewService(a.Catalogue, a.Logger)
	return nil
}

// initScheduler registers the standing jobs
func (a *App) initScheduler() error {
	a.Tracker = runtracker.New()
	sched := scheduler.NewService(a.Tracker, a.Config.Location(), a.Logger)

	for _, def := range a.Ingest.Jobs(a.Config.Scheduler.Schedules) {
		if err := sched.RegisterJob(def); err != nil {
			return fmt.Errorf("register %s: %w", def.ID, err)
		}
	}

	a.SchedulerService = sched
	a.Triggers = ingest.NewTriggers(sched, a.Registry)
	return nil
}

// StartScheduler begins firing cron triggers
func (a *App) StartScheduler() error {
	return a.SchedulerService.Start()
}

// Status returns the scheduler and run tracker snapshot
func (a *App) Status() interfaces.SchedulerStatus {
	return a.SchedulerService.Status()
}

// Close closes all application resources. A job in flight is not interrupted.
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
