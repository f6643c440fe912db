package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/specials/internal/app"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/catalogue"
	"github.com/ternarybob/specials/internal/services/importer"
)

// runJob executes a job id, or a source name mapped to its scrape job, once
func runJob(ctx context.Context, application *app.App, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	store := fs.String("store", "", "Restrict the run to one store slug")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run expects exactly one job id or source name")
	}
	target := fs.Arg(0)

	var runs []*models.JobRun
	run, err := application.Triggers.TriggerJob(ctx, target, *store)
	switch {
	case err == nil:
		runs = append(runs, run)
	case errors.Is(err, models.ErrJobNotFound):
		runs, err = application.Triggers.TriggerSource(ctx, target, *store)
		if err != nil {
			return err
		}
	default:
		return err
	}

	if err := printJSON(runs); err != nil {
		return err
	}

	for _, r := range runs {
		if r.Status == models.RunStatusFailed {
			return fmt.Errorf("job %s failed: %s", r.JobID, r.Error)
		}
	}
	return nil
}

func runImport(ctx context.Context, application *app.App, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "File to import")
	kind := fs.String("kind", "specials", "Record kind: specials or everyday")
	format := fs.String("format", "", "csv, json or yaml (default: from the file extension)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("import requires -file")
	}

	f := importer.Format(*format)
	if f == "" {
		detected, err := importer.DetectFormat(*path)
		if err != nil {
			return err
		}
		f = detected
	}

	file, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", *path, err)
	}
	defer file.Close()

	var result importer.Result
	switch *kind {
	case "specials":
		result, err = application.Importer.ImportSpecials(ctx, file, f)
	case "everyday":
		result, err = application.Importer.ImportEveryday(ctx, file, f)
	default:
		return fmt.Errorf("unknown import kind %q", *kind)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runExpire(ctx context.Context, application *app.App, args []string) error {
	removed, err := application.Catalogue.ExpireToday(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"expired_cleared": removed})
}

func runBackfill(ctx context.Context, application *app.App, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report what would change without writing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := application.Catalogue.Backfill(ctx, *dryRun)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

type statusReport struct {
	Scheduler interfaces.SchedulerStatus `json:"scheduler"`
	Catalogue []catalogue.StoreSummary   `json:"catalogue"`
}

func runStatus(ctx context.Context, application *app.App, args []string) error {
	summary, err := application.Catalogue.Summary(ctx)
	if err != nil {
		return err
	}
	return printJSON(statusReport{
		Scheduler: application.Status(),
		Catalogue: summary,
	})
}

func runSeed(ctx context.Context, application *app.App, args []string) error {
	inserted, err := application.Catalogue.SeedStores(ctx, application.Config.StoreModels())
	if err != nil {
		return err
	}
	stores, err := application.Catalogue.Stores(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"inserted": inserted,
		"stores":   stores,
	})
}

func runSources(ctx context.Context, application *app.App, args []string) error {
	fs := flag.NewFlagSet("sources", flag.ContinueOnError)
	store := fs.String("store", "", "Store slug")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *store == "" {
		return fmt.Errorf("sources requires -store")
	}

	refs, err := application.Triggers.ListCatalogues(ctx, *store)
	if err != nil {
		return err
	}
	return printJSON(refs)
}
