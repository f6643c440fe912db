package catalogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/common"
	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
	"github.com/ternarybob/specials/internal/services/normalizer"
	"github.com/ternarybob/specials/internal/storage/sqlstore"
)

var fixedNow = time.Date(2026, 10, 14, 5, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, interfaces.CatalogueStorage) {
	t.Helper()

	db, err := sqlstore.NewSQLDB(arbor.NewLogger(), sqlstore.DriverSQLite, &common.SQLConfig{DSN: ":memory:"})
	require.NoError(t, err)
	storage := sqlstore.NewCatalogueStorage(db, arbor.NewLogger())
	t.Cleanup(func() { _ = storage.Close() })

	norm := normalizer.New(normalizer.WithClock(func() time.Time { return fixedNow }), normalizer.WithLocation(time.UTC))
	svc := NewService(storage, norm, arbor.NewLogger())
	svc.now = func() time.Time { return fixedNow }

	_, err = svc.SeedStores(context.Background(), models.DefaultStores())
	require.NoError(t, err)
	return svc, storage
}

func normalized(t *testing.T, svc *Service, slug string, items ...models.RawItem) []models.SpecialRecord {
	t.Helper()
	store, err := svc.Store(context.Background(), slug)
	require.NoError(t, err)
	return svc.Normalizer().NormalizeAll(items, store)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	records := normalized(t, svc, "coles",
		models.RawItem{Name: "Tim Tam Original 200g", Price: 2.75},
		models.RawItem{Name: "Milo 460g", Price: 6.5},
	)

	first, err := svc.Reconcile(ctx, 2, records)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := svc.Reconcile(ctx, 2, records)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 2, second.Unchanged)

	stored, err := storage.ListSpecials(ctx, interfaces.SpecialFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestReconcile_UnchangedRefreshesScrapedAt(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	records := normalized(t, svc, "coles", models.RawItem{Name: "Arnott's Tim Tam Original 200g", Price: 3})
	_, err := svc.Reconcile(ctx, 2, records)
	require.NoError(t, err)

	later := fixedNow.Add(6 * time.Hour)
	rescraped := make([]models.SpecialRecord, len(records))
	copy(rescraped, records)
	rescraped[0].ScrapedAt = later

	result, err := svc.Reconcile(ctx, 2, rescraped)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 0, result.Updated, "a fresher scrape alone is not an update")

	stored, err := storage.ListSpecials(ctx, interfaces.SpecialFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, later.Equal(stored[0].ScrapedAt), "scraped_at follows the latest scrape")
	assert.True(t, fixedNow.Equal(stored[0].UpdatedAt), "updated_at only moves on content changes")

	older := records
	older[0].ScrapedAt = fixedNow.Add(-time.Hour)
	_, err = svc.Reconcile(ctx, 2, older)
	require.NoError(t, err)
	stored, err = storage.ListSpecials(ctx, interfaces.SpecialFilter{})
	require.NoError(t, err)
	assert.True(t, later.Equal(stored[0].ScrapedAt), "an older scrape never moves scraped_at back")
}

func TestReconcile_UpdatesChangedContent(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, 2, normalized(t, svc, "coles", models.RawItem{Name: "Milo 460g", Price: 6.5}))
	require.NoError(t, err)

	result, err := svc.Reconcile(ctx, 2, normalized(t, svc, "coles", models.RawItem{Name: "MILO 460g", Price: 6.0}))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated, "name case does not change identity")

	stored, err := storage.ListSpecials(ctx, interfaces.SpecialFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 6.0, stored[0].Price)
	assert.Equal(t, "MILO 460g", stored[0].Name)
}

func TestReconcile_DifferentWindowIsNewRow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	from := time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)
	records := normalized(t, svc, "coles",
		models.RawItem{Name: "Milo 460g", Price: 6.5},
		models.RawItem{Name: "Milo 460g", Price: 6.5, ValidFrom: &from},
	)

	result, err := svc.Reconcile(ctx, 2, records)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
}

func TestReconcile_SkipsForeignAndInvalidRecords(t *testing.T) {
	svc, _ := newTestService(t)

	records := normalized(t, svc, "coles", models.RawItem{Name: "Milo 460g", Price: 6.5})
	records = append(records, normalized(t, svc, "aldi", models.RawItem{Name: "Belmont Biscuits", Price: 1.2})...)
	records = append(records, normalized(t, svc, "coles", models.RawItem{Name: "   ", Price: 1})...)

	result, err := svc.Reconcile(context.Background(), 2, records)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped)
}

func TestReconcile_CollapsesDuplicateKeys(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	records := normalized(t, svc, "coles",
		models.RawItem{Name: "Milo 460g", Price: 6.5},
		models.RawItem{Name: "milo 460g", Price: 6.0},
	)

	result, err := svc.Reconcile(ctx, 2, records)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Duplicates)

	stored, err := storage.ListSpecials(ctx, interfaces.SpecialFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 6.0, stored[0].Price, "last record in the batch wins")
}

func TestReconcileBatch_UnknownStoreIsSkipped(t *testing.T) {
	svc, _ := newTestService(t)

	records := normalized(t, svc, "coles",
		models.RawItem{Name: "Milo 460g", Price: 6.5},
		models.RawItem{Name: "Tim Tam Original 200g", Price: 2.75},
	)
	records = append(records, normalized(t, svc, "woolworths", models.RawItem{Name: "Arnott's Shapes", Price: 2.0})...)
	records = append(records, models.SpecialRecord{Name: "Mystery Item", StoreSlug: "foodland", Price: 1,
		ValidFrom: models.DateOf(fixedNow), ValidTo: models.DateOf(fixedNow)})

	result, err := svc.ReconcileBatch(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

type failingStorage struct {
	interfaces.CatalogueStorage
	err error
}

func (f *failingStorage) Update(ctx context.Context, fn func(tx interfaces.CatalogueTx) error) error {
	return f.CatalogueStorage.Update(ctx, func(tx interfaces.CatalogueTx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return f.err
	})
}

func TestReconcile_StorageFailureAbortsWholeBatch(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	boom := errors.New("disk full")
	svc.storage = &failingStorage{CatalogueStorage: storage, err: boom}

	_, err := svc.Reconcile(ctx, 2, normalized(t, svc, "coles",
		models.RawItem{Name: "Milo 460g", Price: 6.5},
		models.RawItem{Name: "Tim Tam Original 200g", Price: 2.75},
	))
	assert.ErrorIs(t, err, boom)

	stored, err := storage.ListSpecials(ctx, interfaces.SpecialFilter{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestExpireSpecials_BoundaryInclusive(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	day := func(d int) *time.Time {
		v := time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	_, err := svc.Reconcile(ctx, 1, normalized(t, svc, "woolworths",
		models.RawItem{Name: "Ended Yesterday", Price: 1, ValidFrom: day(7), ValidTo: day(13)},
		models.RawItem{Name: "Ends Today", Price: 1, ValidFrom: day(8), ValidTo: day(14)},
		models.RawItem{Name: "Ends Next Week", Price: 1},
	))
	require.NoError(t, err)

	deleted, err := svc.ExpireToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	stored, err := storage.ListSpecials(ctx, interfaces.SpecialFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestBackfill(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	records := normalized(t, svc, "iga",
		models.RawItem{Name: "Heinz Ketchup 500mL", Price: 4},
		models.RawItem{Name: "fresh bananas", Price: 1},
	)
	for i := range records {
		records[i].Brand = ""
		records[i].Size = ""
	}
	_, err := svc.Reconcile(ctx, 4, records)
	require.NoError(t, err)

	stats, err := svc.Backfill(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.BrandExtracted)
	assert.Equal(t, 1, stats.BrandNotFound)
	assert.Equal(t, 1, stats.SizeExtracted)
	require.Len(t, stats.TopBrands, 1)
	assert.Equal(t, "Heinz", stats.TopBrands[0].Brand)

	stored, err := storage.ListSpecials(ctx, interfaces.SpecialFilter{})
	require.NoError(t, err)
	for _, rec := range stored {
		assert.Empty(t, rec.Brand, "dry run writes nothing")
	}

	_, err = svc.Backfill(ctx, false)
	require.NoError(t, err)

	stats, err = svc.Backfill(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BrandAlreadySet)
	assert.Equal(t, 1, stats.SizeAlreadySet)
}

func TestPatchImagesAndSummary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	records := normalized(t, svc, "iga",
		models.RawItem{Name: "Heinz Ketchup 500mL", Price: 4},
		models.RawItem{Name: "Bega Peanut Butter 470g", Price: 5},
	)
	_, err := svc.Reconcile(ctx, 4, records)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	var iga StoreSummary
	for _, s := range summary {
		if s.Slug == "iga" {
			iga = s
		}
	}
	assert.Equal(t, 2, iga.Active)
	assert.Equal(t, 2, iga.MissingImages)

	patched, err := svc.PatchImages(ctx, map[string]string{
		records[0].ID: "https://img.example/heinz.jpg",
		"gone":        "https://img.example/gone.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, patched)

	summary, err = svc.Summary(ctx)
	require.NoError(t, err)
	for _, s := range summary {
		if s.Slug == "iga" {
			assert.Equal(t, 1, s.MissingImages)
		}
	}
}
