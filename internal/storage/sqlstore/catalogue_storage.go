package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
)

const timestampLayout = time.RFC3339Nano

var specialColumnNames = []string{
	"id", "store_id", "name", "brand", "size", "category", "price", "was_price", "discount_percent",
	"image_url", "product_url", "valid_from", "valid_to", "source", "scraped_at", "created_at", "updated_at",
}

var specialColumns = strings.Join(specialColumnNames, ", ")

// qualifiedColumns prefixes every column with a table alias
func qualifiedColumns(alias string, columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

// Row types carry dates and timestamps as text so one schema serves both
// SQLite and PostgreSQL.
type storeRow struct {
	models.Store
	CreatedAtText string `db:"created_at"`
}

type specialRow struct {
	models.SpecialRecord
	StoreSlugText sql.NullString `db:"store_slug"`
	ValidFromText string         `db:"valid_from"`
	ValidToText   string         `db:"valid_to"`
	ScrapedAtText string         `db:"scraped_at"`
	CreatedAtText string         `db:"created_at"`
	UpdatedAtText string         `db:"updated_at"`
}

type productRow struct {
	models.Product
	CreatedAtText string `db:"created_at"`
}

type storeProductRow struct {
	models.StoreProduct
	CreatedAtText string `db:"created_at"`
}

type priceRow struct {
	models.Price
	UpdatedAtText string `db:"updated_at"`
}

// CatalogueStorage implements interfaces.CatalogueStorage with sqlx
type CatalogueStorage struct {
	db     *SQLDB
	logger arbor.ILogger
}

// NewCatalogueStorage creates a new CatalogueStorage instance
func NewCatalogueStorage(db *SQLDB, logger arbor.ILogger) *CatalogueStorage {
	return &CatalogueStorage{db: db, logger: logger}
}

var _ interfaces.CatalogueStorage = (*CatalogueStorage)(nil)

func (s *CatalogueStorage) SeedStores(ctx context.Context, stores []models.Store) (int, error) {
	added := 0
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		now := formatTime(time.Now().UTC())
		for _, st := range stores {
			var count int
			if err := tx.GetContext(ctx, &count, tx.Rebind("SELECT COUNT(*) FROM stores WHERE id = ? OR slug = ?"), st.ID, st.Slug); err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO stores (id, name, slug, logo_url, website_url, specials_day, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`),
				st.ID, st.Name, st.Slug, st.LogoURL, st.WebsiteURL, st.SpecialsDay, now); err != nil {
				return fmt.Errorf("failed to seed store %s: %w", st.Slug, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (s *CatalogueStorage) ListStores(ctx context.Context) ([]models.Store, error) {
	var rows []storeRow
	if err := s.db.DB().SelectContext(ctx, &rows, "SELECT id, name, slug, logo_url, website_url, specials_day, created_at FROM stores ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	stores := make([]models.Store, 0, len(rows))
	for _, r := range rows {
		st := r.Store
		st.CreatedAt = parseTime(r.CreatedAtText)
		stores = append(stores, st)
	}
	return stores, nil
}

func (s *CatalogueStorage) GetStoreBySlug(ctx context.Context, slug string) (*models.Store, error) {
	var row storeRow
	err := s.db.DB().GetContext(ctx, &row, s.db.DB().Rebind("SELECT id, name, slug, logo_url, website_url, specials_day, created_at FROM stores WHERE slug = ?"), slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownStore, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	st := row.Store
	st.CreatedAt = parseTime(row.CreatedAtText)
	return &st, nil
}

func (s *CatalogueStorage) Update(ctx context.Context, fn func(tx interfaces.CatalogueTx) error) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&catalogueTx{ctx: ctx, tx: tx})
	})
}

func (s *CatalogueStorage) ListSpecials(ctx context.Context, filter interfaces.SpecialFilter) ([]models.SpecialRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.StoreID != 0 {
		where = append(where, "s.store_id = ?")
		args = append(args, filter.StoreID)
	}
	if filter.ActiveOn != nil {
		where = append(where, "s.valid_to >= ?")
		args = append(args, models.FormatDate(models.DateOf(*filter.ActiveOn)))
	}
	if filter.MissingImage {
		where = append(where, "s.image_url = ''")
	}

	query := "SELECT " + qualifiedColumns("s", specialColumnNames) + ", st.slug AS store_slug FROM specials s LEFT JOIN stores st ON st.id = s.store_id"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.store_id, s.name, s.valid_from"

	var rows []specialRow
	if err := s.db.DB().SelectContext(ctx, &rows, s.db.DB().Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list specials: %w", err)
	}

	records := make([]models.SpecialRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

func (s *CatalogueStorage) ExpireSpecials(ctx context.Context, asOf time.Time) (int, error) {
	res, err := s.db.DB().ExecContext(ctx, s.db.DB().Rebind("DELETE FROM specials WHERE valid_to < ?"), models.FormatDate(models.DateOf(asOf)))
	if err != nil {
		return 0, fmt.Errorf("failed to expire specials: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *CatalogueStorage) ListProducts(ctx context.Context) ([]models.Product, error) {
	var rows []productRow
	if err := s.db.DB().SelectContext(ctx, &rows, "SELECT id, name, name_key, brand, size, barcode, category, image_url, created_at FROM products ORDER BY name_key"); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products := make([]models.Product, 0, len(rows))
	for _, r := range rows {
		p := r.Product
		p.CreatedAt = parseTime(r.CreatedAtText)
		products = append(products, p)
	}
	return products, nil
}

func (s *CatalogueStorage) ListStoreProducts(ctx context.Context) ([]models.StoreProduct, error) {
	var rows []storeProductRow
	if err := s.db.DB().SelectContext(ctx, &rows, "SELECT id, product_id, store_id, image_url, created_at FROM store_products ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to list store products: %w", err)
	}
	storeProducts := make([]models.StoreProduct, 0, len(rows))
	for _, r := range rows {
		sp := r.StoreProduct
		sp.CreatedAt = parseTime(r.CreatedAtText)
		storeProducts = append(storeProducts, sp)
	}
	return storeProducts, nil
}

func (s *CatalogueStorage) ListPrices(ctx context.Context) ([]models.Price, error) {
	var rows []priceRow
	if err := s.db.DB().SelectContext(ctx, &rows, "SELECT id, store_product_id, price, unit_price, is_special, source, updated_at FROM prices ORDER BY store_product_id"); err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	prices := make([]models.Price, 0, len(rows))
	for _, r := range rows {
		p := r.Price
		p.UpdatedAt = parseTime(r.UpdatedAtText)
		prices = append(prices, p)
	}
	return prices, nil
}

// Close closes the underlying database
func (s *CatalogueStorage) Close() error {
	return s.db.Close()
}

func (s *CatalogueStorage) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// catalogueTx implements interfaces.CatalogueTx on one sqlx transaction
type catalogueTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

func (t *catalogueTx) GetSpecial(id string) (*models.SpecialRecord, error) {
	var row specialRow
	err := t.tx.GetContext(t.ctx, &row, t.tx.Rebind("SELECT "+specialColumns+", NULL AS store_slug FROM specials WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get special %s: %w", id, err)
	}
	rec := row.record()
	return &rec, nil
}

func (t *catalogueTx) PutSpecial(rec *models.SpecialRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("special ID is required")
	}
	_, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(`INSERT INTO specials (`+specialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, brand = excluded.brand, size = excluded.size, category = excluded.category,
			price = excluded.price, was_price = excluded.was_price, discount_percent = excluded.discount_percent,
			image_url = excluded.image_url, product_url = excluded.product_url, source = excluded.source,
			scraped_at = excluded.scraped_at, updated_at = excluded.updated_at`),
		rec.ID, rec.StoreID, rec.Name, rec.Brand, rec.Size, rec.Category, rec.Price, rec.WasPrice, rec.DiscountPercent,
		rec.ImageURL, rec.ProductURL, models.FormatDate(rec.ValidFrom), models.FormatDate(rec.ValidTo), rec.Source,
		formatTime(rec.ScrapedAt), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save special: %w", err)
	}
	return nil
}

func (t *catalogueTx) FindProductByNameKey(nameKey string) (*models.Product, error) {
	var row productRow
	err := t.tx.GetContext(t.ctx, &row, t.tx.Rebind("SELECT id, name, name_key, brand, size, barcode, category, image_url, created_at FROM products WHERE name_key = ?"), nameKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	p := row.Product
	p.CreatedAt = parseTime(row.CreatedAtText)
	return &p, nil
}

func (t *catalogueTx) PutProduct(p *models.Product) error {
	_, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(`INSERT INTO products (id, name, name_key, brand, size, barcode, category, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, brand = excluded.brand, size = excluded.size, barcode = excluded.barcode,
			category = excluded.category, image_url = excluded.image_url`),
		p.ID, p.Name, p.NameKey, p.Brand, p.Size, p.Barcode, p.Category, p.ImageURL, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (t *catalogueTx) GetStoreProduct(productID string, storeID int64) (*models.StoreProduct, error) {
	var row storeProductRow
	err := t.tx.GetContext(t.ctx, &row, t.tx.Rebind("SELECT id, product_id, store_id, image_url, created_at FROM store_products WHERE product_id = ? AND store_id = ?"), productID, storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find store product: %w", err)
	}
	sp := row.StoreProduct
	sp.CreatedAt = parseTime(row.CreatedAtText)
	return &sp, nil
}

func (t *catalogueTx) PutStoreProduct(sp *models.StoreProduct) error {
	_, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(`INSERT INTO store_products (id, product_id, store_id, image_url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET image_url = excluded.image_url`),
		sp.ID, sp.ProductID, sp.StoreID, sp.ImageURL, formatTime(sp.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save store product: %w", err)
	}
	return nil
}

func (t *catalogueTx) GetPriceByStoreProduct(storeProductID string) (*models.Price, error) {
	var row priceRow
	err := t.tx.GetContext(t.ctx, &row, t.tx.Rebind("SELECT id, store_product_id, price, unit_price, is_special, source, updated_at FROM prices WHERE store_product_id = ?"), storeProductID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find price: %w", err)
	}
	p := row.Price
	p.UpdatedAt = parseTime(row.UpdatedAtText)
	return &p, nil
}

func (t *catalogueTx) PutPrice(p *models.Price) error {
	_, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(`INSERT INTO prices (id, store_product_id, price, unit_price, is_special, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			price = excluded.price, unit_price = excluded.unit_price, is_special = excluded.is_special,
			source = excluded.source, updated_at = excluded.updated_at`),
		p.ID, p.StoreProductID, p.Price, p.UnitPrice, p.IsSpecial, p.Source, formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save price: %w", err)
	}
	return nil
}

func (r specialRow) record() models.SpecialRecord {
	rec := r.SpecialRecord
	rec.StoreSlug = r.StoreSlugText.String
	rec.ValidFrom, _ = models.ParseDate(r.ValidFromText)
	rec.ValidTo, _ = models.ParseDate(r.ValidToText)
	rec.ScrapedAt = parseTime(r.ScrapedAtText)
	rec.CreatedAt = parseTime(r.CreatedAtText)
	rec.UpdatedAt = parseTime(r.UpdatedAtText)
	return rec
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
