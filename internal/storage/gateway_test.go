package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"testing"
	"time"

	"github.com/angelmondragon/inventory-tracker/pkg/config"
	"github.com/angelmondragon/inventory-tracker/pkg/db/models"
	"github.com/angelmondragon/inventory-tracker/pkg/diskusage"
	"github.com/angelmondragon/inventory-tracker/pkg/enums"
	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/logger"
	"github.com/angelmondragon/inventory-tracker/pkg/types"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const postgresDSNEnv = "INVENTORY_TEST_POSTGRES_DSN"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var testDrivers = []enums.StorageDriver{enums.StorageDriverSQLite, enums.StorageDriverBolt, enums.StorageDriverPostgres}

func storageConfig(t *testing.T, driver enums.StorageDriver) config.StorageConfig {
	t.Helper()
	cfg := config.StorageConfig{
		Driver:        driver.String(),
		Name:          "InventoryDB",
		SchemaVersion: 1,
		OpenTimeout:   time.Second,
	}
	switch driver {
	case enums.StorageDriverPostgres:
		dsn := os.Getenv(postgresDSNEnv)
		if dsn == "" {
			t.Skipf("%s not set", postgresDSNEnv)
		}
		cfg.DSN = dsn
	default:
		cfg.Path = filepath.Join(t.TempDir(), "inventory-"+driver.String()+".db")
	}
	return cfg
}

func openGateway(t *testing.T, driver enums.StorageDriver, mutate ...func(*Options)) *Gateway {
	t.Helper()
	opts := Options{
		Storage: storageConfig(t, driver),
		Now:     func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&opts)
	}
	g, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	if driver == enums.StorageDriverPostgres {
		if err := g.ClearAllData(context.Background()); err != nil {
			t.Fatalf("reset postgres store: %v", err)
		}
	}
	return g
}

// forEachDriver runs fn against every engine that can run in this environment.
func forEachDriver(t *testing.T, fn func(t *testing.T, g *Gateway), mutate ...func(*Options)) {
	for _, driver := range testDrivers {
		driver := driver
		t.Run(driver.String(), func(t *testing.T) {
			fn(t, openGateway(t, driver, mutate...))
		})
	}
}

func mustNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if !pkgerrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func expectJSON(t *testing.T, want string, got types.JSON) {
	t.Helper()
	var w, g any
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("bad expectation %q: %v", want, err)
	}
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("stored value %q is not json: %v", got, err)
	}
	if !reflect.DeepEqual(w, g) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func sampleProduct(id string) *models.Product {
	return &models.Product{
		ID:         id,
		Name:       "Widget " + id,
		CategoryID: "tools",
		SKU:        "SKU-" + id,
		Price:      decimal.RequireFromString("19.99"),
		Quantity:   5,
		MinStock:   2,
		Attributes: types.JSON(`{"color":"red"}`),
		CreatedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func assertProductEqual(t *testing.T, want, got *models.Product) {
	t.Helper()
	if got == nil {
		t.Fatalf("expected product %s, got nil", want.ID)
	}
	if want.ID != got.ID || want.Name != got.Name || want.CategoryID != got.CategoryID || want.SKU != got.SKU {
		t.Fatalf("identity mismatch: want %+v, got %+v", want, got)
	}
	if !want.Price.Equal(got.Price) {
		t.Fatalf("price %s != %s", want.Price, got.Price)
	}
	if want.Quantity != got.Quantity || want.MinStock != got.MinStock {
		t.Fatalf("stock mismatch: want %d/%d, got %d/%d", want.Quantity, want.MinStock, got.Quantity, got.MinStock)
	}
	expectJSON(t, string(want.Attributes), got.Attributes)
	if !want.CreatedAt.Equal(got.CreatedAt) {
		t.Fatalf("createdAt %s != %s", want.CreatedAt, got.CreatedAt)
	}
}

func productIDs(products []*models.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []enums.StorageDriver{enums.StorageDriverSQLite, enums.StorageDriverBolt} {
		t.Run(driver.String(), func(t *testing.T) {
			g := openGateway(t, driver)
			mustNoError(t, g.Init(ctx))
			if v := g.SchemaVersion(); v != 1 {
				t.Fatalf("expected schema version 1, got %d", v)
			}

			mustNoError(t, g.AddProduct(ctx, sampleProduct("p1")))
			mustNoError(t, g.Init(ctx))

			products, err := g.GetAllProducts(ctx)
			mustNoError(t, err)
			if len(products) != 1 {
				t.Fatalf("second Init must not touch data, got %d products", len(products))
			}
		})
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []enums.StorageDriver{enums.StorageDriverSQLite, enums.StorageDriverBolt} {
		t.Run(driver.String(), func(t *testing.T) {
			opts := Options{Storage: storageConfig(t, driver)}
			g, err := Open(ctx, opts)
			mustNoError(t, err)
			mustNoError(t, g.SaveSetting(ctx, "theme", "dark"))
			mustNoError(t, g.Close())

			_, _, err = g.GetSetting(ctx, "theme")
			expectCode(t, err, pkgerrors.CodeNotInitialized)

			g, err = Open(ctx, opts)
			mustNoError(t, err)
			defer g.Close()
			value, ok, err := g.GetSetting(ctx, "theme")
			mustNoError(t, err)
			if !ok {
				t.Fatalf("setting lost across reopen")
			}
			expectJSON(t, `"dark"`, value)
		})
	}
}

func TestOperationsBeforeInitFailFast(t *testing.T) {
	ctx := context.Background()
	g := New(Options{Storage: storageConfig(t, enums.StorageDriverBolt)})

	expectCode(t, g.AddProduct(ctx, sampleProduct("p1")), pkgerrors.CodeNotInitialized)

	_, err := g.GetAllProducts(ctx)
	expectCode(t, err, pkgerrors.CodeNotInitialized)

	_, err = g.ExportAllData(ctx)
	expectCode(t, err, pkgerrors.CodeNotInitialized)

	if usage := g.GetStorageUsage(ctx); usage != nil {
		t.Fatalf("expected no usage before init, got %+v", usage)
	}
	mustNoError(t, g.Close())
}

func TestInitStorageUnavailable(t *testing.T) {
	ctx := context.Background()

	missingDir := config.StorageConfig{
		Driver:        "sqlite",
		Path:          filepath.Join(t.TempDir(), "missing", "inventory.db"),
		SchemaVersion: 1,
	}
	_, err := Open(ctx, Options{Storage: missingDir})
	expectCode(t, err, pkgerrors.CodeStorageUnavailable)

	unknown := config.StorageConfig{Driver: "indexeddb", Path: "x", SchemaVersion: 1}
	_, err = Open(ctx, Options{Storage: unknown})
	expectCode(t, err, pkgerrors.CodeStorageUnavailable)
}

func TestInitRejectsUnknownSchemaVersion(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []enums.StorageDriver{enums.StorageDriverSQLite, enums.StorageDriverBolt} {
		t.Run(driver.String(), func(t *testing.T) {
			cfg := storageConfig(t, driver)
			cfg.SchemaVersion = 99
			_, err := Open(ctx, Options{Storage: cfg})
			expectCode(t, err, pkgerrors.CodeSchemaUpgradeFailed)
		})
	}
}

func TestAddProductThenDuplicate(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		p := sampleProduct("p1")
		mustNoError(t, g.AddProduct(ctx, p))

		products, err := g.GetAllProducts(ctx)
		mustNoError(t, err)
		if len(products) != 1 {
			t.Fatalf("expected one product, got %d", len(products))
		}
		assertProductEqual(t, p, products[0])

		expectCode(t, g.AddProduct(ctx, p), pkgerrors.CodeDuplicateKey)

		products, err = g.GetAllProducts(ctx)
		mustNoError(t, err)
		if len(products) != 1 {
			t.Fatalf("duplicate insert changed the collection: %d products", len(products))
		}
	})
}

func TestGetAllProductsEmptyIsNotNil(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		products, err := g.GetAllProducts(ctx)
		mustNoError(t, err)
		if products == nil || len(products) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", products)
		}
	})
}

func TestUpdateProductUpserts(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		p := sampleProduct("p1")
		mustNoError(t, g.UpdateProduct(ctx, p))

		p.Name = "Renamed"
		p.Quantity = 1
		p.CategoryID = "garden"
		mustNoError(t, g.UpdateProduct(ctx, p))

		got, ok, err := g.GetProduct(ctx, "p1")
		mustNoError(t, err)
		if !ok {
			t.Fatalf("product missing after upsert")
		}
		assertProductEqual(t, p, got)
		if !got.IsLowStock() {
			t.Fatalf("expected quantity 1 to be low stock")
		}

		old, err := g.GetProductsByCategory(ctx, "tools")
		mustNoError(t, err)
		if len(old) != 0 {
			t.Fatalf("stale category lookup: %v", productIDs(old))
		}
		current, err := g.GetProductsByCategory(ctx, "garden")
		mustNoError(t, err)
		if len(current) != 1 {
			t.Fatalf("expected one garden product, got %d", len(current))
		}
	})
}

func TestProductValidation(t *testing.T) {
	ctx := context.Background()
	g := openGateway(t, enums.StorageDriverBolt)

	expectCode(t, g.AddProduct(ctx, &models.Product{ID: "p1"}), pkgerrors.CodeValidation)
	expectCode(t, g.AddProduct(ctx, nil), pkgerrors.CodeValidation)
	expectCode(t, g.DeleteProduct(ctx, ""), pkgerrors.CodeValidation)
}

func TestDeleteProductRemovesImage(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		mustNoError(t, g.AddProduct(ctx, sampleProduct("p1")))
		_, err := g.SaveImage(ctx, "p1", []byte("main-bytes"), []byte("thumb"))
		mustNoError(t, err)

		mustNoError(t, g.DeleteProduct(ctx, "p1"))

		if _, ok, err := g.GetImage(ctx, "p1"); err != nil || ok {
			t.Fatalf("image should be gone: ok=%v err=%v", ok, err)
		}
		if _, ok, err := g.GetProduct(ctx, "p1"); err != nil || ok {
			t.Fatalf("product should be gone: ok=%v err=%v", ok, err)
		}

		// deleting again, and deleting something that never existed, is fine
		mustNoError(t, g.DeleteProduct(ctx, "p1"))
		mustNoError(t, g.DeleteProduct(ctx, "never"))
	})
}

func TestSecondaryLookups(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		a := sampleProduct("a")
		b := sampleProduct("b")
		b.Name = a.Name
		b.CategoryID = "garden"
		c := sampleProduct("c")
		for _, p := range []*models.Product{a, b, c} {
			mustNoError(t, g.AddProduct(ctx, p))
		}

		byName, err := g.FindProductsByName(ctx, a.Name)
		mustNoError(t, err)
		if got := productIDs(byName); !reflect.DeepEqual(got, []string{"a", "b"}) {
			t.Fatalf("name lookup returned %v", got)
		}

		tools, err := g.GetProductsByCategory(ctx, "tools")
		mustNoError(t, err)
		if got := productIDs(tools); !reflect.DeepEqual(got, []string{"a", "c"}) {
			t.Fatalf("category lookup returned %v", got)
		}

		none, err := g.GetProductsByCategory(ctx, "nothing")
		mustNoError(t, err)
		if none == nil || len(none) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", none)
		}
	})
}

func TestCategoryOperations(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		cat := &models.Category{ID: "tools", Name: "Tools", Color: "#ff0000"}
		mustNoError(t, g.AddCategory(ctx, cat))
		expectCode(t, g.AddCategory(ctx, cat), pkgerrors.CodeDuplicateKey)

		mustNoError(t, g.AddProduct(ctx, sampleProduct("p1")))

		categories, err := g.GetAllCategories(ctx)
		mustNoError(t, err)
		if len(categories) != 1 || *categories[0] != *cat {
			t.Fatalf("unexpected categories %+v", categories)
		}

		mustNoError(t, g.DeleteCategory(ctx, "tools"))
		if _, ok, err := g.GetCategory(ctx, "tools"); err != nil || ok {
			t.Fatalf("category should be gone: ok=%v err=%v", ok, err)
		}

		// products are not cascaded
		products, err := g.GetProductsByCategory(ctx, "tools")
		mustNoError(t, err)
		if len(products) != 1 {
			t.Fatalf("expected product to survive category delete, got %d", len(products))
		}
	})
}

func TestSaveImageOverwrites(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		first, err := g.SaveImage(ctx, "p1", []byte("first"), []byte("thumb"))
		mustNoError(t, err)
		if first.ID != "product_p1" {
			t.Fatalf("unexpected image key %q", first.ID)
		}

		_, err = g.SaveImage(ctx, "p1", []byte("second"), nil)
		mustNoError(t, err)

		img, ok, err := g.GetImage(ctx, "p1")
		mustNoError(t, err)
		if !ok {
			t.Fatalf("image not found")
		}
		if img.ID != "product_p1" || img.ProductID != "p1" {
			t.Fatalf("unexpected identity %s/%s", img.ID, img.ProductID)
		}
		if !bytes.Equal(img.Main, []byte("second")) {
			t.Fatalf("expected overwritten main blob, got %q", img.Main)
		}
		if img.HasThumbnail() {
			t.Fatalf("thumbnail should be cleared by the overwrite")
		}
		if img.MimeType != "text/plain; charset=utf-8" {
			t.Fatalf("unexpected mime type %q", img.MimeType)
		}

		if _, ok, err := g.GetImage(ctx, "missing"); err != nil || ok {
			t.Fatalf("missing image: ok=%v err=%v", ok, err)
		}

		_, err = g.SaveImage(ctx, "p2", nil, nil)
		expectCode(t, err, pkgerrors.CodeValidation)
	})
}

func TestSaveImageStampsFreshTimestamp(t *testing.T) {
	ctx := context.Background()
	for _, driver := range testDrivers {
		driver := driver
		t.Run(driver.String(), func(t *testing.T) {
			now := fixedNow
			g := openGateway(t, driver, func(o *Options) {
				o.Now = func() time.Time { return now }
			})

			first, err := g.SaveImage(ctx, "p1", []byte("first"), nil)
			mustNoError(t, err)
			if !first.CreatedAt.Equal(fixedNow) {
				t.Fatalf("first save stamped %s", first.CreatedAt)
			}

			now = fixedNow.Add(time.Hour)
			_, err = g.SaveImage(ctx, "p1", []byte("second"), nil)
			mustNoError(t, err)

			img, ok, err := g.GetImage(ctx, "p1")
			mustNoError(t, err)
			if !ok {
				t.Fatalf("image not found")
			}
			if !img.CreatedAt.Equal(now) {
				t.Fatalf("overwrite kept createdAt %s, want %s", img.CreatedAt, now)
			}
		})
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		mustNoError(t, g.SaveSetting(ctx, "theme", "dark"))
		mustNoError(t, g.SaveSetting(ctx, "lowStockAlert", map[string]any{"enabled": true, "threshold": 3}))

		value, ok, err := g.GetSetting(ctx, "theme")
		mustNoError(t, err)
		if !ok {
			t.Fatalf("theme not found")
		}
		var theme string
		mustNoError(t, value.Decode(&theme))
		if theme != "dark" {
			t.Fatalf("expected dark, got %q", theme)
		}

		if _, ok, err := g.GetSetting(ctx, "missing"); err != nil || ok {
			t.Fatalf("missing setting: ok=%v err=%v", ok, err)
		}

		mustNoError(t, g.SaveSetting(ctx, "theme", "light"))
		all, err := g.GetAllSettings(ctx)
		mustNoError(t, err)
		if len(all) != 2 {
			t.Fatalf("expected two settings, got %v", all)
		}
		expectJSON(t, `"light"`, all["theme"])
		expectJSON(t, `{"enabled":true,"threshold":3}`, all["lowStockAlert"])

		expectCode(t, g.SaveSetting(ctx, "", "x"), pkgerrors.CodeValidation)
	})
}

func TestClearAllData(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		mustNoError(t, g.AddProduct(ctx, sampleProduct("p1")))
		mustNoError(t, g.AddCategory(ctx, &models.Category{ID: "c1", Name: "C"}))
		_, err := g.SaveImage(ctx, "p1", []byte("img"), nil)
		mustNoError(t, err)
		mustNoError(t, g.SaveSetting(ctx, "theme", "dark"))

		mustNoError(t, g.ClearAllData(ctx))

		products, err := g.GetAllProducts(ctx)
		mustNoError(t, err)
		categories, err := g.GetAllCategories(ctx)
		mustNoError(t, err)
		settings, err := g.GetAllSettings(ctx)
		mustNoError(t, err)
		if len(products) != 0 || len(categories) != 0 || len(settings) != 0 {
			t.Fatalf("expected empty store, got %d products %d categories %d settings", len(products), len(categories), len(settings))
		}
		if _, ok, err := g.GetImage(ctx, "p1"); err != nil || ok {
			t.Fatalf("image survived clear: ok=%v err=%v", ok, err)
		}

		// lookups are emptied with their collection
		byCategory, err := g.GetProductsByCategory(ctx, "tools")
		mustNoError(t, err)
		if len(byCategory) != 0 {
			t.Fatalf("category lookup survived clear: %v", productIDs(byCategory))
		}
	})
}

func TestUnitOfWorkIsAtomic(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		mustNoError(t, g.AddProduct(ctx, sampleProduct("p1")))
		engine, err := g.current()
		mustNoError(t, err)

		unit := NewUnit().
			Insert(Categories, &models.Category{ID: "c9", Name: "Nine"}).
			Insert(Products, sampleProduct("p1"))
		expectCode(t, g.apply(ctx, engine, unit), pkgerrors.CodeDuplicateKey)

		if _, ok, err := g.GetCategory(ctx, "c9"); err != nil || ok {
			t.Fatalf("first mutation must be rolled back: ok=%v err=%v", ok, err)
		}
	})
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	forEachDriver(t, func(t *testing.T, g *Gateway) {
		p1, p2 := sampleProduct("p1"), sampleProduct("p2")
		mustNoError(t, g.AddProduct(ctx, p1))
		mustNoError(t, g.AddProduct(ctx, p2))
		mustNoError(t, g.AddCategory(ctx, &models.Category{ID: "tools", Name: "Tools"}))
		mustNoError(t, g.SaveSetting(ctx, "theme", "dark"))
		_, err := g.SaveImage(ctx, "p1", []byte("img"), nil)
		mustNoError(t, err)

		snap, err := g.ExportAllData(ctx)
		mustNoError(t, err)
		if len(snap.Products) != 2 || len(snap.Categories) != 1 || len(snap.Settings) != 1 {
			t.Fatalf("unexpected snapshot sizes %d/%d/%d", len(snap.Products), len(snap.Categories), len(snap.Settings))
		}
		if snap.Version != 1 {
			t.Fatalf("expected version 1, got %d", snap.Version)
		}
		if !snap.ExportDate.Equal(fixedNow) {
			t.Fatalf("unexpected export date %s", snap.ExportDate)
		}

		mustNoError(t, g.ClearAllData(ctx))
		mustNoError(t, g.ImportAllData(ctx, snap))

		products, err := g.GetAllProducts(ctx)
		mustNoError(t, err)
		if len(products) != 2 {
			t.Fatalf("expected two products after import, got %d", len(products))
		}
		byID := map[string]*models.Product{}
		for _, p := range products {
			byID[p.ID] = p
		}
		assertProductEqual(t, p1, byID["p1"])
		assertProductEqual(t, p2, byID["p2"])

		settings, err := g.GetAllSettings(ctx)
		mustNoError(t, err)
		expectJSON(t, `"dark"`, settings["theme"])

		// images are not part of the snapshot
		if _, ok, err := g.GetImage(ctx, "p1"); err != nil || ok {
			t.Fatalf("image restored from snapshot: ok=%v err=%v", ok, err)
		}
	})
}

func TestImportRejectsInvalidSnapshot(t *testing.T) {
	ctx := context.Background()
	g := openGateway(t, enums.StorageDriverSQLite)

	snap := &Snapshot{
		Products:   []*models.Product{sampleProduct("ok"), {ID: "bad"}},
		Categories: []*models.Category{{Name: "no id"}},
		Version:    1,
	}
	expectCode(t, g.ImportAllData(ctx, snap), pkgerrors.CodeValidation)

	products, err := g.GetAllProducts(ctx)
	mustNoError(t, err)
	if len(products) != 0 {
		t.Fatalf("nothing is written when any record is invalid, got %d", len(products))
	}

	expectCode(t, g.ImportAllData(ctx, &Snapshot{Version: 7}), pkgerrors.CodeValidation)
}

func TestFailedOperationLogsErrorChain(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	g := openGateway(t, enums.StorageDriverBolt, func(o *Options) {
		o.Logger = logger.New(logger.Options{ServiceName: "test", Output: buf})
	})

	mustNoError(t, g.AddProduct(ctx, sampleProduct("p1")))
	buf.Reset()
	expectCode(t, g.AddProduct(ctx, sampleProduct("p1")), pkgerrors.CodeDuplicateKey)

	out := buf.Bytes()
	for _, want := range []string{`"level":"error"`, `"operation":"add_product"`, `"code":"DUPLICATE_KEY"`, `"chain":[`} {
		if !bytes.Contains(out, []byte(want)) {
			t.Fatalf("expected %s in log entry; entry=%s", want, out)
		}
	}
}

func TestFailureFieldsIncludePostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "products_pkey", TableName: "products", Detail: "Key (id)=(p1) already exists."}
	code, fields := failureFields("add_product", pkgerrors.Wrap(pkgerrors.CodeDuplicateKey, pgErr, "insert product"))

	if code != pkgerrors.CodeDuplicateKey {
		t.Fatalf("expected duplicate code, got %s", code)
	}
	if fields["pg_constraint"] != "products_pkey" || fields["pg_table"] != "products" || fields["pg_code"] != "23505" {
		t.Fatalf("postgres fields missing: %v", fields)
	}

	code, fields = failureFields("list", errors.New("disk on fire"))
	if code != pkgerrors.CodeTransactionFailed {
		t.Fatalf("untyped errors count as transaction failures, got %s", code)
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("plain errors carry no postgres fields: %v", fields)
	}
}

func TestGetStorageUsage(t *testing.T) {
	ctx := context.Background()
	percentage := regexp.MustCompile(`^\d+\.\d{2}$`)
	for _, driver := range []enums.StorageDriver{enums.StorageDriverSQLite, enums.StorageDriverBolt} {
		t.Run(driver.String(), func(t *testing.T) {
			g := openGateway(t, driver, func(o *Options) { o.Storage.QuotaBytes = 1 << 30 })
			usage := g.GetStorageUsage(ctx)
			if usage == nil {
				t.Fatalf("expected usage")
			}
			if usage.Used <= 0 {
				t.Fatalf("expected positive usage, got %d", usage.Used)
			}
			if usage.Available != 1<<30 {
				t.Fatalf("expected configured quota, got %d", usage.Available)
			}
			if !percentage.MatchString(usage.Percentage) {
				t.Fatalf("unexpected percentage %q", usage.Percentage)
			}
		})
	}
}

func TestGetStorageUsageProbesFilesystem(t *testing.T) {
	ctx := context.Background()
	g := openGateway(t, enums.StorageDriverBolt, func(o *Options) {
		o.Quota = func(string) (diskusage.Stats, error) {
			return diskusage.Stats{Total: 1 << 40, Available: 1 << 20}, nil
		}
	})
	usage := g.GetStorageUsage(ctx)
	if usage == nil {
		t.Fatalf("expected usage")
	}
	if usage.Available != usage.Used+(1<<20) {
		t.Fatalf("expected used plus free space, got %+v", usage)
	}
}

func TestGetStorageUsageUnavailableWarns(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	g := openGateway(t, enums.StorageDriverBolt, func(o *Options) {
		o.Logger = logger.New(logger.Options{ServiceName: "test", Output: buf})
		o.Quota = func(string) (diskusage.Stats, error) {
			return diskusage.Stats{}, errors.New("statfs: not supported")
		}
	})
	buf.Reset()

	if usage := g.GetStorageUsage(ctx); usage != nil {
		t.Fatalf("expected no usage, got %+v", usage)
	}
	out := buf.Bytes()
	if !bytes.Contains(out, []byte(`"level":"warn"`)) || !bytes.Contains(out, []byte("statfs: not supported")) {
		t.Fatalf("expected a warning naming the cause; entry=%s", out)
	}
	if bytes.Contains(out, []byte(`"level":"error"`)) {
		t.Fatalf("usage failures must stay out of the error stream; entry=%s", out)
	}
}
