package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/inventory-tracker/internal/imaging"
	"github.com/angelmondragon/inventory-tracker/internal/storage"
	"github.com/angelmondragon/inventory-tracker/pkg/db/models"
	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/pagination"
	"github.com/angelmondragon/inventory-tracker/pkg/types"
	"github.com/angelmondragon/inventory-tracker/pkg/validate"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type cmdInit struct{}

func (c *cmdInit) Run(a *app) error {
	fmt.Fprintf(a.out, "%s ready (%s, schema version %d)\n", a.cfg.Storage.Name, a.cfg.Storage.DriverKind(), a.gw.SchemaVersion())
	return nil
}

type cmdUsage struct{}

func (c *cmdUsage) Run(a *app) error {
	usage := a.gw.GetStorageUsage(a.ctx)
	if usage == nil {
		fmt.Fprintln(a.out, "storage usage unavailable")
		return nil
	}
	return a.printJSON(usage)
}

type cmdExport struct {
	Out string `short:"o" help:"Write the snapshot to this file instead of stdout."`
}

func (c *cmdExport) Run(a *app) error {
	snap, err := a.gw.ExportAllData(a.ctx)
	if err != nil {
		return err
	}
	if c.Out == "" {
		return a.printJSON(snap)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.Out, append(data, '\n'), 0o644)
}

type cmdImport struct {
	File string `arg:"" type:"existingfile" help:"Snapshot produced by export."`
}

func (c *cmdImport) Run(a *app) error {
	f, err := os.Open(c.File)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRead, err, "open snapshot")
	}
	defer f.Close()

	var snap storage.Snapshot
	if err := validate.DecodeJSON(f, &snap); err != nil {
		return err
	}
	if err := a.gw.ImportAllData(a.ctx, &snap); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "imported %d products, %d categories, %d settings\n", len(snap.Products), len(snap.Categories), len(snap.Settings))
	return nil
}

type cmdClear struct {
	Yes bool `help:"Confirm deleting all data."`
}

func (c *cmdClear) Run(a *app) error {
	if !c.Yes {
		return fmt.Errorf("refusing to clear without --yes")
	}
	if err := a.gw.ClearAllData(a.ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "all data cleared")
	return nil
}

type cmdProduct struct {
	Add    cmdProductAdd    `cmd:"" help:"Add a new product."`
	Update cmdProductUpdate `cmd:"" help:"Create or overwrite a product."`
	List   cmdProductList   `cmd:"" help:"List products."`
	Get    cmdProductGet    `cmd:"" help:"Show one product."`
	Delete cmdProductDelete `cmd:"" help:"Delete a product and its photo."`
}

// ProductFields are the editable product flags shared by add and update.
type ProductFields struct {
	Name        string            `short:"n" help:"Display name."`
	Category    string            `short:"c" help:"Category id."`
	SKU         string            `name:"sku" help:"Stock keeping unit."`
	Description string            `help:"Free text description."`
	Price       string            `default:"0" help:"Unit price."`
	Quantity    int               `short:"q" help:"Units in stock."`
	MinStock    int               `help:"Low stock threshold."`
	Attr        map[string]string `help:"Extra attributes as key=value."`
}

func (f ProductFields) apply(p *models.Product) error {
	price, err := decimal.NewFromString(f.Price)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
	}
	p.Name = f.Name
	p.CategoryID = f.Category
	p.SKU = f.SKU
	p.Description = f.Description
	p.Price = price
	p.Quantity = f.Quantity
	p.MinStock = f.MinStock
	p.Attributes = nil
	if len(f.Attr) > 0 {
		if p.Attributes, err = types.MarshalJSONValue(f.Attr); err != nil {
			return err
		}
	}
	return nil
}

type cmdProductAdd struct {
	ID string `help:"Product id. Generated when omitted."`
	ProductFields `embed:""`
}

func (c *cmdProductAdd) Run(a *app) error {
	now := time.Now().UTC()
	p := &models.Product{ID: c.ID, CreatedAt: now, UpdatedAt: now}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := c.apply(p); err != nil {
		return err
	}
	if err := a.gw.AddProduct(a.ctx, p); err != nil {
		return err
	}
	return a.printJSON(p)
}

type cmdProductUpdate struct {
	ID string `arg:"" help:"Product id."`
	ProductFields `embed:""`
}

func (c *cmdProductUpdate) Run(a *app) error {
	now := time.Now().UTC()
	p := &models.Product{ID: c.ID, CreatedAt: now}
	existing, ok, err := a.gw.GetProduct(a.ctx, c.ID)
	if err != nil {
		return err
	}
	if ok {
		p.CreatedAt = existing.CreatedAt
	}
	p.UpdatedAt = now
	if err := c.apply(p); err != nil {
		return err
	}
	if err := a.gw.UpdateProduct(a.ctx, p); err != nil {
		return err
	}
	return a.printJSON(p)
}

type cmdProductList struct {
	Category string `short:"c" help:"Only products in this category."`
	Name     string `short:"n" help:"Only products with exactly this name."`
	LowStock bool   `help:"Only products at or below their minimum stock."`
	Limit    int    `help:"Page size. Enables paging by product id."`
	Cursor   string `help:"Cursor returned by the previous page."`
}

func (c *cmdProductList) Run(a *app) error {
	var (
		products []*models.Product
		err      error
	)
	switch {
	case c.Category != "":
		products, err = a.gw.GetProductsByCategory(a.ctx, c.Category)
	case c.Name != "":
		products, err = a.gw.FindProductsByName(a.ctx, c.Name)
	default:
		products, err = a.gw.GetAllProducts(a.ctx)
	}
	if err != nil {
		return err
	}
	if c.LowStock {
		filtered := products[:0]
		for _, p := range products {
			if p.IsLowStock() {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	if c.Limit == 0 && c.Cursor == "" {
		return a.printJSON(products)
	}
	page, err := pagination.Apply(products, func(p *models.Product) string { return p.ID }, pagination.Params{
		Limit:  c.Limit,
		Cursor: c.Cursor,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return a.printJSON(page)
}

type cmdProductGet struct {
	ID string `arg:"" help:"Product id."`
}

func (c *cmdProductGet) Run(a *app) error {
	p, ok, err := a.gw.GetProduct(a.ctx, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("product %q not found", c.ID)
	}
	return a.printJSON(p)
}

type cmdProductDelete struct {
	ID string `arg:"" help:"Product id."`
}

func (c *cmdProductDelete) Run(a *app) error {
	if err := a.gw.DeleteProduct(a.ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "product %s deleted\n", c.ID)
	return nil
}

type cmdCategory struct {
	Add    cmdCategoryAdd    `cmd:"" help:"Add a category."`
	List   cmdCategoryList   `cmd:"" help:"List categories."`
	Delete cmdCategoryDelete `cmd:"" help:"Delete a category. Its products are kept."`
}

type cmdCategoryAdd struct {
	ID          string `help:"Category id. Generated when omitted."`
	Name        string `short:"n" required:"" help:"Display name."`
	Description string `help:"Free text description."`
	Color       string `help:"Display color."`
}

func (c *cmdCategoryAdd) Run(a *app) error {
	cat := &models.Category{ID: c.ID, Name: c.Name, Description: c.Description, Color: c.Color}
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	if err := a.gw.AddCategory(a.ctx, cat); err != nil {
		return err
	}
	return a.printJSON(cat)
}

type cmdCategoryList struct{}

func (c *cmdCategoryList) Run(a *app) error {
	categories, err := a.gw.GetAllCategories(a.ctx)
	if err != nil {
		return err
	}
	return a.printJSON(categories)
}

type cmdCategoryDelete struct {
	ID string `arg:"" help:"Category id."`
}

func (c *cmdCategoryDelete) Run(a *app) error {
	if err := a.gw.DeleteCategory(a.ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "category %s deleted\n", c.ID)
	return nil
}

type cmdImage struct {
	Attach cmdImageAttach `cmd:"" help:"Compress a photo and store it for a product."`
	Get    cmdImageGet    `cmd:"" help:"Write a product photo to a file."`
}

type cmdImageAttach struct {
	ProductID string  `arg:"" help:"Product id."`
	File      string  `arg:"" type:"existingfile" help:"Photo to compress."`
	MaxWidth  int     `help:"Override the maximum width."`
	MaxHeight int     `help:"Override the maximum height."`
	Quality   float64 `help:"Override the JPEG quality in (0,1]."`
	NoThumb   bool    `help:"Skip the thumbnail."`
}

func (c *cmdImageAttach) Run(a *app) error {
	f, err := os.Open(c.File)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeRead, err, "open photo")
	}
	defer f.Close()

	opts := imaging.Options{MaxWidth: c.MaxWidth, MaxHeight: c.MaxHeight, Quality: c.Quality}
	var main, thumb *imaging.Blob
	if c.NoThumb {
		main, err = a.img.Compress(a.ctx, f, opts)
	} else {
		main, thumb, err = a.img.CompressWithThumbnail(a.ctx, f, opts, imaging.Options{})
	}
	if err != nil {
		return err
	}

	var thumbData []byte
	if thumb != nil {
		thumbData = thumb.Data
	}
	img, err := a.gw.SaveImage(a.ctx, c.ProductID, main.Data, thumbData)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "stored %s: %dx%d, %d bytes (thumbnail %d bytes)\n", img.ID, main.Width, main.Height, main.Size(), thumb.Size())
	return nil
}

type cmdImageGet struct {
	ProductID string `arg:"" help:"Product id."`
	Out       string `short:"o" required:"" help:"Destination file."`
	Thumb     bool   `help:"Write the thumbnail instead of the main image."`
}

func (c *cmdImageGet) Run(a *app) error {
	img, ok, err := a.gw.GetImage(a.ctx, c.ProductID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no image for product %q", c.ProductID)
	}
	data := img.Main
	if c.Thumb {
		if !img.HasThumbnail() {
			return fmt.Errorf("product %q has no thumbnail", c.ProductID)
		}
		data = img.Thumbnail
	}
	return os.WriteFile(c.Out, data, 0o644)
}

type cmdSetting struct {
	Set  cmdSettingSet  `cmd:"" help:"Store a setting. JSON values are kept as JSON, anything else as a string."`
	Get  cmdSettingGet  `cmd:"" help:"Show a setting."`
	List cmdSettingList `cmd:"" help:"Show every setting."`
}

type cmdSettingSet struct {
	Key   string `arg:"" help:"Setting key."`
	Value string `arg:"" help:"Setting value."`
}

func (c *cmdSettingSet) Run(a *app) error {
	var value any = c.Value
	if json.Valid([]byte(c.Value)) {
		value = json.RawMessage(c.Value)
	}
	return a.gw.SaveSetting(a.ctx, c.Key, value)
}

type cmdSettingGet struct {
	Key string `arg:"" help:"Setting key."`
}

func (c *cmdSettingGet) Run(a *app) error {
	value, ok, err := a.gw.GetSetting(a.ctx, c.Key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("setting %q not found", c.Key)
	}
	fmt.Fprintln(a.out, string(value))
	return nil
}

type cmdSettingList struct{}

func (c *cmdSettingList) Run(a *app) error {
	settings, err := a.gw.GetAllSettings(a.ctx)
	if err != nil {
		return err
	}
	return a.printJSON(settings)
}
