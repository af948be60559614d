package storage

import (
	"context"

	"github.com/angelmondragon/inventory-tracker/pkg/db/models"
	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/validate"
)

// AddProduct inserts p. An existing id fails with DUPLICATE_KEY.
func (g *Gateway) AddProduct(ctx context.Context, p *models.Product) error {
	return g.run(ctx, "add_product", func(ctx context.Context, engine Engine) error {
		rec, err := prepareProduct(p)
		if err != nil {
			return err
		}
		if err := g.apply(ctx, engine, NewUnit().Insert(Products, rec)); err != nil {
			return err
		}
		g.mutated(ctx, Products, rec.ID, "product added")
		return nil
	})
}

// UpdateProduct creates or overwrites the product with p's id.
func (g *Gateway) UpdateProduct(ctx context.Context, p *models.Product) error {
	return g.run(ctx, "update_product", func(ctx context.Context, engine Engine) error {
		rec, err := prepareProduct(p)
		if err != nil {
			return err
		}
		if err := g.apply(ctx, engine, NewUnit().Put(Products, rec)); err != nil {
			return err
		}
		g.mutated(ctx, Products, rec.ID, "product updated")
		return nil
	})
}

// DeleteProduct removes the product and its image together.
// Missing rows are not an error.
func (g *Gateway) DeleteProduct(ctx context.Context, id string) error {
	return g.run(ctx, "delete_product", func(ctx context.Context, engine Engine) error {
		if id == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		unit := NewUnit().
			Delete(Products, id).
			Delete(Images, models.ImageKey(id))
		if err := g.apply(ctx, engine, unit); err != nil {
			return err
		}
		g.mutated(ctx, Products, id, "product deleted")
		return nil
	})
}

// GetAllProducts returns every product. The slice is empty, never nil, when there are none.
func (g *Gateway) GetAllProducts(ctx context.Context) ([]*models.Product, error) {
	return g.listProducts(ctx, "get_all_products", func(ctx context.Context, engine Engine) ([]Record, error) {
		return engine.List(ctx, Products)
	})
}

// GetProductsByCategory returns the products whose categoryId matches.
func (g *Gateway) GetProductsByCategory(ctx context.Context, categoryID string) ([]*models.Product, error) {
	return g.listProducts(ctx, "get_products_by_category", func(ctx context.Context, engine Engine) ([]Record, error) {
		return engine.ListBy(ctx, Products, "categoryId", categoryID)
	})
}

// FindProductsByName returns the products with exactly this name.
func (g *Gateway) FindProductsByName(ctx context.Context, name string) ([]*models.Product, error) {
	return g.listProducts(ctx, "find_products_by_name", func(ctx context.Context, engine Engine) ([]Record, error) {
		return engine.ListBy(ctx, Products, "name", name)
	})
}

// GetProduct loads one product. ok is false when it does not exist.
func (g *Gateway) GetProduct(ctx context.Context, id string) (*models.Product, bool, error) {
	var (
		out   models.Product
		found bool
	)
	err := g.run(ctx, "get_product", func(ctx context.Context, engine Engine) error {
		var err error
		found, err = engine.Get(ctx, Products, id, &out)
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return &out, true, nil
}

func (g *Gateway) listProducts(ctx context.Context, op string, fetch func(context.Context, Engine) ([]Record, error)) ([]*models.Product, error) {
	var out []*models.Product
	err := g.run(ctx, op, func(ctx context.Context, engine Engine) error {
		records, err := fetch(ctx, engine)
		if err != nil {
			return err
		}
		out = recordsAs[*models.Product](records)
		g.read(ctx, Products, len(out))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// prepareProduct validates p and returns a copy with timestamps in UTC so
// time lookups compare equal across engines.
func prepareProduct(p *models.Product) (*models.Product, error) {
	if p == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is required")
	}
	if err := validate.Struct(p); err != nil {
		return nil, err
	}
	rec := *p
	rec.CreatedAt = utc(rec.CreatedAt)
	rec.UpdatedAt = utc(rec.UpdatedAt)
	return &rec, nil
}
