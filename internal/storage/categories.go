package storage

import (
	"context"

	"github.com/angelmondragon/inventory-tracker/pkg/db/models"
	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/validate"
)

// AddCategory inserts c. An existing id fails with DUPLICATE_KEY.
func (g *Gateway) AddCategory(ctx context.Context, c *models.Category) error {
	return g.run(ctx, "add_category", func(ctx context.Context, engine Engine) error {
		if c == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
		}
		if err := validate.Struct(c); err != nil {
			return err
		}
		rec := *c
		if err := g.apply(ctx, engine, NewUnit().Insert(Categories, &rec)); err != nil {
			return err
		}
		g.mutated(ctx, Categories, rec.ID, "category added")
		return nil
	})
}

// DeleteCategory removes the category. Its products keep their categoryId.
func (g *Gateway) DeleteCategory(ctx context.Context, id string) error {
	return g.run(ctx, "delete_category", func(ctx context.Context, engine Engine) error {
		if id == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
		}
		if err := g.apply(ctx, engine, NewUnit().Delete(Categories, id)); err != nil {
			return err
		}
		g.mutated(ctx, Categories, id, "category deleted")
		return nil
	})
}

func (g *Gateway) GetAllCategories(ctx context.Context) ([]*models.Category, error) {
	var out []*models.Category
	err := g.run(ctx, "get_all_categories", func(ctx context.Context, engine Engine) error {
		records, err := engine.List(ctx, Categories)
		if err != nil {
			return err
		}
		out = recordsAs[*models.Category](records)
		g.read(ctx, Categories, len(out))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) GetCategory(ctx context.Context, id string) (*models.Category, bool, error) {
	var (
		out   models.Category
		found bool
	)
	err := g.run(ctx, "get_category", func(ctx context.Context, engine Engine) error {
		var err error
		found, err = engine.Get(ctx, Categories, id, &out)
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return &out, true, nil
}
