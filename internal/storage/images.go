package storage

import (
	"context"
	"time"

	"github.com/angelmondragon/inventory-tracker/pkg/db/models"
	"github.com/angelmondragon/inventory-tracker/pkg/validate"
	"github.com/gabriel-vasile/mimetype"
)

// SaveImage stores the photo of a product, replacing any earlier one.
// thumbnail may be nil.
func (g *Gateway) SaveImage(ctx context.Context, productID string, main, thumbnail []byte) (*models.Image, error) {
	var out *models.Image
	err := g.run(ctx, "save_image", func(ctx context.Context, engine Engine) error {
		img := &models.Image{
			ID:        models.ImageKey(productID),
			ProductID: productID,
			Main:      main,
			Thumbnail: thumbnail,
			CreatedAt: utc(g.opts.Now()),
		}
		if err := validate.Struct(img); err != nil {
			return err
		}
		img.MimeType = mimetype.Detect(main).String()
		if err := g.apply(ctx, engine, NewUnit().Put(Images, img)); err != nil {
			return err
		}
		g.mutated(ctx, Images, img.ID, "image saved")
		out = img
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetImage loads the image of a product. ok is false when there is none.
func (g *Gateway) GetImage(ctx context.Context, productID string) (*models.Image, bool, error) {
	var (
		out   models.Image
		found bool
	)
	err := g.run(ctx, "get_image", func(ctx context.Context, engine Engine) error {
		var err error
		found, err = engine.Get(ctx, Images, models.ImageKey(productID), &out)
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return &out, true, nil
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
