package storage

import (
	"context"

	"github.com/angelmondragon/inventory-tracker/pkg/db/models"
	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/types"
	"github.com/angelmondragon/inventory-tracker/pkg/validate"
)

// SaveSetting stores value under key as JSON, replacing any earlier value.
func (g *Gateway) SaveSetting(ctx context.Context, key string, value any) error {
	return g.run(ctx, "save_setting", func(ctx context.Context, engine Engine) error {
		payload, err := types.MarshalJSONValue(value)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "setting value is not serializable")
		}
		rec := &models.Setting{Key: key, Value: payload}
		if err := validate.Struct(rec); err != nil {
			return err
		}
		if err := g.apply(ctx, engine, NewUnit().Put(Settings, rec)); err != nil {
			return err
		}
		g.mutated(ctx, Settings, key, "setting saved")
		return nil
	})
}

// GetSetting returns the raw JSON stored under key. ok is false when the key is absent.
func (g *Gateway) GetSetting(ctx context.Context, key string) (types.JSON, bool, error) {
	var (
		out   models.Setting
		found bool
	)
	err := g.run(ctx, "get_setting", func(ctx context.Context, engine Engine) error {
		var err error
		found, err = engine.Get(ctx, Settings, key, &out)
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return out.Value, true, nil
}

// GetAllSettings collapses the settings collection into one key to value map.
func (g *Gateway) GetAllSettings(ctx context.Context) (map[string]types.JSON, error) {
	var out map[string]types.JSON
	err := g.run(ctx, "get_all_settings", func(ctx context.Context, engine Engine) error {
		records, err := engine.List(ctx, Settings)
		if err != nil {
			return err
		}
		out = settingsMap(recordsAs[*models.Setting](records))
		g.read(ctx, Settings, len(out))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func settingsMap(settings []*models.Setting) map[string]types.JSON {
	out := make(map[string]types.JSON, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return out
}
