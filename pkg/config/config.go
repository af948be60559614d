package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/inventory-tracker/pkg/enums"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Storage StorageConfig
	Images  ImageConfig
	Thumbs  ThumbnailConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"INVENTORY_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"INVENTORY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"INVENTORY_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"INVENTORY_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StorageConfig struct {
	Driver        string        `envconfig:"INVENTORY_STORAGE_DRIVER" default:"sqlite"`
	Path          string        `envconfig:"INVENTORY_STORAGE_PATH" default:"inventory.db"`
	DSN           string        `envconfig:"INVENTORY_STORAGE_DSN"`
	Name          string        `envconfig:"INVENTORY_STORAGE_NAME" default:"InventoryDB"`
	SchemaVersion int64         `envconfig:"INVENTORY_SCHEMA_VERSION" default:"1"`
	QuotaBytes    uint64        `envconfig:"INVENTORY_STORAGE_QUOTA_BYTES" default:"0"`
	OpenTimeout   time.Duration `envconfig:"INVENTORY_STORAGE_OPEN_TIMEOUT" default:"1s"`
}

// DriverKind returns the normalized storage driver.
func (s StorageConfig) DriverKind() enums.StorageDriver {
	return enums.StorageDriver(strings.ToLower(strings.TrimSpace(s.Driver)))
}

func (s *StorageConfig) validate() error {
	driver, err := enums.ParseStorageDriver(strings.ToLower(strings.TrimSpace(s.Driver)))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvStorageDriver, err)
	}
	s.Driver = driver.String()

	switch driver {
	case enums.StorageDriverPostgres:
		if s.DSN == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvStorageDSN, EnvStorageDriver, driver)
		}
	default:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvStoragePath, EnvStorageDriver, driver)
		}
	}

	if s.SchemaVersion < 1 {
		return fmt.Errorf("%s must be at least 1", EnvSchemaVersion)
	}
	return nil
}

// ImageConfig holds the defaults applied when a compress call leaves options unset.
type ImageConfig struct {
	MaxWidth  int     `envconfig:"INVENTORY_IMAGE_MAX_WIDTH" default:"800"`
	MaxHeight int     `envconfig:"INVENTORY_IMAGE_MAX_HEIGHT" default:"800"`
	Quality   float64 `envconfig:"INVENTORY_IMAGE_QUALITY" default:"0.8"`
}

type ThumbnailConfig struct {
	MaxWidth  int     `envconfig:"INVENTORY_THUMB_MAX_WIDTH" default:"200"`
	MaxHeight int     `envconfig:"INVENTORY_THUMB_MAX_HEIGHT" default:"200"`
	Quality   float64 `envconfig:"INVENTORY_THUMB_QUALITY" default:"0.7"`
}
