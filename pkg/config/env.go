package config

const EnvPrefix = "INVENTORY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv          = "INVENTORY_APP_ENV"
	EnvLogLevel        = "INVENTORY_LOG_LEVEL"
	EnvLogFormat       = "INVENTORY_LOG_FORMAT"
	EnvStorageDriver   = "INVENTORY_STORAGE_DRIVER"
	EnvStoragePath     = "INVENTORY_STORAGE_PATH"
	EnvStorageDSN      = "INVENTORY_STORAGE_DSN"
	EnvStorageName     = "INVENTORY_STORAGE_NAME"
	EnvSchemaVersion   = "INVENTORY_SCHEMA_VERSION"
	EnvStorageQuota    = "INVENTORY_STORAGE_QUOTA_BYTES"
	EnvImageMaxWidth   = "INVENTORY_IMAGE_MAX_WIDTH"
	EnvImageQuality    = "INVENTORY_IMAGE_QUALITY"
	EnvThumbMaxWidth   = "INVENTORY_THUMB_MAX_WIDTH"
	EnvStorageOpenWait = "INVENTORY_STORAGE_OPEN_TIMEOUT"
)
