package enums

import "fmt"

// StorageDriver selects the engine behind the storage gateway.
type StorageDriver string

const (
	StorageDriverSQLite   StorageDriver = "sqlite"
	StorageDriverPostgres StorageDriver = "postgres"
	StorageDriverBolt     StorageDriver = "bolt"
)

var validStorageDrivers = []StorageDriver{
	StorageDriverSQLite,
	StorageDriverPostgres,
	StorageDriverBolt,
}

// String returns the literal string for the driver.
func (d StorageDriver) String() string {
	return string(d)
}

// IsValid reports whether the driver is known.
func (d StorageDriver) IsValid() bool {
	for _, candidate := range validStorageDrivers {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsRelational reports whether the driver is served through gorm.
func (d StorageDriver) IsRelational() bool {
	return d == StorageDriverSQLite || d == StorageDriverPostgres
}

// ParseStorageDriver converts raw input into a StorageDriver.
func ParseStorageDriver(value string) (StorageDriver, error) {
	for _, candidate := range validStorageDrivers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid storage driver %q", value)
}
