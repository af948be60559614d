package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"gorm.io/gorm"
)

// IsUniqueViolation reports whether err is a primary/unique key conflict raised by
// either relational driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || pkgerrors.IsPGUniqueViolation(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// IsNotFound reports whether err means the queried row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
