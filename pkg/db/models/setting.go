package models

import "github.com/angelmondragon/inventory-tracker/pkg/types"

// Setting is a key/value pair with an arbitrary JSON payload.
type Setting struct {
	Key   string     `gorm:"column:key;primaryKey" json:"key" validate:"required"`
	Value types.JSON `gorm:"column:value" json:"value"`
}

func (Setting) TableName() string { return "settings" }

func (s *Setting) PrimaryKey() string { return s.Key }

func (s *Setting) IndexValues() map[string]string { return nil }
