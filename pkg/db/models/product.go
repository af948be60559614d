package models

import (
	"time"

	"github.com/angelmondragon/inventory-tracker/pkg/types"
	"github.com/shopspring/decimal"
)

// Product is a tracked inventory item. ID is assigned by the caller.
type Product struct {
	ID          string          `gorm:"column:id;primaryKey" json:"id" validate:"required"`
	Name        string          `gorm:"column:name;not null" json:"name" validate:"required"`
	CategoryID  string          `gorm:"column:category_id" json:"categoryId"`
	SKU         string          `gorm:"column:sku" json:"sku,omitempty"`
	Description string          `gorm:"column:description" json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"column:price" json:"price"`
	Quantity    int             `gorm:"column:quantity;not null" json:"quantity" validate:"gte=0"`
	MinStock    int             `gorm:"column:min_stock;not null" json:"minStock" validate:"gte=0"`
	Attributes  types.JSON      `gorm:"column:attributes" json:"attributes,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime:false" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime:false" json:"updatedAt"`
}

func (Product) TableName() string { return "products" }

func (p *Product) PrimaryKey() string { return p.ID }

// IndexValues exposes the secondary lookup values for the record.
func (p *Product) IndexValues() map[string]string {
	return map[string]string{
		"name":       p.Name,
		"categoryId": p.CategoryID,
		"createdAt":  formatIndexTime(p.CreatedAt),
	}
}

// IsLowStock reports whether the quantity fell to the configured minimum.
func (p *Product) IsLowStock() bool {
	return p.MinStock > 0 && p.Quantity <= p.MinStock
}

func formatIndexTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
