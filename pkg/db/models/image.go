package models

import "time"

const imageKeyPrefix = "product_"

// ImageKey derives the image record key owned by a product.
func ImageKey(productID string) string {
	return imageKeyPrefix + productID
}

// Image holds the processed photo of a product. There is at most one per product.
type Image struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	ProductID string    `gorm:"column:product_id;not null" json:"productId" validate:"required"`
	Main      []byte    `gorm:"column:main" json:"main" validate:"required"`
	Thumbnail []byte    `gorm:"column:thumbnail" json:"thumbnail,omitempty"`
	MimeType  string    `gorm:"column:mime_type" json:"mimeType,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false" json:"createdAt"`
}

func (Image) TableName() string { return "images" }

func (i *Image) PrimaryKey() string { return i.ID }

func (i *Image) IndexValues() map[string]string {
	return map[string]string{"productId": i.ProductID}
}

// HasThumbnail reports whether a thumbnail blob was stored alongside the main image.
func (i *Image) HasThumbnail() bool {
	return len(i.Thumbnail) > 0
}
