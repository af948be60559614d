package models

// Category groups products. Deleting one leaves its products untouched.
type Category struct {
	ID          string `gorm:"column:id;primaryKey" json:"id" validate:"required"`
	Name        string `gorm:"column:name;not null" json:"name" validate:"required"`
	Description string `gorm:"column:description" json:"description,omitempty"`
	Color       string `gorm:"column:color" json:"color,omitempty"`
}

func (Category) TableName() string { return "categories" }

func (c *Category) PrimaryKey() string { return c.ID }

func (c *Category) IndexValues() map[string]string {
	return map[string]string{"name": c.Name}
}
