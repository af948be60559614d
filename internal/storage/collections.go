package storage

import (
	"fmt"

	"github.com/angelmondragon/inventory-tracker/pkg/db/models"
	"gorm.io/gorm"
)

// Record is a value persisted in a collection.
type Record interface {
	PrimaryKey() string
	// IndexValues maps each secondary lookup name to the record's value for it.
	IndexValues() map[string]string
}

// Collection names a keyed set of records.
type Collection string

const (
	Products   Collection = "products"
	Categories Collection = "categories"
	Images     Collection = "images"
	Settings   Collection = "settings"
)

// Lookup is a non-unique secondary index over one record field.
type Lookup struct {
	Name   string
	Column string
	// Time marks lookups whose values are RFC 3339 timestamps.
	Time bool
}

type collectionSpec struct {
	name      Collection
	keyColumn string
	lookups   []Lookup
	newRecord func() Record
	findAll   func(tx *gorm.DB) ([]Record, error)
}

var registry = map[Collection]collectionSpec{
	Products: {
		name:      Products,
		keyColumn: "id",
		lookups: []Lookup{
			{Name: "name", Column: "name"},
			{Name: "categoryId", Column: "category_id"},
			{Name: "createdAt", Column: "created_at", Time: true},
		},
		newRecord: func() Record { return &models.Product{} },
		findAll:   findAll[models.Product],
	},
	Categories: {
		name:      Categories,
		keyColumn: "id",
		lookups:   []Lookup{{Name: "name", Column: "name"}},
		newRecord: func() Record { return &models.Category{} },
		findAll:   findAll[models.Category],
	},
	Images: {
		name:      Images,
		keyColumn: "id",
		lookups:   []Lookup{{Name: "productId", Column: "product_id"}},
		newRecord: func() Record { return &models.Image{} },
		findAll:   findAll[models.Image],
	},
	Settings: {
		name:      Settings,
		keyColumn: "key",
		newRecord: func() Record { return &models.Setting{} },
		findAll:   findAll[models.Setting],
	},
}

// AllCollections lists every registered collection in a stable order.
func AllCollections() []Collection {
	return []Collection{Products, Categories, Images, Settings}
}

func specFor(c Collection) (collectionSpec, error) {
	spec, ok := registry[c]
	if !ok {
		return collectionSpec{}, fmt.Errorf("unknown collection %q", c)
	}
	return spec, nil
}

func (s collectionSpec) lookup(name string) (Lookup, bool) {
	for _, l := range s.lookups {
		if l.Name == name {
			return l, true
		}
	}
	return Lookup{}, false
}

func findAll[T any, PT interface {
	*T
	Record
}](tx *gorm.DB) ([]Record, error) {
	var rows []T
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

// recordsAs narrows engine results to the collection's concrete type.
func recordsAs[T Record](records []Record) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if typed, ok := r.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
