package models

import (
	"fmt"
)

// Field names of a raw product record.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldDescription = "description"
	FieldCost        = "cost"
	FieldQty         = "qty"
)

// Record is a raw product mapping as exchanged with the storage layer.
type Record map[string]any

// Product represents a product in the catalog.
type Product struct {
	ID          int64   `json:"id" mapstructure:"id"`
	Name        string  `json:"name" mapstructure:"name"`
	Description string  `json:"description" mapstructure:"description"`
	Cost        float64 `json:"cost" mapstructure:"cost"`
	Qty         int     `json:"qty" mapstructure:"qty"`
}

// loadFields must be present for a record to load. Qty is optional and
// defaults to zero.
var loadFields = []string{FieldID, FieldName, FieldDescription, FieldCost}

// RecordFields is the full set of keys a record must carry to be added.
var RecordFields = []string{FieldID, FieldName, FieldDescription, FieldCost, FieldQty}

// LoadProduct builds a Product from a raw record.
func LoadProduct(rec Record) (Product, error) {
	if missing := rec.Missing(loadFields...); len(missing) > 0 {
		return Product{}, fmt.Errorf("load product: %w", &MissingFieldError{Required: loadFields, Fields: missing})
	}

	var p Product
	if err := DecodeRecord(rec, &p); err != nil {
		return Product{}, fmt.Errorf("load product %v: %w", rec[FieldID], err)
	}
	return p, nil
}

// Missing returns the keys from fields that are absent from the record, in
// the order given.
func (r Record) Missing(fields ...string) []string {
	var missing []string
	for _, f := range fields {
		if _, ok := r[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// Record converts the product back into a raw record carrying every field.
func (p Product) Record() Record {
	return Record{
		FieldID:          p.ID,
		FieldName:        p.Name,
		FieldDescription: p.Description,
		FieldCost:        p.Cost,
		FieldQty:         p.Qty,
	}
}
