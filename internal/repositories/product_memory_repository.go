package repositories

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"catalog/internal/models"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
// Records are kept as given and listed in ascending ID order.
type MemoryProductRepository struct {
	products map[int64]models.Record
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[int64]models.Record),
	}
}

// ListProducts returns copies of all stored records ordered by ID.
func (r *MemoryProductRepository) ListProducts(ctx context.Context) ([]models.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(r.products))
	list := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		list = append(list, maps.Clone(r.products[id]))
	}
	return list, nil
}

// GetProduct returns a copy of the record stored under id.
func (r *MemoryProductRepository) GetProduct(ctx context.Context, id int64) (models.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %d: %w", id, ErrProductNotFound)
	}
	return maps.Clone(rec), nil
}

// AddProduct stores a copy of rec keyed by its "id" value.
func (r *MemoryProductRepository) AddProduct(ctx context.Context, rec models.Record) error {
	id, err := models.RecordID(rec[models.FieldID])
	if err != nil {
		return fmt.Errorf("failed to add product: invalid id %v: %w", rec[models.FieldID], err)
	}
	if err := models.DecodeRecord(rec, &models.Product{}); err != nil {
		return fmt.Errorf("failed to add product %d: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[id]; exists {
		return fmt.Errorf("failed to add product: product with ID %d already exists", id)
	}
	r.products[id] = maps.Clone(rec)
	return nil
}

// UpdateQty sets the quantity of an existing record.
func (r *MemoryProductRepository) UpdateQty(ctx context.Context, id int64, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.products[id]
	if !ok {
		return fmt.Errorf("product with ID %d not updated: %w", id, ErrProductNotFound)
	}
	rec[models.FieldQty] = qty
	return nil
}
