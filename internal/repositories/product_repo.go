package repositories

import (
	"context"
	"errors"

	"catalog/internal/models"
)

// ErrProductNotFound is returned by every backend when no product has the requested ID.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository defines the interface for product data access.
// Records cross this boundary as raw mappings; a backend reports an absent
// quantity by leaving the "qty" key out.
type ProductRepository interface {
	ListProducts(ctx context.Context) ([]models.Record, error)
	GetProduct(ctx context.Context, id int64) (models.Record, error)
	AddProduct(ctx context.Context, rec models.Record) error
	UpdateQty(ctx context.Context, id int64, qty int) error
}
