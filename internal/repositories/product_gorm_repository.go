package repositories

import (
	"context"
	"errors"
	"fmt"

	"catalog/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var gormTracer = otel.Tracer("catalog/repositories/gorm")

// productRow is the products table. Qty is nullable; rows loaded before
// quantities were tracked carry NULL.
type productRow struct {
	ID          int64   `gorm:"primaryKey;autoIncrement:false" mapstructure:"id"`
	Name        string  `gorm:"type:varchar(255);not null" mapstructure:"name"`
	Description string  `gorm:"type:text" mapstructure:"description"`
	Cost        float64 `gorm:"not null" mapstructure:"cost"`
	Qty         *int    `mapstructure:"qty"`
}

func (productRow) TableName() string { return "products" }

func (p productRow) record() models.Record {
	rec := models.Record{
		models.FieldID:          p.ID,
		models.FieldName:        p.Name,
		models.FieldDescription: p.Description,
		models.FieldCost:        p.Cost,
	}
	if p.Qty != nil {
		rec[models.FieldQty] = *p.Qty
	}
	return rec
}

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// Migrate creates or updates the products table.
func (r *GORMProductRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&productRow{}); err != nil {
		return fmt.Errorf("failed to migrate products table: %w", err)
	}
	return nil
}

// ListProducts retrieves all products ordered by ID.
func (r *GORMProductRepository) ListProducts(ctx context.Context) ([]models.Record, error) {
	ctx, span := gormTracer.Start(ctx, "GORMProductRepository.ListProducts")
	defer span.End()

	var rows []productRow
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	span.SetAttributes(attribute.Int("product.count", len(records)))
	return records, nil
}

// GetProduct retrieves a single product by its ID.
func (r *GORMProductRepository) GetProduct(ctx context.Context, id int64) (models.Record, error) {
	ctx, span := gormTracer.Start(ctx, "GORMProductRepository.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	var row productRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %d: %w", id, ErrProductNotFound)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get product by ID %d: %w", id, err)
	}
	return row.record(), nil
}

// AddProduct inserts rec as a new row. Values are coerced to the column
// types, so records decoded from JSON can be stored directly. Values that
// would lose precision are rejected.
func (r *GORMProductRepository) AddProduct(ctx context.Context, rec models.Record) error {
	ctx, span := gormTracer.Start(ctx, "GORMProductRepository.AddProduct")
	defer span.End()

	var row productRow
	if err := models.DecodeRecord(rec, &row); err != nil {
		return fmt.Errorf("failed to add product: %w", err)
	}
	span.SetAttributes(attribute.Int64("product.id", row.ID))

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to add product %d: %w", row.ID, err)
	}
	return nil
}

// UpdateQty sets the quantity of an existing product.
func (r *GORMProductRepository) UpdateQty(ctx context.Context, id int64, qty int) error {
	ctx, span := gormTracer.Start(ctx, "GORMProductRepository.UpdateQty")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id), attribute.Int("product.qty", qty))

	res := r.db.WithContext(ctx).Model(&productRow{}).Where("id = ?", id).Update("qty", qty)
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("failed to update qty of product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %d not updated: %w", id, ErrProductNotFound)
	}
	return nil
}
