package services

import (
	"context"

	"catalog/internal/models"
	"catalog/internal/repositories"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("catalog/services")

// ProductService is the product catalog. It validates requests and
// delegates storage to its repository; it keeps no state between calls.
type ProductService struct {
	repo      repositories.ProductRepository
	publisher EventPublisher
	log       *zap.Logger
}

// Option configures a ProductService.
type Option func(*ProductService)

// WithLogger sets the logger used for rejected requests and publish failures.
func WithLogger(log *zap.Logger) Option {
	return func(s *ProductService) { s.log = log }
}

// WithPublisher publishes a ProductEvent after every successful write.
func WithPublisher(p EventPublisher) Option {
	return func(s *ProductService) { s.publisher = p }
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, opts ...Option) *ProductService {
	s := &ProductService{
		repo: repo,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListProducts returns every product in the order the repository lists them.
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductService.ListProducts")
	defer span.End()

	records, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fail(span, err)
	}

	products := make([]models.Product, 0, len(records))
	for _, rec := range records {
		p, err := models.LoadProduct(rec)
		if err != nil {
			return nil, fail(span, err)
		}
		products = append(products, p)
	}
	span.SetAttributes(attribute.Int("product.count", len(products)))
	return products, nil
}

// GetProduct returns the product with the given ID. Repository errors,
// including not found, are returned unchanged.
func (s *ProductService) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	ctx, span := tracer.Start(ctx, "ProductService.GetProduct", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	rec, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, fail(span, err)
	}
	p, err := models.LoadProduct(rec)
	if err != nil {
		return models.Product{}, fail(span, err)
	}
	return p, nil
}

// AddProduct forwards rec to the repository once it carries every field.
func (s *ProductService) AddProduct(ctx context.Context, rec models.Record) error {
	ctx, span := tracer.Start(ctx, "ProductService.AddProduct")
	defer span.End()

	if missing := rec.Missing(models.RecordFields...); len(missing) > 0 {
		s.log.Debug("add product rejected", zap.Strings("missing", missing))
		return fail(span, &models.MissingFieldError{Required: models.RecordFields, Fields: missing})
	}

	if err := s.repo.AddProduct(ctx, rec); err != nil {
		return fail(span, err)
	}

	s.publish(ctx, newProductEvent(EventProductAdded, rec[models.FieldID], rec[models.FieldQty]))
	return nil
}

// UpdateQty sets the quantity of a product. Whether id exists is left to
// the repository.
func (s *ProductService) UpdateQty(ctx context.Context, id int64, qty int) error {
	ctx, span := tracer.Start(ctx, "ProductService.UpdateQty",
		trace.WithAttributes(attribute.Int64("product.id", id), attribute.Int("product.qty", qty)))
	defer span.End()

	if qty < 0 {
		s.log.Debug("qty update rejected", zap.Int64("id", id), zap.Int("qty", qty))
		return fail(span, &models.NegativeQuantityError{ID: id, Qty: qty})
	}

	if err := s.repo.UpdateQty(ctx, id, qty); err != nil {
		return fail(span, err)
	}

	s.publish(ctx, newProductEvent(EventQtyUpdated, id, qty))
	return nil
}

func (s *ProductService) publish(ctx context.Context, ev ProductEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishProductEvent(ctx, ev); err != nil {
		s.log.Warn("failed to publish product event",
			zap.String("type", ev.Type),
			zap.Int64("product_id", ev.ProductID),
			zap.Error(err),
		)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
