package repositories

import (
	"context"
	"errors"
	"fmt"

	"catalog/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const productCollection = "products"

var mongoTracer = otel.Tracer("catalog/repositories/mongo")

// MongoProductRepository stores one document per product, keyed by the
// product ID in _id.
type MongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{
		collection: db.Collection(productCollection),
	}
}

func (r *MongoProductRepository) ListProducts(ctx context.Context) ([]models.Record, error) {
	ctx, span := mongoTracer.Start(ctx, "MongoProductRepository.ListProducts")
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.Record{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		records = append(records, documentRecord(doc))
	}
	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	span.SetAttributes(attribute.Int("product.count", len(records)))
	return records, nil
}

func (r *MongoProductRepository) GetProduct(ctx context.Context, id int64) (models.Record, error) {
	ctx, span := mongoTracer.Start(ctx, "MongoProductRepository.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	var doc bson.M
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("product with ID %d: %w", id, ErrProductNotFound)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get product by ID %d: %w", id, err)
	}
	return documentRecord(doc), nil
}

func (r *MongoProductRepository) AddProduct(ctx context.Context, rec models.Record) error {
	ctx, span := mongoTracer.Start(ctx, "MongoProductRepository.AddProduct")
	defer span.End()

	doc, err := recordDocument(rec)
	if err != nil {
		return fmt.Errorf("failed to add product: %w", err)
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to add product %v: %w", doc["_id"], err)
	}
	return nil
}

func (r *MongoProductRepository) UpdateQty(ctx context.Context, id int64, qty int) error {
	ctx, span := mongoTracer.Start(ctx, "MongoProductRepository.UpdateQty")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id), attribute.Int("product.qty", qty))

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{models.FieldQty: qty}})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update qty of product %d: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product with ID %d not updated: %w", id, ErrProductNotFound)
	}
	return nil
}

// documentRecord renames _id to id; every other field passes through.
func documentRecord(doc bson.M) models.Record {
	rec := make(models.Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			rec[models.FieldID] = v
			continue
		}
		rec[k] = v
	}
	return rec
}

func recordDocument(rec models.Record) (bson.M, error) {
	id, err := models.RecordID(rec[models.FieldID])
	if err != nil {
		return nil, fmt.Errorf("invalid id %v: %w", rec[models.FieldID], err)
	}
	if err := models.DecodeRecord(rec, &models.Product{}); err != nil {
		return nil, fmt.Errorf("product %d: %w", id, err)
	}
	doc := bson.M{"_id": id}
	for k, v := range rec {
		if k == models.FieldID {
			continue
		}
		doc[k] = v
	}
	return doc, nil
}
