package worker_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"
	"catalog/internal/worker"
	"catalog/pkg/rabbitmq"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) AddProduct(ctx context.Context, rec models.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockCatalog) UpdateQty(ctx context.Context, id int64, qty int) error {
	return m.Called(ctx, id, qty).Error(0)
}

func newHandler() (*worker.CommandHandler, *repositories.MemoryProductRepository, *services.ProductService) {
	repo := repositories.NewMemoryProductRepository()
	catalog := services.NewProductService(repo)
	return worker.NewCommandHandler(catalog, zap.NewNop()), repo, catalog
}

func TestCommandHandler_AddThenUpdate(t *testing.T) {
	ctx := context.Background()
	handler, _, catalog := newHandler()

	require.NoError(t, handler.Handle(ctx, []byte(`{"op":"add_product","product":{"id":1,"name":"Pen","description":"Blue pen","cost":1.5,"qty":2}}`)))
	require.NoError(t, handler.HandleDelivery(ctx, amqp.Delivery{Body: []byte(`{"op":"update_qty","product_id":1,"qty":0}`)}))

	p, err := catalog.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Product{ID: 1, Name: "Pen", Description: "Blue pen", Cost: 1.5, Qty: 0}, p)
}

func TestCommandHandler_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"op":`},
		{"unknown op", `{"op":"delete_product","product_id":1}`},
		{"add without product", `{"op":"add_product"}`},
		{"update without qty", `{"op":"update_qty","product_id":1}`},
		{"update without id", `{"op":"update_qty","qty":3}`},
		{"add missing field", `{"op":"add_product","product":{"id":1,"name":"Pen","cost":1.5,"qty":2}}`},
		{"fractional qty", `{"op":"add_product","product":{"id":1,"name":"Pen","description":"Blue pen","cost":1.5,"qty":2.9}}`},
		{"empty cost", `{"op":"add_product","product":{"id":1,"name":"Pen","description":"Blue pen","cost":"","qty":2}}`},
		{"negative qty", `{"op":"update_qty","product_id":1,"qty":-1}`},
		{"unknown product", `{"op":"update_qty","product_id":404,"qty":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, _ := newHandler()

			err := handler.Handle(context.Background(), []byte(tt.body))

			require.Error(t, err)
			assert.True(t, errors.Is(err, rabbitmq.ErrReject), err.Error())
			assert.False(t, rabbitmq.Requeue(err, false))
		})
	}
}

func TestCommandHandler_TransientErrorIsRetried(t *testing.T) {
	catalog := new(MockCatalog)
	handler := worker.NewCommandHandler(catalog, zap.NewNop())
	storageErr := fmt.Errorf("database error")
	catalog.On("UpdateQty", mock.Anything, int64(1), 5).Return(storageErr).Once()

	err := handler.Handle(context.Background(), []byte(`{"op":"update_qty","product_id":1,"qty":5}`))

	assert.ErrorIs(t, err, storageErr)
	assert.False(t, errors.Is(err, rabbitmq.ErrReject))
	assert.True(t, rabbitmq.Requeue(err, false))
	catalog.AssertExpectations(t)
}

func TestCommandHandler_ForwardsProductRecord(t *testing.T) {
	catalog := new(MockCatalog)
	handler := worker.NewCommandHandler(catalog, zap.NewNop())
	catalog.On("AddProduct", mock.Anything, models.Record{
		"id": float64(7), "name": "Ink", "description": "Black", "cost": 3.25, "qty": float64(0),
	}).Return(nil).Once()

	err := handler.Handle(context.Background(), []byte(`{"op":"add_product","product":{"id":7,"name":"Ink","description":"Black","cost":3.25,"qty":0}}`))

	assert.NoError(t, err)
	catalog.AssertExpectations(t)
}

func TestCommandHandler_DeliveryContextReachesCatalog(t *testing.T) {
	catalog := new(MockCatalog)
	handler := worker.NewCommandHandler(catalog, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	catalog.On("UpdateQty", ctx, int64(1), 5).Return(ctx.Err()).Once()

	err := handler.HandleDelivery(ctx, amqp.Delivery{Body: []byte(`{"op":"update_qty","product_id":1,"qty":5}`)})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, rabbitmq.ErrReject))
	catalog.AssertExpectations(t)
}
