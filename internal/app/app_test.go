package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"catalog/internal/app"
	"catalog/internal/config"
	"catalog/internal/models"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func loadConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	return cfg
}

func TestNew_MemoryWithSeed(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t, map[string]string{"STORAGE_DRIVER": "memory", "SEED_DEMO_DATA": "true"})

	a, err := app.New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close(ctx)

	products, err := a.Catalog.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "Laptop", products[0].Name)
	assert.Equal(t, 50, products[2].Qty)
}

func TestNew_SQLiteFileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t, map[string]string{
		"STORAGE_DRIVER": "sqlite",
		"SQLITE_PATH":    filepath.Join(t.TempDir(), "catalog.db"),
		"SEED_DEMO_DATA": "true",
	})

	first, err := app.New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Catalog.UpdateQty(ctx, 2, 0))
	require.NoError(t, first.Catalog.AddProduct(ctx, models.Record{"id": 4, "name": "Monitor", "description": "27 inch", "cost": 300.0, "qty": 5}))
	require.NoError(t, first.Close(ctx))

	// Seeding again skips products that already exist.
	second, err := app.New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer second.Close(ctx)

	products, err := second.Catalog.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 4)
	assert.Equal(t, 0, products[1].Qty)
	assert.Equal(t, "Monitor", products[3].Name)
}

func TestOpenRepository_UnknownDriver(t *testing.T) {
	_, _, err := app.OpenRepository(context.Background(), config.Config{StorageDriver: "cassandra"}, zap.NewNop())

	assert.Error(t, err)
}

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := loadConfig(t, map[string]string{"STORAGE_DRIVER": "memory"})
	a, err := app.New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, app.Seed(ctx, a.Catalog, zap.NewNop()))
	require.NoError(t, app.Seed(ctx, a.Catalog, zap.NewNop()))

	products, err := a.Catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)
}
