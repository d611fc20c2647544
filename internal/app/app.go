package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog/internal/config"
	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/services"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const mongoPingTimeout = 5 * time.Second

// App is the assembled catalog with the storage backend it owns.
type App struct {
	Repo    repositories.ProductRepository
	Catalog *services.ProductService

	closeRepo func(context.Context) error
}

// New opens the configured storage backend and builds the catalog on top of it.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts ...services.Option) (*App, error) {
	repo, closeRepo, err := OpenRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	opts = append([]services.Option{services.WithLogger(log)}, opts...)
	a := &App{
		Repo:      repo,
		Catalog:   services.NewProductService(repo, opts...),
		closeRepo: closeRepo,
	}

	if cfg.SeedDemoData {
		if err := Seed(ctx, a.Catalog, log); err != nil {
			return nil, errors.Join(err, a.Close(ctx))
		}
	}
	return a, nil
}

// Close releases the storage backend.
func (a *App) Close(ctx context.Context) error {
	if a.closeRepo == nil {
		return nil
	}
	return a.closeRepo(ctx)
}

// OpenRepository connects to the backend named by cfg.StorageDriver. The
// returned function closes the connection.
func OpenRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (repositories.ProductRepository, func(context.Context) error, error) {
	log = log.With(zap.String("driver", cfg.StorageDriver))

	switch cfg.StorageDriver {
	case config.DriverMemory:
		log.Info("using in-memory product storage")
		return repositories.NewMemoryProductRepository(), func(context.Context) error { return nil }, nil

	case config.DriverSQLite:
		return openGORM(ctx, sqlite.Open(cfg.SQLitePath), cfg.DatabaseAutoMigrate, log)

	case config.DriverPostgres:
		return openGORM(ctx, postgres.Open(cfg.DatabaseDSN), cfg.DatabaseAutoMigrate, log)

	case config.DriverMongo:
		return openMongo(ctx, cfg.MongoURI, cfg.MongoDBName, log)
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func openGORM(ctx context.Context, dialector gorm.Dialector, migrate bool, log *zap.Logger) (repositories.ProductRepository, func(context.Context) error, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	closeDB := func(context.Context) error { return sqlDB.Close() }

	repo := repositories.NewGORMProductRepository(db)
	if migrate {
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, errors.Join(err, sqlDB.Close())
		}
	}

	log.Info("connected to database", zap.String("dialect", dialector.Name()))
	return repo, closeDB, nil
}

func openMongo(ctx context.Context, uri, dbName string, log *zap.Logger) (repositories.ProductRepository, func(context.Context) error, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("MongoDB ping failed: %w", err), client.Disconnect(ctx))
	}

	log.Info("connected to MongoDB", zap.String("database", dbName))
	return repositories.NewMongoProductRepository(client.Database(dbName)), client.Disconnect, nil
}

var demoProducts = []models.Product{
	{ID: 1, Name: "Laptop", Description: "High performance laptop", Cost: 1200.00, Qty: 10},
	{ID: 2, Name: "Keyboard", Description: "Mechanical keyboard", Cost: 75.00, Qty: 25},
	{ID: 3, Name: "Mouse", Description: "Ergonomic wireless mouse", Cost: 25.00, Qty: 50},
}

// Seed adds the demo products through the catalog. Products that are
// already stored are skipped.
func Seed(ctx context.Context, catalog *services.ProductService, log *zap.Logger) error {
	for _, p := range demoProducts {
		if _, err := catalog.GetProduct(ctx, p.ID); err == nil {
			continue
		} else if !errors.Is(err, repositories.ErrProductNotFound) {
			return fmt.Errorf("failed to seed product %d: %w", p.ID, err)
		}

		if err := catalog.AddProduct(ctx, p.Record()); err != nil {
			return fmt.Errorf("failed to seed product %d: %w", p.ID, err)
		}
		log.Info("seeded product", zap.Int64("id", p.ID), zap.String("name", p.Name))
	}
	return nil
}
