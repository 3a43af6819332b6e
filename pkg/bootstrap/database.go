package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"safetyrelay/internal/config"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/migrations"
)

// Connections holds the optional stores. A nil field means the store is not
// configured and the relay falls back to its in-memory equivalent.
type Connections struct {
	Redis    *redis.Client
	Postgres *sql.DB
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
}

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// Open connects every configured store. On error, stores already opened
// are closed again.
func (dc *DatabaseConnector) Open(ctx context.Context) (*Connections, error) {
	conns := &Connections{}
	var err error

	if conns.Redis, err = dc.InitRedis(ctx); err != nil {
		return nil, err
	}
	if conns.Postgres, err = dc.InitPostgreSQL(ctx); err != nil {
		dc.ShutdownDatabases(ctx, conns)
		return nil, err
	}
	if conns.Mongo, err = dc.InitMongoDB(ctx); err != nil {
		dc.ShutdownDatabases(ctx, conns)
		return nil, err
	}
	if conns.Mongo != nil {
		conns.MongoDB = conns.Mongo.Database(dc.Config.Database.MongoDB.Database)
		if dc.Config.Database.RunMigrations {
			if err := migrations.EnsureMongoIndexes(ctx, conns.MongoDB, dc.Config.Routing.Collection); err != nil {
				dc.ShutdownDatabases(ctx, conns)
				return nil, err
			}
		}
	}
	return conns, nil
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	if dc.Config.Database.Redis.Host == "" {
		return nil, nil // Redis is optional
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", dc.Config.Database.Redis.Host, dc.Config.Database.Redis.Port),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	if dc.Config.Database.Postgres.Host == "" {
		return nil, nil // PostgreSQL is optional
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		dc.Config.Database.Postgres.User,
		dc.Config.Database.Postgres.Password,
		dc.Config.Database.Postgres.Host,
		dc.Config.Database.Postgres.Port,
		dc.Config.Database.Postgres.DBName,
		dc.Config.Database.Postgres.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dc.Config.Database.RunMigrations {
		if err := migrations.MigratePostgres(db); err != nil {
			db.Close()
			return nil, err
		}
		dc.Logger.Info("PostgreSQL migrations applied")
	}

	dc.Logger.Info("PostgreSQL connected successfully")
	return db, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	if dc.Config.Database.MongoDB.URI == "" {
		return nil, nil // MongoDB is optional
	}

	mongoOpts := options.Client().ApplyURI(dc.Config.Database.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.Info("MongoDB connected successfully")
	return mongoClient, nil
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, conns *Connections) []error {
	var errs []error
	if conns == nil {
		return errs
	}

	if conns.Redis != nil {
		if err := conns.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if conns.Postgres != nil {
		if err := conns.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	if conns.Mongo != nil {
		if err := conns.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errs
}
