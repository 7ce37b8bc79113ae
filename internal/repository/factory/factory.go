// Package factory picks the store backend once at startup.
package factory

import (
	"context"
	"fmt"
	"time"

	"pbassistant/backend/internal/config"
	"pbassistant/backend/internal/logger"
	"pbassistant/backend/internal/repository"
	"pbassistant/backend/internal/repository/memory"
	mongorepo "pbassistant/backend/internal/repository/mongo"
	"pbassistant/backend/internal/repository/postgres"
)

// Stores bundles the repositories the services need.
type Stores struct {
	Backend  string
	Users    repository.UserRepository
	Plans    repository.TrainingPlanRepository
	Workouts repository.WorkoutRepository

	close func() error
}

// Close releases the backend connection, if any.
func (s *Stores) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// NewMemoryStores returns fresh, independent in-memory stores.
func NewMemoryStores() *Stores {
	return &Stores{
		Backend:  config.BackendMemory,
		Users:    memory.NewUserRepository(),
		Plans:    memory.NewTrainingPlanRepository(),
		Workouts: memory.NewWorkoutRepository(),
	}
}

// Open connects to the configured backend and prepares its schema when
// database.auto_migrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Stores, error) {
	switch backend := cfg.Backend(); backend {
	case config.BackendPostgres:
		db, err := postgres.Open(cfg.URL)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := postgres.AutoMigrate(db); err != nil {
				_ = postgres.Close(db)
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		log.Info("Using postgres stores")
		return &Stores{
			Backend:  backend,
			Users:    postgres.NewUserRepository(db),
			Plans:    postgres.NewTrainingPlanRepository(db),
			Workouts: postgres.NewWorkoutRepository(db),
			close:    func() error { return postgres.Close(db) },
		}, nil

	case config.BackendMongo:
		client, err := mongorepo.ConnectDB(cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		db := client.Database(cfg.Name)
		if cfg.AutoMigrate {
			idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := mongorepo.EnsureIndexes(idxCtx, db); err != nil {
				_ = mongorepo.DisconnectDB(client)
				return nil, fmt.Errorf("ensure indexes: %w", err)
			}
		}
		log.Info("Using mongo stores", "database", cfg.Name)
		return &Stores{
			Backend:  backend,
			Users:    mongorepo.NewMongoUserRepository(db),
			Plans:    mongorepo.NewMongoTrainingPlanRepository(db),
			Workouts: mongorepo.NewMongoWorkoutRepository(db),
			close:    func() error { return mongorepo.DisconnectDB(client) },
		}, nil

	default:
		log.Warn("No database configured, using in-memory stores; data is lost on restart")
		return NewMemoryStores(), nil
	}
}
