// Package persistence selects the user store backing the service.
package persistence

import (
	"log/slog"

	"reviewhub/config"
	"reviewhub/internal/domain/repository"
	"reviewhub/internal/infra/persistence/memory"
	"reviewhub/internal/infra/persistence/postgres"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// StorageParams holds dependencies for NewStorage, injected by Fx.
type StorageParams struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// Storage exposes the repositories of the configured driver to the Fx graph.
type Storage struct {
	fx.Out

	UserRepo  repository.UserRepository
	TxManager repository.TransactionManager
}

// NewStorage builds the store named by storage.driver.
func NewStorage(params StorageParams) (Storage, error) {
	switch params.Config.Storage.Driver {
	case config.StorageDriverMemory:
		params.Logger.Warn("Using in-memory user store; accounts are lost on restart")
		store := memory.NewStore()

		return Storage{UserRepo: store.UserRepo(), TxManager: store.TransactionManager()}, nil
	case config.StorageDriverPostgres:
		db, err := postgres.New(postgres.Params{
			Lifecycle: params.Lifecycle,
			Config:    params.Config,
			Logger:    params.Logger,
		})
		if err != nil {
			return Storage{}, err
		}

		return Storage{
			UserRepo:  postgres.NewUserRepository(db),
			TxManager: postgres.NewTransactionManager(db),
		}, nil
	default:
		return Storage{}, errors.Errorf("unknown storage driver %q", params.Config.Storage.Driver)
	}
}
