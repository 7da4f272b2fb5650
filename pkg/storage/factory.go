package storage

import (
	"fmt"
	"io"

	"github.com/absmach/tuner/pkg/storage/badger"
	"github.com/absmach/tuner/pkg/storage/postgres"
	"github.com/absmach/tuner/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"TUNER_STORAGE_TYPE" toml:"type"`

	PostgresHost    string `env:"TUNER_POSTGRES_HOST" toml:"postgres_host"`
	PostgresPort    string `env:"TUNER_POSTGRES_PORT" toml:"postgres_port"`
	PostgresUser    string `env:"TUNER_POSTGRES_USER" toml:"postgres_user"`
	PostgresPass    string `env:"TUNER_POSTGRES_PASS" toml:"postgres_pass"`
	PostgresDB      string `env:"TUNER_POSTGRES_DB" toml:"postgres_db"`
	PostgresSSLMode string `env:"TUNER_POSTGRES_SSLMODE" toml:"postgres_sslmode"`

	SQLitePath string `env:"TUNER_SQLITE_PATH" toml:"sqlite_path"`

	BadgerPath string `env:"TUNER_BADGER_PATH" toml:"badger_path"`
}

type Repositories struct {
	Runs RunRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "postgres":
		db, err := postgres.NewDatabase(
			cfg.PostgresHost,
			cfg.PostgresPort,
			cfg.PostgresUser,
			cfg.PostgresPass,
			cfg.PostgresDB,
			cfg.PostgresSSLMode,
		)
		if err != nil {
			return nil, err
		}

		return &Repositories{Runs: postgres.NewRunRepository(db), Closer: db}, nil
	case "sqlite":
		db, err := sqlite.NewDatabase(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}

		return &Repositories{Runs: sqlite.NewRunRepository(db), Closer: db}, nil
	case "badger":
		db, err := badger.NewDatabase(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}

		return &Repositories{Runs: badger.NewRunRepository(db), Closer: db}, nil
	case "memory", "":
		return &Repositories{Runs: newMemoryRunRepository(NewInMemoryStorage())}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

// Close releases the backend, if any.
func (r *Repositories) Close() error {
	if r == nil || r.Closer == nil {
		return nil
	}

	return r.Closer.Close()
}
