package dbwriter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/your-org/regime-bracket-bot/internal/config"
)

// Connect opens the database described by dbCfg, applies migrations when
// requested and returns a Repository for it. Without database settings it
// returns a nil pool and a dummy writer. A batch writer is used only when
// writerCfg enables it; the pool stays usable for reads either way.
func Connect(ctx context.Context, dbCfg config.DatabaseConfig, writerCfg config.DBWriterConfig, logger *zap.Logger) (*pgxpool.Pool, Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !dbCfg.Enabled() {
		logger.Info("Database settings missing, records will not be persisted")
		return nil, NewDummyWriter(logger), nil
	}

	if dbCfg.Migrate {
		if err := Migrate(dbCfg.DSN(), logger); err != nil {
			return nil, nil, err
		}
	}

	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("unable to reach database %s:%d: %w", dbCfg.Host, dbCfg.Port, err)
	}

	if !writerCfg.Enabled {
		return pool, NewDummyWriter(logger), nil
	}
	w, err := NewTimescaleWriter(pool, writerCfg, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, w, nil
}
