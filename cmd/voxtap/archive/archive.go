// Package archive opens the export archive configured for a voxtap command.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/papercomputeco/voxtap/pkg/config"
	"github.com/papercomputeco/voxtap/pkg/dotdir"
	"github.com/papercomputeco/voxtap/pkg/logger"
	"github.com/papercomputeco/voxtap/pkg/storage"
	"github.com/papercomputeco/voxtap/pkg/storage/inmemory"
	"github.com/papercomputeco/voxtap/pkg/storage/postgres"
	"github.com/papercomputeco/voxtap/pkg/storage/sqlite"
)

// SQLiteEnv overrides the SQLite archive path for every command.
const SQLiteEnv = "VOXTAP_SQLITE"

// ResolveSQLitePath picks the SQLite archive path: the override, then
// $VOXTAP_SQLITE, then voxtap.sqlite inside the resolved .voxtap/ directory
// (~/.voxtap/ is created when none exists).
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv(SQLiteEnv)); envPath != "" {
		return envPath, nil
	}

	dir, err := dotdir.NewManager().Ensure(configDir)
	if err != nil {
		return "", err
	}
	return dotdir.ArchivePath(dir)
}

// Options selects the archive backend.
type Options struct {
	// InMemory skips persistence altogether.
	InMemory bool

	// ConfigDir overrides .voxtap/ resolution.
	ConfigDir string

	Logger *slog.Logger
}

// Open returns the archive described by cfg. PostgreSQL wins over SQLite
// when a DSN is configured.
func Open(ctx context.Context, cfg *config.Config, opts Options) (storage.Driver, error) {
	log := logger.OrNop(opts.Logger)

	if opts.InMemory {
		log.Info("using in-memory archive")
		return inmemory.NewDriver(), nil
	}

	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		d, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL archive: %w", err)
		}
		log.Info("using PostgreSQL archive")
		return d, nil
	}

	path, err := ResolveSQLitePath(cfg.Storage.SQLitePath, opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("resolving SQLite archive: %w", err)
	}

	d, err := sqlite.NewDriver(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite archive: %w", err)
	}
	log.Info("using SQLite archive", "path", path)
	return d, nil
}
