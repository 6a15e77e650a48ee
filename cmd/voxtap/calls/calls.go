// Package callscmder provides the calls command for inspecting the export
// archive and resending archived call records.
package callscmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/voxtap/cmd/voxtap/archive"
	"github.com/papercomputeco/voxtap/pkg/config"
	"github.com/papercomputeco/voxtap/pkg/logger"
	"github.com/papercomputeco/voxtap/pkg/storage"
)

const callsLongDesc string = `Inspect archived call exports.

Every delivery attempt made by "voxtap serve" is archived by call id,
together with the full call record, the HTTP status and any error.
The archive is read from the same place serve writes it: PostgreSQL
when storage.postgres_dsn is set, otherwise the SQLite file at
storage.sqlite_path (default .voxtap/voxtap.sqlite).

  voxtap calls list               List recent calls
  voxtap calls show <call_id>     Print an archived call record
  voxtap calls resend <call_id>   Deliver an archived record again`

const callsShortDesc string = "Inspect and resend archived calls"

// callsCommander carries what every calls subcommand resolves before it runs.
type callsCommander struct {
	sqlitePath  string
	postgresDSN string
	configDir   string
	debug       bool

	cfg *config.Config
}

func NewCallsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calls",
		Short: callsShortDesc,
		Long:  callsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newResendCmd())

	return cmd
}

// addArchiveFlags registers the storage flags of a subcommand.
func (c *callsCommander) addArchiveFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &c.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &c.postgresDSN)
}

// load resolves the merged configuration for cmd, binding the given flags.
func (c *callsCommander) load(cmd *cobra.Command, flags ...string) error {
	c.configDir, _ = cmd.Flags().GetString("config-dir")
	c.debug, _ = cmd.Flags().GetBool("debug")

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, append([]string{config.FlagSQLite, config.FlagPostgres}, flags...))
	c.cfg = config.FromViper(v)
	return nil
}

func (c *callsCommander) openArchive(ctx context.Context) (storage.Driver, error) {
	return archive.Open(ctx, c.cfg, archive.Options{
		ConfigDir: c.configDir,
		Logger:    c.logger(),
	})
}

// logger writes to stderr and keeps archive chatter out of command output
// unless --debug is set.
func (c *callsCommander) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.debug {
		level = slog.LevelDebug
	}
	return logger.New(logger.WithLevel(level), logger.WithWriter(os.Stderr))
}
