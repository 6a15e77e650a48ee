// Package initcmder provides the init command for initializing a local
// .voxtap directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/voxtap/pkg/cliui"
	"github.com/papercomputeco/voxtap/pkg/config"
	"github.com/papercomputeco/voxtap/pkg/delivery"
	"github.com/papercomputeco/voxtap/pkg/dotdir"
)

const (
	configFile     = "config.toml"
	maxRemoteBytes = 1 << 20
	fetchTimeout   = 15 * time.Second
)

const initLongDesc string = `Initialize a new .voxtap/ directory in the current working directory.

Creates a local .voxtap/ directory that takes precedence over the default
~/.voxtap/ directory for configuration, the SQLite export archive and the
.env file, and writes a config.toml into it.

--preset selects the starting configuration:
  local       SQLite archive, no event stream (default)
  postgres    PostgreSQL archive on localhost
  kafka       SQLite archive, call events published to Kafka on localhost

--preset also accepts an http(s) URL to a config.toml, which is fetched,
validated and written as is.

An existing config.toml is never overwritten.

Examples:
  voxtap init
  voxtap init --preset kafka
  voxtap init --preset https://example.com/voxtap/config.toml`

const initShortDesc string = "Initialize a local .voxtap/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cliui.NewPrinter(cmd.OutOrStdout()), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", fmt.Sprintf("Config preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(ctx context.Context, p *cliui.Printer, preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	// Resolve the config before touching the filesystem so a bad preset
	// leaves nothing behind.
	var data []byte
	if isURL(preset) {
		data, err = fetchConfig(ctx, preset)
	} else {
		data, err = presetTOML(preset)
	}
	if err != nil {
		return err
	}

	dir := filepath.Join(cwd, dotdir.DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", dotdir.DirName, err)
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err == nil {
		p.Printf("  %s Already initialized: %s\n", p.Dim("●"), p.Value(dir))
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	p.Printf("  %s Initialized %s directory: %s\n", p.Mark(nil), dotdir.DirName, p.Value(dir))
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func presetTOML(name string) ([]byte, error) {
	if name == "" {
		name = "local"
	}

	cfg, err := config.PresetConfig(name)
	if err != nil {
		return nil, err
	}
	return config.EncodeTOML(cfg)
}

// fetchConfig downloads a config.toml and checks that it parses.
func fetchConfig(ctx context.Context, url string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching preset: %w", err)
	}

	resp, err := delivery.NewHTTPClient(fetchTimeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching preset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching preset: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes))
	if err != nil {
		return nil, fmt.Errorf("fetching preset: %w", err)
	}

	if _, err := config.ParseConfigTOML(data); err != nil {
		return nil, fmt.Errorf("invalid remote config: %w", err)
	}
	return data, nil
}
