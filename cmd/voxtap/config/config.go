// Package configcmder provides the config command for managing persistent
// voxtap configuration stored in the .voxtap/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/voxtap/pkg/cliui"
	"github.com/papercomputeco/voxtap/pkg/config"
)

const configLongDesc string = `Manage persistent voxtap configuration.

Configuration is stored as config.toml in the .voxtap/ directory and provides
default values for command flags. Environment variables (VOXTAP_*) and CLI
flags always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  agent.id,
  delivery.endpoint, delivery.api_key, delivery.auth_header,
  delivery.timeout, delivery.workers, delivery.queue_size,
  api.listen, storage.sqlite_path, storage.postgres_dsn,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  voxtap config set <key> <value>    Set a configuration value
  voxtap config get <key>            Get a configuration value
  voxtap config list                 List all configuration values

Examples:
  voxtap config set delivery.endpoint https://analytics.example.com/calls
  voxtap config set eventstream.brokers kafka-1:9092,kafka-2:9092
  voxtap config get delivery.timeout
  voxtap config list`

const configShortDesc string = "Manage persistent voxtap configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// display masks secret values unless reveal is set.
func display(key, value string, reveal bool) string {
	if reveal || !config.IsSecretKey(key) {
		return value
	}
	return cliui.Mask(value)
}

func printTarget(p *cliui.Printer, target string) {
	if target != "" {
		p.Printf("\n  %s %s\n\n", p.Key("Config file:"), p.Dim(target))
		return
	}
	p.Printf("\n  %s\n\n", p.Dim("No config file found. Using defaults."))
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}
