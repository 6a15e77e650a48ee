package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/voxtap/pkg/cliui"
	"github.com/papercomputeco/voxtap/pkg/config"
	"github.com/papercomputeco/voxtap/pkg/dotdir"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .voxtap/ directory, creating ~/.voxtap/ when no
directory exists yet. Values are validated before they are saved:
delivery.timeout must be a duration, delivery.workers and
delivery.queue_size must be integers, and eventstream.provider
must be one of none or kafka.

Examples:
  voxtap config set delivery.endpoint https://analytics.example.com/calls
  voxtap config set delivery.auth_header Authorization
  voxtap config set delivery.timeout 45s`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(cliui.NewPrinter(cmd.OutOrStdout()), args[0], args[1], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func runSet(p *cliui.Printer, key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKey(key)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfger.GetTarget() == "" {
		dir, err := dotdir.NewManager().Ensure(configDir)
		if err != nil {
			return err
		}
		if cfger, err = config.NewConfiger(dir); err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	printTarget(p, cfger.GetTarget())

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	p.Printf("  %s Set %s = %s\n\n",
		p.Mark(nil),
		p.Key(key),
		p.Value(display(key, value, false)),
	)
	return nil
}
