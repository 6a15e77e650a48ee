package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/voxtap/pkg/cliui"
	"github.com/papercomputeco/voxtap/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file
stored in the .voxtap/ directory. Secret values (delivery.api_key,
storage.postgres_dsn) are masked unless --reveal is given.

Examples:
  voxtap config get delivery.endpoint
  voxtap config get delivery.api_key --reveal`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runGet(cliui.NewPrinter(cmd.OutOrStdout()), args[0], configDir, reveal)
		},
		ValidArgsFunction: completeKeys,
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secret values unmasked")

	return cmd
}

func runGet(p *cliui.Printer, key, configDir string, reveal bool) error {
	if !config.IsValidConfigKey(key) {
		return unknownKey(key)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	printTarget(p, cfger.GetTarget())

	value, err := cfger.GetConfigValue(key)
	if err != nil {
		return err
	}

	if value == "" {
		p.Printf("  %s  %s\n\n", p.Key(key), p.Dim("<not set>"))
	} else {
		p.Printf("  %s  %s\n\n", p.Key(key), p.Value(display(key, value, reveal)))
	}

	return nil
}
