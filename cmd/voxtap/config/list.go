package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/voxtap/pkg/cliui"
	"github.com/papercomputeco/voxtap/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their current values from the
config.toml file stored in the .voxtap/ directory. Secret values
are masked unless --reveal is given.

Examples:
  voxtap config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cliui.NewPrinter(cmd.OutOrStdout()), configDir, reveal)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secret values unmasked")

	return cmd
}

func runList(p *cliui.Printer, configDir string, reveal bool) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	printTarget(p, cfger.GetTarget())

	keys := config.ValidConfigKeys()

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range keys {
		maxLen = max(maxLen, len(k))
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		padded := fmt.Sprintf("%-*s", maxLen, key)
		if value == "" {
			p.Printf("  %s = %s\n", p.Key(padded), p.Dim("<not set>"))
		} else {
			p.Printf("  %s = %s\n", p.Key(padded), p.Value(fmt.Sprintf("%q", display(key, value, reveal))))
		}
	}
	p.Printf("\n")

	return nil
}
