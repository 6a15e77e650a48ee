package callscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/voxtap/pkg/storage"
)

const showLongDesc string = `Print an archived call as JSON.

By default only the call record (the payload sent to the analytics
endpoint) is printed. --entry prints the whole archive entry,
including the delivery status and error.

Examples:
  voxtap calls show 3f2c..._20250101_120000
  voxtap calls show 3f2c..._20250101_120000 --entry`

const showShortDesc string = "Print an archived call record"

type showCommander struct {
	callsCommander

	entry bool
}

func newShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show <call_id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmder.addArchiveFlags(cmd)
	cmd.Flags().BoolVar(&cmder.entry, "entry", false, "Print the whole archive entry")

	return cmd
}

func (c *showCommander) run(cmd *cobra.Command, callID string) error {
	store, err := c.openArchive(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	e, err := store.Get(cmd.Context(), callID)
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("call %s is not archived", callID)
		}
		return err
	}

	if c.entry {
		return writeJSON(cmd.OutOrStdout(), e)
	}
	return writeJSON(cmd.OutOrStdout(), e.Record)
}
