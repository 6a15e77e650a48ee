package callscmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/voxtap/pkg/cliui"
	"github.com/papercomputeco/voxtap/pkg/storage"
	"github.com/papercomputeco/voxtap/pkg/utils"
)

const listLongDesc string = `List archived calls, newest first.

Examples:
  voxtap calls list
  voxtap calls list --status failed
  voxtap calls list --agent-id support-bot --limit 50 --json`

const listShortDesc string = "List archived calls"

type listCommander struct {
	callsCommander

	agentID string
	status  string
	limit   int
	asJSON  bool
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.limit < 0 {
				return errors.New("--limit must not be negative")
			}
			switch cmder.status {
			case "", storage.StatusDelivered, storage.StatusFailed:
			default:
				return fmt.Errorf("invalid --status %q (expected %s or %s)", cmder.status, storage.StatusDelivered, storage.StatusFailed)
			}
			return cmder.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmder.addArchiveFlags(cmd)
	cmd.Flags().StringVar(&cmder.agentID, "agent-id", "", "Only list calls of this agent")
	cmd.Flags().StringVar(&cmder.status, "status", "", "Only list calls with this delivery status (delivered, failed)")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of calls to list (0 for all)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print entries as JSON")

	return cmd
}

func (c *listCommander) run(cmd *cobra.Command) error {
	store, err := c.openArchive(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), storage.ListOptions{
		AgentID: c.agentID,
		Status:  c.status,
		Limit:   c.limit,
	})
	if err != nil {
		return fmt.Errorf("listing calls: %w", err)
	}

	if c.asJSON {
		return writeJSON(cmd.OutOrStdout(), entries)
	}

	p := cliui.NewPrinter(cmd.OutOrStdout())
	if len(entries) == 0 {
		p.Printf("  %s\n", p.Dim("No archived calls."))
		return nil
	}

	for _, e := range entries {
		p.Printf("  %s %s  %s  %s  %s\n",
			p.Mark(entryErr(e)),
			p.Key(e.CallID),
			p.Value(fmt.Sprintf("%-9s", e.Status)),
			p.Dim(e.CreatedAt.Local().Format(time.DateTime)),
			p.Dim(summary(e)),
		)
	}
	return nil
}

// entryErr is non-nil for failed deliveries, for Mark.
func entryErr(e *storage.Entry) error {
	if e.Status == storage.StatusFailed {
		return errors.New(e.Error)
	}
	return nil
}

func summary(e *storage.Entry) string {
	if e.Status == storage.StatusFailed {
		msg := e.Error
		if e.HTTPStatus != 0 {
			msg = fmt.Sprintf("HTTP %d %s", e.HTTPStatus, msg)
		}
		return utils.Truncate(msg, 60)
	}
	if e.Record == nil {
		return e.AgentID
	}
	return fmt.Sprintf("%s  %d turns", e.AgentID, len(e.Record.TranscriptWithMetrics))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
