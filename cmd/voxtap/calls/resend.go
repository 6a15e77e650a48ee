package callscmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/voxtap/pkg/cliui"
	"github.com/papercomputeco/voxtap/pkg/config"
	"github.com/papercomputeco/voxtap/pkg/delivery"
	"github.com/papercomputeco/voxtap/pkg/observe"
	"github.com/papercomputeco/voxtap/pkg/storage"
)

const resendLongDesc string = `Deliver an archived call record again.

The record is sent unchanged, with its original call id, to the configured
delivery endpoint. The archive entry is updated with the new outcome.

Examples:
  voxtap calls resend 3f2c..._20250101_120000
  voxtap calls resend 3f2c..._20250101_120000 --endpoint https://staging.example.com/calls`

const resendShortDesc string = "Deliver an archived call record again"

var resendFlags = []string{
	config.FlagEndpoint,
	config.FlagAPIKey,
	config.FlagAuthHeader,
	config.FlagTimeout,
}

type resendCommander struct {
	callsCommander

	endpoint   string
	apiKey     string
	authHeader string
	timeout    string
}

func newResendCmd() *cobra.Command {
	cmder := &resendCommander{}

	cmd := &cobra.Command{
		Use:   "resend <call_id>",
		Short: resendShortDesc,
		Long:  resendLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.load(cmd, resendFlags...)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmder.addArchiveFlags(cmd)
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &cmder.apiKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagAuthHeader, &cmder.authHeader)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)

	return cmd
}

func (c *resendCommander) run(cmd *cobra.Command, callID string) error {
	store, err := c.openArchive(cmd.Context())
	if err != nil {
		return err
	}

	log := c.logger()
	obs, err := observe.New(observe.Config{
		Client: &delivery.Client{
			Endpoint:   c.cfg.Delivery.Endpoint,
			APIKey:     c.cfg.Delivery.APIKey,
			AuthHeader: c.cfg.Delivery.AuthHeader,
			HTTPClient: delivery.NewHTTPClient(c.cfg.Delivery.TimeoutDuration()),
			Logger:     log,
		},
		Archive:    store,
		NumWorkers: 1,
		QueueSize:  1,
		Logger:     log,
	})
	if err != nil {
		store.Close()
		return err
	}
	defer obs.Close()

	p := cliui.NewPrinter(cmd.OutOrStdout())

	var res delivery.Result
	err = p.Step(fmt.Sprintf("Resending %s", callID), func() error {
		var err error
		res, err = obs.Resend(cmd.Context(), callID)
		if err != nil {
			return err
		}
		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	})
	switch {
	case storage.IsNotFound(err):
		return fmt.Errorf("call %s is not archived", callID)
	case err != nil:
		if res.Status != 0 {
			return fmt.Errorf("delivery rejected with HTTP %d: %s", res.Status, res.Error)
		}
		return fmt.Errorf("delivery failed: %w", err)
	}

	if res.Data != nil {
		return writeJSON(cmd.OutOrStdout(), res.Data)
	}
	return nil
}
