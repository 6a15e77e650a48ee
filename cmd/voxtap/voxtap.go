// Package voxtapcmder
package voxtapcmder

import (
	"github.com/spf13/cobra"

	callscmder "github.com/papercomputeco/voxtap/cmd/voxtap/calls"
	configcmder "github.com/papercomputeco/voxtap/cmd/voxtap/config"
	initcmder "github.com/papercomputeco/voxtap/cmd/voxtap/init"
	servecmder "github.com/papercomputeco/voxtap/cmd/voxtap/serve"
	versioncmder "github.com/papercomputeco/voxtap/cmd/version"
)

const voxtapLongDesc string = `Voxtap is observability for your voice agents.

It follows voice sessions, reconciles conversation turns with their
STT, LLM and TTS metrics, and ships one analytics record per call.

  voxtap serve          Run the ingestion API
  voxtap calls list     List archived call exports
  voxtap config list    Show the effective configuration`

const voxtapShortDesc string = "Voxtap - Voice Agent Telemetry"

func NewVoxtapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "voxtap",
		Short:        voxtapShortDesc,
		Long:         voxtapLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .voxtap/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(callscmder.NewCallsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
