package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on both "voxtap serve" and "voxtap calls list").
type Flag struct {
	// Name is the long flag name (e.g. "endpoint").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "delivery.endpoint").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAgentID     = "agent-id"
	FlagEndpoint    = "endpoint"
	FlagAPIKey      = "api-key"
	FlagAuthHeader  = "auth-header"
	FlagTimeout     = "timeout"
	FlagWorkers     = "workers"
	FlagQueueSize   = "queue-size"
	FlagListen      = "listen"
	FlagSQLite      = "sqlite"
	FlagPostgres    = "postgres"
	FlagEventStream = "eventstream"
	FlagBrokers     = "brokers"
	FlagTopic       = "topic"
)

// Flags is the registry of every voxtap flag that maps onto a config key.
var Flags = FlagSet{
	FlagAgentID:     {Name: "agent-id", Shorthand: "a", ViperKey: "agent.id", Description: "Agent id attached to exported calls"},
	FlagEndpoint:    {Name: "endpoint", Shorthand: "e", ViperKey: "delivery.endpoint", Description: "Analytics endpoint receiving call records"},
	FlagAPIKey:      {Name: "api-key", ViperKey: "delivery.api_key", Description: "API key sent with every delivery"},
	FlagAuthHeader:  {Name: "auth-header", ViperKey: "delivery.auth_header", Description: "Header carrying the API key (Authorization sends a bearer token)"},
	FlagTimeout:     {Name: "timeout", ViperKey: "delivery.timeout", Description: "Timeout of a single delivery request"},
	FlagWorkers:     {Name: "workers", ViperKey: "delivery.workers", Description: "Number of background export workers"},
	FlagQueueSize:   {Name: "queue-size", ViperKey: "delivery.queue_size", Description: "Capacity of the background export queue"},
	FlagListen:      {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagSQLite:      {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite export archive"},
	FlagPostgres:    {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string for the export archive"},
	FlagEventStream: {Name: "eventstream", ViperKey: "eventstream.provider", Description: "Event stream provider (none, kafka)"},
	FlagBrokers:     {Name: "brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
	FlagTopic:       {Name: "topic", ViperKey: "eventstream.topic", Description: "Topic receiving call events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
