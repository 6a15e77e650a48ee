package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/papercomputeco/voxtap/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable voxtap reads.
const EnvPrefix = "VOXTAP"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), loads .env files and binds environment
// variables with the VOXTAP_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (VOXTAP_DELIVERY_ENDPOINT, VOXTAP_API_LISTEN, etc.),
//     including values from ./.env and <config dir>/.env
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. .env files never override variables already set in the environment.
	envFiles := []string{".env"}
	if target != "" {
		envFiles = append(envFiles, filepath.Join(target, ".env"))
	}
	if err := LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	// 4. Environment variables: VOXTAP_DELIVERY_API_KEY, VOXTAP_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// LoadDotEnv loads each existing file into the process environment. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("reading %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// FromViper builds a Config from the merged viper state.
func FromViper(v *viper.Viper) *Config {
	brokers := v.GetStringSlice("eventstream.brokers")
	if len(brokers) == 1 {
		brokers = SplitList(brokers[0])
	}

	return &Config{
		Version: v.GetInt("version"),
		Agent: AgentConfig{
			ID: v.GetString("agent.id"),
		},
		Delivery: DeliveryConfig{
			Endpoint:   v.GetString("delivery.endpoint"),
			APIKey:     v.GetString("delivery.api_key"),
			AuthHeader: v.GetString("delivery.auth_header"),
			Timeout:    v.GetString("delivery.timeout"),
			Workers:    v.GetUint("delivery.workers"),
			QueueSize:  v.GetUint("delivery.queue_size"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Storage: StorageConfig{
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  brokers,
			Topic:    v.GetString("eventstream.topic"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("agent.id", d.Agent.ID)

	// Delivery
	v.SetDefault("delivery.endpoint", d.Delivery.Endpoint)
	v.SetDefault("delivery.api_key", d.Delivery.APIKey)
	v.SetDefault("delivery.auth_header", d.Delivery.AuthHeader)
	v.SetDefault("delivery.timeout", d.Delivery.Timeout)
	v.SetDefault("delivery.workers", d.Delivery.Workers)
	v.SetDefault("delivery.queue_size", d.Delivery.QueueSize)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
