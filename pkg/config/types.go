package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent voxtap configuration stored as config.toml
// in the .voxtap/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Agent       AgentConfig       `toml:"agent"`
	Delivery    DeliveryConfig    `toml:"delivery"`
	API         APIConfig         `toml:"api"`
	Storage     StorageConfig     `toml:"storage"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// AgentConfig identifies the agent whose sessions are observed.
type AgentConfig struct {
	ID string `toml:"id,omitempty"`
}

// DeliveryConfig holds the analytics endpoint settings.
type DeliveryConfig struct {
	Endpoint   string `toml:"endpoint,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	AuthHeader string `toml:"auth_header,omitempty"`

	// Timeout is a Go duration string, e.g. "30s".
	Timeout   string `toml:"timeout,omitempty"`
	Workers   uint   `toml:"workers,omitempty"`
	QueueSize uint   `toml:"queue_size,omitempty"`
}

// TimeoutDuration parses Timeout, returning 0 when it is unset or invalid.
func (d DeliveryConfig) TimeoutDuration() time.Duration {
	t, err := time.ParseDuration(d.Timeout)
	if err != nil {
		return 0
	}
	return t
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig selects the export archive. PostgresDSN wins over SQLitePath;
// with neither set the archive is kept in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventStreamConfig selects where call events are published.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"agent.id": {
		get: func(c *Config) string { return c.Agent.ID },
		set: func(c *Config, v string) error { c.Agent.ID = v; return nil },
	},
	"delivery.endpoint": {
		get: func(c *Config) string { return c.Delivery.Endpoint },
		set: func(c *Config, v string) error { c.Delivery.Endpoint = v; return nil },
	},
	"delivery.api_key": {
		get: func(c *Config) string { return c.Delivery.APIKey },
		set: func(c *Config, v string) error { c.Delivery.APIKey = v; return nil },
	},
	"delivery.auth_header": {
		get: func(c *Config) string { return c.Delivery.AuthHeader },
		set: func(c *Config, v string) error { c.Delivery.AuthHeader = v; return nil },
	},
	"delivery.timeout": {
		get: func(c *Config) string { return c.Delivery.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for delivery.timeout: %w", err)
			}
			c.Delivery.Timeout = v
			return nil
		},
	},
	"delivery.workers": {
		get: func(c *Config) string { return formatUint(c.Delivery.Workers) },
		set: func(c *Config, v string) error {
			n, err := parseUint("delivery.workers", v)
			if err != nil {
				return err
			}
			c.Delivery.Workers = n
			return nil
		},
	},
	"delivery.queue_size": {
		get: func(c *Config) string { return formatUint(c.Delivery.QueueSize) },
		set: func(c *Config, v string) error {
			n, err := parseUint("delivery.queue_size", v)
			if err != nil {
				return err
			}
			c.Delivery.QueueSize = n
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case EventStreamNone, EventStreamKafka:
				c.EventStream.Provider = v
				return nil
			}
			return fmt.Errorf("invalid value for eventstream.provider: %q (available: %s, %s)", v, EventStreamNone, EventStreamKafka)
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error { c.EventStream.Brokers = SplitList(v); return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}

// SplitList splits a comma separated list, dropping blank items.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return uint(n), nil
}
