package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithLevel sets an explicit minimum level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithPretty switches to the colorized charmbracelet/log handler, meant for
// a terminal.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		c.pretty = pretty
	}
}

// WithJSON switches to slog's JSON handler.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithWriter replaces the output with w.
func WithWriter(w io.Writer) Option {
	return WithWriters(w)
}

// WithWriters writes every record to each of ws.
func WithWriters(ws ...io.Writer) Option {
	return func(c *config) {
		c.writers = nil
		for _, w := range ws {
			if w != nil {
				c.writers = append(c.writers, w)
			}
		}
	}
}

// WithSource adds the calling file and line to records.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
