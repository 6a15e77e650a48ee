// Package api provides the HTTP server voice-agent hosts use to feed session
// events to voxtap and to query sessions and archived calls.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string
}
