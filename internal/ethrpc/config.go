package ethrpc

import "time"

// Config holds configuration for a single execution client endpoint.
type Config struct {
	// Name identifies the endpoint in logs and on screen, e.g. "host"
	// or "rollup".
	Name string `yaml:"name"`

	// Endpoint is the HTTP or WebSocket URL of the execution client
	// JSON-RPC API.
	Endpoint string `yaml:"endpoint"`

	// Headers are extra HTTP headers sent with every request, e.g.
	// authorization for protected endpoints.
	Headers map[string]string `yaml:"headers"`

	// Timeout for individual RPC calls. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout"`
}
