package txpool

import "time"

// Config holds configuration for one tx-pool web service.
type Config struct {
	// Endpoint is the base URL of the pool service. Empty disables
	// pool aggregation for the endpoint.
	Endpoint string `yaml:"endpoint"`

	// Timeout for HTTP requests to the pool service. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRows caps the number of transaction rows kept per snapshot.
	// Defaults to 10.
	MaxRows int `yaml:"max_rows"`

	// DisableList turns off the per-cycle transaction detail page,
	// leaving only the item counts. The list is fetched by default.
	DisableList bool `yaml:"disable_list"`

	// FilterContracts restricts the listed transactions to calls into
	// these contract addresses (0x-prefixed hex). Empty keeps every
	// row.
	FilterContracts []string `yaml:"filter_contracts"`
}
