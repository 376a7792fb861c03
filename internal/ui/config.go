package ui

import "time"

// Config holds renderer settings.
type Config struct {
	// Enabled turns the terminal renderer on. When false the dashboard
	// runs headless and logs snapshot summaries instead.
	Enabled bool `yaml:"enabled"`

	// RefreshInterval is the poll cadence shown in the help footer.
	// Filled in by the dashboard.
	RefreshInterval time.Duration `yaml:"-"`
}

// EndpointInfo is the static display configuration of one endpoint
// column.
type EndpointInfo struct {
	Name            string
	StaleAfter      time.Duration
	SpikeMultiplier float64
}
