package dashboard

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/watchoor/internal/collector"
	"github.com/ethpandaops/watchoor/internal/ethrpc"
	"github.com/ethpandaops/watchoor/internal/export"
	"github.com/ethpandaops/watchoor/internal/txpool"
	"github.com/ethpandaops/watchoor/internal/ui"
)

// DefaultRefreshInterval is the poll cadence used when the config file
// and environment are silent.
const DefaultRefreshInterval = 5 * time.Second

// EndpointConfig describes one monitored endpoint: its execution
// client, an optional tx-pool service, and the aggregation parameters.
type EndpointConfig struct {
	// Name identifies the endpoint on screen, in logs and in metrics,
	// e.g. "host" or "rollup".
	Name string `yaml:"name"`

	// RPC is the execution client JSON-RPC connection.
	RPC ethrpc.Config `yaml:"rpc"`

	// TxPool is the auxiliary pool service. An empty endpoint URL
	// leaves pool aggregation off.
	TxPool txpool.Config `yaml:"txpool"`

	// Collector holds the aggregation parameters.
	Collector collector.Config `yaml:"collector"`
}

// Config is the top-level configuration for the watchoor dashboard.
type Config struct {
	// LogLevel sets the logging verbosity (panic, fatal, warn, info,
	// debug, trace).
	LogLevel string `yaml:"log_level"`

	// LogFile receives log output while the terminal UI owns the
	// screen. Empty discards logs in UI mode.
	LogFile string `yaml:"log_file"`

	// RefreshInterval is how often every endpoint is polled. Defaults
	// to 5s.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// UI configures the terminal renderer.
	UI ui.Config `yaml:"ui"`

	// Health configures the metrics and pprof server.
	Health export.HealthConfig `yaml:"health"`

	// Endpoints lists the monitored endpoints, rendered left to right
	// in the order given here.
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// DefaultConfig returns a Config with sensible defaults and no
// endpoints; a config file or the environment supplies those.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        "info",
		RefreshInterval: DefaultRefreshInterval,
		UI: ui.Config{
			Enabled: true,
		},
		Health: export.HealthConfig{
			Addr: ":9090",
		},
	}
}

// envOverrides is the flat environment surface, applied on top of the
// file configuration. The host endpoint is the pair RPC_URL/TXPOOL_URL
// (HOST_RPC_URL wins over RPC_URL); setting ROLLUP_RPC_URL adds a
// second endpoint.
type envOverrides struct {
	RPCURL          string   `envconfig:"RPC_URL"`
	HostRPCURL      string   `envconfig:"HOST_RPC_URL"`
	RollupRPCURL    string   `envconfig:"ROLLUP_RPC_URL"`
	TxPoolURL       string   `envconfig:"TXPOOL_URL"`
	RollupTxPoolURL string   `envconfig:"ROLLUP_TXPOOL_URL"`
	HostContracts   []string `envconfig:"HOST_CONTRACTS"`
	BlockDelaySecs  uint64   `envconfig:"BLOCK_DELAY_SECS"`
	RefreshSecs     uint64   `envconfig:"REFRESH_INTERVAL"`
	MaxBlockHistory int      `envconfig:"MAX_BLOCK_HISTORY"`
	TxPoolMaxRows   int      `envconfig:"TXPOOL_MAX_ROWS"`
	LogLevel        string   `envconfig:"LOG_LEVEL"`
	LogFile         string   `envconfig:"LOG_FILE"`
}

// LoadConfig assembles the configuration from an optional YAML file
// and the environment. An empty path loads defaults plus environment
// overrides, so `RPC_URL=... watchoor` works without a file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnv layers the environment surface over the loaded config,
// creating the host and rollup endpoints when the file did not declare
// them.
func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("reading environment overrides: %w", err)
	}

	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}

	if env.LogFile != "" {
		c.LogFile = env.LogFile
	}

	if env.RefreshSecs > 0 {
		c.RefreshInterval = time.Duration(env.RefreshSecs) * time.Second
	}

	hostRPC := env.HostRPCURL
	if hostRPC == "" {
		hostRPC = env.RPCURL
	}

	if hostRPC != "" {
		c.endpoint("host").RPC.Endpoint = hostRPC
	}

	if env.TxPoolURL != "" {
		c.endpoint("host").TxPool.Endpoint = env.TxPoolURL
	}

	if len(env.HostContracts) > 0 {
		c.endpoint("host").TxPool.FilterContracts = env.HostContracts
	}

	if env.RollupRPCURL != "" {
		c.endpoint("rollup").RPC.Endpoint = env.RollupRPCURL
	}

	if env.RollupTxPoolURL != "" {
		c.endpoint("rollup").TxPool.Endpoint = env.RollupTxPoolURL
	}

	// The remaining knobs are global and apply to every endpoint.
	for i := range c.Endpoints {
		ep := &c.Endpoints[i]

		if env.BlockDelaySecs > 0 {
			ep.Collector.BlockDelayThreshold = time.Duration(env.BlockDelaySecs) * time.Second
		}

		if env.MaxBlockHistory > 0 {
			ep.Collector.MaxBlockHistory = env.MaxBlockHistory
		}

		if env.TxPoolMaxRows > 0 {
			ep.TxPool.MaxRows = env.TxPoolMaxRows
		}
	}

	return nil
}

// endpoint returns the named endpoint, appending a new one when the
// file did not declare it.
func (c *Config) endpoint(name string) *EndpointConfig {
	for i := range c.Endpoints {
		if c.Endpoints[i].Name == name {
			return &c.Endpoints[i]
		}
	}

	c.Endpoints = append(c.Endpoints, EndpointConfig{Name: name})

	return &c.Endpoints[len(c.Endpoints)-1]
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive")
	}

	if len(c.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required: configure endpoints or set RPC_URL")
	}

	seen := make(map[string]struct{}, len(c.Endpoints))

	for i := range c.Endpoints {
		ep := &c.Endpoints[i]

		if ep.Name == "" {
			return fmt.Errorf("endpoints[%d]: name is required", i)
		}

		if _, ok := seen[ep.Name]; ok {
			return fmt.Errorf("endpoints[%d]: duplicate name %q", i, ep.Name)
		}

		seen[ep.Name] = struct{}{}

		if ep.RPC.Endpoint == "" {
			return fmt.Errorf("endpoints[%d]: rpc.endpoint is required", i)
		}

		for _, addr := range ep.TxPool.FilterContracts {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("endpoints[%d]: filter contract %q is not a hex address", i, addr)
			}
		}
	}

	return nil
}
