// Package config provides configuration management for the docwallet
// service.
//
// Configuration is loaded from multiple sources with proper precedence
// (later sources override earlier ones):
//  1. Default values
//  2. Configuration file (./config.yaml, ./configs/config.yaml,
//     ~/.docwallet/config.yaml, /etc/docwallet/config.yaml)
//  3. Environment variables with the DOCWALLET_ prefix
//
// A handful of legacy environment names are honored without the prefix
// for compatibility with existing deployments: DOCWALLET_MASTER_KEY,
// DOCWALLET_DOC_ID, DOCWALLET_NAME_PREFIX, DOCWALLET_DISCOVER_ALL,
// PUBLIC_BASE_URL, HTTP_PORT and DEMO_MODE.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig contains the approval HTTP surface configuration.
type ServerConfig struct {
	// Host is the server bind address (default: 0.0.0.0)
	Host string `mapstructure:"host"`

	// Port is the server listen port (default: 8080)
	Port int `mapstructure:"port"`

	// PublicBaseURL is the externally reachable base used when writing
	// approval links into document cells
	PublicBaseURL string `mapstructure:"public_base_url"`

	// ReadTimeout is the maximum duration for reading requests
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration for writing responses
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimit is the maximum requests per second (0 = no limit)
	RateLimit float64 `mapstructure:"rate_limit"`
}

// StoreConfig contains the durable repository settings.
type StoreConfig struct {
	// Path is the bbolt database file location
	Path string `mapstructure:"path"`
}

// DocsConfig contains document backend and discovery settings.
type DocsConfig struct {
	// Backend selects the document adapter: "gdocs" or "memory"
	Backend string `mapstructure:"backend"`

	// CredentialsFile is the Google service-account key file for gdocs
	CredentialsFile string `mapstructure:"credentials_file"`

	// DocID pins the service to a single document when set
	DocID string `mapstructure:"doc_id"`

	// NamePrefix filters discovery to documents whose title starts with it
	NamePrefix string `mapstructure:"name_prefix"`

	// DiscoverAll disables the name-prefix filter
	DiscoverAll bool `mapstructure:"discover_all"`

	// TemplateBatch caps how many documents get template creation per
	// discovery run to avoid rate-limiting the backend
	TemplateBatch int `mapstructure:"template_batch"`
}

// VaultConfig contains secret encryption settings.
type VaultConfig struct {
	// MasterKey encrypts per-document wallet secrets at rest (required)
	MasterKey string `mapstructure:"master_key"`
}

// EVMPortConfig configures the EVM chain integration. The chain id is
// read from the node at connect time.
type EVMPortConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	RPCURL  string `mapstructure:"rpc_url"`

	// ExplorerBase is the block explorer URL prefix used in result links
	ExplorerBase string `mapstructure:"explorer_base"`

	// StablecoinContract is the ERC-20 contract address used for the
	// stablecoin port (USDC)
	StablecoinContract string `mapstructure:"stablecoin_contract"`
}

// StacksPortConfig configures the Stacks chain integration. Reads go to
// the Hiro-compatible API; transaction signing is delegated to the
// signer sidecar.
type StacksPortConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIURL  string `mapstructure:"api_url"`
	Network string `mapstructure:"network"`

	// SignerURL is the transaction signer sidecar; empty disables sends
	SignerURL string `mapstructure:"signer_url"`

	// ExplorerBase is the block explorer URL prefix used in result links
	ExplorerBase string `mapstructure:"explorer_base"`
}

// RESTPortConfig configures a generic HTTP integration port.
type RESTPortConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIURL  string `mapstructure:"api_url"`
}

// MarketConfig configures price sources. The secondary URL is the
// fallback consulted when the primary fails or returns zero.
type MarketConfig struct {
	PrimaryURL   string `mapstructure:"primary_url"`
	SecondaryURL string `mapstructure:"secondary_url"`
}

// PortsConfig aggregates all integration port settings. Every port is
// optional at runtime; commands requiring a disabled port fail with a
// precondition error.
type PortsConfig struct {
	EVM     EVMPortConfig    `mapstructure:"evm"`
	Stacks  StacksPortConfig `mapstructure:"stacks"`
	Bridge  RESTPortConfig   `mapstructure:"bridge"`
	Channel RESTPortConfig   `mapstructure:"channel"`
	Faucet  RESTPortConfig   `mapstructure:"faucet"`
	Market  MarketConfig     `mapstructure:"market"`
}

// IntervalsConfig holds the per-tick firing intervals.
type IntervalsConfig struct {
	Discovery time.Duration `mapstructure:"discovery"`
	Poll      time.Duration `mapstructure:"poll"`
	Executor  time.Duration `mapstructure:"executor"`
	Chat      time.Duration `mapstructure:"chat"`
	Balances  time.Duration `mapstructure:"balances"`
	Scheduler time.Duration `mapstructure:"scheduler"`
	Price     time.Duration `mapstructure:"price"`
	Agent     time.Duration `mapstructure:"agent"`
	Payouts   time.Duration `mapstructure:"payouts"`
}

// EngineConfig tunes the orchestration core.
type EngineConfig struct {
	// DemoMode auto-approves every command and enables faucet funding
	// during setup
	DemoMode bool `mapstructure:"demo_mode"`

	// ExecutorBudget caps commands executed per executor tick
	ExecutorBudget int `mapstructure:"executor_budget"`

	// StaleAfter is how long a command may sit APPROVED (or EXECUTING
	// across a restart) before the sweep fails it
	StaleAfter time.Duration `mapstructure:"stale_after"`

	// PollFailureLimit is the consecutive poll failure count after which
	// a document is dropped from tracking
	PollFailureLimit int `mapstructure:"poll_failure_limit"`

	// ActivityCap bounds the per-document RecentActivity history
	ActivityCap int `mapstructure:"activity_cap"`

	// AutoApprove overrides the built-in auto-approve command set when
	// non-empty (verb names, case-insensitive)
	AutoApprove []string `mapstructure:"auto_approve"`

	// AgentCooldown is the minimum spacing between identical agent
	// proposals for one document
	AgentCooldown time.Duration `mapstructure:"agent_cooldown"`

	Intervals IntervalsConfig `mapstructure:"intervals"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Format is the log format (json, text)
	Format string `mapstructure:"format"`
}

// Config is the top-level docwallet service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Docs    DocsConfig    `mapstructure:"docs"`
	Vault   VaultConfig   `mapstructure:"vault"`
	Ports   PortsConfig   `mapstructure:"ports"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SetDefaults installs the standard docwallet defaults on a viper
// instance. Interval defaults follow the typical values from operations:
// discovery 10m, poll 5s, executor 3s, balances 60s, price 15s,
// scheduler 30s, chat 5s, agent 60s, payouts 60s.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 0)

	v.SetDefault("store.path", "docwallet.db")

	v.SetDefault("docs.backend", "gdocs")
	v.SetDefault("docs.credentials_file", "")
	v.SetDefault("docs.doc_id", "")
	v.SetDefault("docs.name_prefix", "DocWallet")
	v.SetDefault("docs.discover_all", false)
	v.SetDefault("docs.template_batch", 4)

	v.SetDefault("ports.evm.enabled", false)
	v.SetDefault("ports.evm.rpc_url", "")
	v.SetDefault("ports.evm.explorer_base", "https://etherscan.io/tx")
	v.SetDefault("ports.evm.stablecoin_contract", "")
	v.SetDefault("ports.stacks.enabled", false)
	v.SetDefault("ports.stacks.api_url", "https://api.mainnet.hiro.so")
	v.SetDefault("ports.stacks.network", "mainnet")
	v.SetDefault("ports.stacks.signer_url", "")
	v.SetDefault("ports.stacks.explorer_base", "https://explorer.hiro.so")
	v.SetDefault("ports.bridge.enabled", false)
	v.SetDefault("ports.channel.enabled", false)
	v.SetDefault("ports.faucet.enabled", false)
	v.SetDefault("ports.market.primary_url", "")
	v.SetDefault("ports.market.secondary_url", "")

	v.SetDefault("engine.demo_mode", false)
	v.SetDefault("engine.executor_budget", 5)
	v.SetDefault("engine.stale_after", "1h")
	v.SetDefault("engine.poll_failure_limit", 10)
	v.SetDefault("engine.activity_cap", 50)
	v.SetDefault("engine.agent_cooldown", "30m")
	v.SetDefault("engine.intervals.discovery", "10m")
	v.SetDefault("engine.intervals.poll", "5s")
	v.SetDefault("engine.intervals.executor", "3s")
	v.SetDefault("engine.intervals.chat", "5s")
	v.SetDefault("engine.intervals.balances", "60s")
	v.SetDefault("engine.intervals.scheduler", "30s")
	v.SetDefault("engine.intervals.price", "15s")
	v.SetDefault("engine.intervals.agent", "60s")
	v.SetDefault("engine.intervals.payouts", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// bindLegacyEnv maps the historical unprefixed environment names onto
// their viper keys.
func bindLegacyEnv(v *viper.Viper) {
	v.BindEnv("vault.master_key", "DOCWALLET_MASTER_KEY")
	v.BindEnv("docs.doc_id", "DOCWALLET_DOC_ID")
	v.BindEnv("docs.name_prefix", "DOCWALLET_NAME_PREFIX")
	v.BindEnv("docs.discover_all", "DOCWALLET_DISCOVER_ALL")
	v.BindEnv("server.public_base_url", "PUBLIC_BASE_URL")
	v.BindEnv("server.port", "HTTP_PORT")
	v.BindEnv("engine.demo_mode", "DEMO_MODE")
}

// Load reads configuration from file and environment variables. If
// cfgFile is empty, standard locations are searched.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.docwallet")
		v.AddConfigPath("/etc/docwallet")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DOCWALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration for fatal omissions.
func Validate(cfg *Config) error {
	if cfg.Vault.MasterKey == "" {
		return fmt.Errorf("DOCWALLET_MASTER_KEY is required")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Engine.ExecutorBudget < 1 {
		return fmt.Errorf("executor budget must be at least 1, got %d", cfg.Engine.ExecutorBudget)
	}
	if cfg.Docs.Backend != "gdocs" && cfg.Docs.Backend != "memory" {
		return fmt.Errorf("unknown docs backend: %s", cfg.Docs.Backend)
	}
	if cfg.Docs.Backend == "gdocs" && cfg.Docs.CredentialsFile == "" {
		return fmt.Errorf("docs.credentials_file is required for the gdocs backend")
	}
	return nil
}
