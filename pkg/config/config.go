package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the indexer configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Chain       ChainConfig       `mapstructure:"chain"`
	Collections CollectionsConfig `mapstructure:"collections"`
	Scanner     ScannerConfig     `mapstructure:"scanner"`
	Resolver    ResolverConfig    `mapstructure:"resolver"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ChainConfig contains chain endpoint settings
type ChainConfig struct {
	RPCURL             string `mapstructure:"rpc_url" validate:"required"`
	MaxInflightCalls   int64  `mapstructure:"max_inflight_calls" default:"4" validate:"min=1"`
	DelegationRegistry string `mapstructure:"delegation_registry"`
}

// SeasonConfig is one memes season's inclusive token-ID range
type SeasonConfig struct {
	Season int   `mapstructure:"season"`
	FromID int64 `mapstructure:"from_id"`
	ToID   int64 `mapstructure:"to_id"`
}

// CollectionsConfig names the tracked contracts and scoring constants
type CollectionsConfig struct {
	Memes     string `mapstructure:"memes" validate:"required"`
	Gradients string `mapstructure:"gradients" validate:"required"`
	Nextgen   string `mapstructure:"nextgen"`

	MemeSeasons     []SeasonConfig `mapstructure:"meme_seasons"`
	GenesisTokenID  int64          `mapstructure:"genesis_token_id" default:"1"`
	NakamotoTokenID int64          `mapstructure:"nakamoto_token_id" default:"4"`

	Meme8EditionAdjustment int64  `mapstructure:"meme8_edition_adjustment"`
	ExcludedBurnTx         string `mapstructure:"excluded_burn_tx"`
}

// ScannerConfig contains block-range scan settings
type ScannerConfig struct {
	WindowSize           uint64        `mapstructure:"window_size" default:"2000" validate:"min=1"`
	Pause                time.Duration `mapstructure:"pause"`
	TransferStartBlock   uint64        `mapstructure:"transfer_start_block"`
	DelegationStartBlock uint64        `mapstructure:"delegation_start_block"`
	EscrowAddresses      []string      `mapstructure:"escrow_addresses"`
}

// ResolverConfig contains value-resolution settings
type ResolverConfig struct {
	PaymentTokens      []string `mapstructure:"payment_tokens"`
	RoyaltyRecipients  []string `mapstructure:"royalty_recipients"`
	ProceedsRecipients []string `mapstructure:"proceeds_recipients"`
	Concurrency        int      `mapstructure:"concurrency" default:"4" validate:"min=1"`
}

// ScoringConfig contains scoring engine settings
type ScoringConfig struct {
	Concurrency int `mapstructure:"concurrency" default:"8" validate:"min=1"`
}

// JobsConfig contains the recurring job intervals. Intervals are bounded to
// keep the chain endpoint polite and the snapshot fresh.
type JobsConfig struct {
	TransfersInterval   time.Duration `mapstructure:"transfers_interval" default:"1m" validate:"min=1m,max=60m"`
	DelegationsInterval time.Duration `mapstructure:"delegations_interval" default:"2m" validate:"min=1m,max=60m"`
	ResolveInterval     time.Duration `mapstructure:"resolve_interval" default:"5m" validate:"min=1m,max=60m"`
	ScoringInterval     time.Duration `mapstructure:"scoring_interval" default:"15m" validate:"min=1m,max=60m"`
	// Disabled lists job namespaces registered but held until started manually.
	Disabled []string `mapstructure:"disabled"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "tdh_indexer")

	// Scanner defaults
	viper.SetDefault("scanner.pause", "500ms")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
