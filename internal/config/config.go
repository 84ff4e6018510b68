package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Clean     CleanConfig     `yaml:"clean" mapstructure:"clean"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Loader    LoaderConfig    `yaml:"loader" mapstructure:"loader"`
	Blocklist BlocklistConfig `yaml:"blocklist" mapstructure:"blocklist"`
	Consult   ConsultConfig   `yaml:"consult" mapstructure:"consult"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Organize  OrganizeConfig  `yaml:"organize" mapstructure:"organize"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// CleanConfig configures the spreadsheet cleaning engine.
type CleanConfig struct {
	CheckHistory       bool     `yaml:"check_history" mapstructure:"check_history"`
	SaveToHistory      bool     `yaml:"save_to_history" mapstructure:"save_to_history"`
	Backup             bool     `yaml:"backup" mapstructure:"backup"`
	CheckBlocklist     bool     `yaml:"check_blocklist" mapstructure:"check_blocklist"`
	ProhibitedCNAEs    []string `yaml:"prohibited_cnaes" mapstructure:"prohibited_cnaes"`
	BlocklistBatchSize int      `yaml:"blocklist_batch_size" mapstructure:"blocklist_batch_size"`
}

// EnrichConfig configures the phone enrichment engine.
type EnrichConfig struct {
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	Strategy  string `yaml:"strategy" mapstructure:"strategy"`
}

// LoaderConfig configures bulk loading of the phone directory and root feed.
type LoaderConfig struct {
	ChunkSize     int `yaml:"chunk_size" mapstructure:"chunk_size"`
	RootChunkSize int `yaml:"root_chunk_size" mapstructure:"root_chunk_size"`
}

// BlocklistConfig configures blocklist ingestion.
type BlocklistConfig struct {
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// ConsultConfig configures the remote consultation queue.
type ConsultConfig struct {
	TokenURL     string        `yaml:"token_url" mapstructure:"token_url"`
	QueryURL     string        `yaml:"query_url" mapstructure:"query_url"`
	BatchSize    int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	Cooldown     time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
	Mode         string        `yaml:"mode" mapstructure:"mode"`
	ResultColumn string        `yaml:"result_column" mapstructure:"result_column"`
	Primary      Credentials   `yaml:"primary" mapstructure:"primary"`
	Secondary    Credentials   `yaml:"secondary" mapstructure:"secondary"`
}

// Credentials holds one client-credentials pair for the eligibility API.
type Credentials struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
}

// ReportConfig configures the call-report endpoints.
type ReportConfig struct {
	CallDetailURL   string `yaml:"call_detail_url" mapstructure:"call_detail_url"`
	OperatorTimeURL string `yaml:"operator_time_url" mapstructure:"operator_time_url"`
	Token           string `yaml:"token" mapstructure:"token"`
}

// OrganizeConfig configures vendor layout conversion.
type OrganizeConfig struct {
	ProfilesPath string `yaml:"profiles_path" mapstructure:"profiles_path"`
}

// ServerConfig configures the queue HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADBASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("clean.check_history", true)
	v.SetDefault("clean.save_to_history", true)
	v.SetDefault("clean.backup", true)
	v.SetDefault("clean.check_blocklist", false)
	v.SetDefault("clean.blocklist_batch_size", 1000)
	v.SetDefault("enrich.batch_size", 2000)
	v.SetDefault("enrich.strategy", "overwrite")
	v.SetDefault("loader.chunk_size", 5000)
	v.SetDefault("loader.root_chunk_size", 5000)
	v.SetDefault("blocklist.chunk_size", 50000)
	v.SetDefault("consult.batch_size", 20000)
	v.SetDefault("consult.max_attempts", 3)
	v.SetDefault("consult.retry_delay", 6*time.Minute)
	v.SetDefault("consult.cooldown", 3*time.Minute)
	v.SetDefault("consult.mode", "primary")
	v.SetDefault("consult.result_column", "")
	v.SetDefault("organize.profiles_path", "layouts.yaml")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by a command mode are present.
// Known modes: "store", "consult", "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	}

	switch mode {
	case "store":
		requireStore()
	case "consult":
		requireStore()
		if c.Consult.TokenURL == "" {
			missing = append(missing, "consult.token_url is required")
		}
		if c.Consult.QueryURL == "" {
			missing = append(missing, "consult.query_url is required")
		}
		if c.Consult.Primary.ClientID == "" || c.Consult.Primary.ClientSecret == "" {
			missing = append(missing, "consult.primary credentials are required")
		}
		if c.Consult.BatchSize < 1 {
			missing = append(missing, "consult.batch_size must be > 0")
		}
		if c.Consult.MaxAttempts < 1 {
			missing = append(missing, "consult.max_attempts must be > 0")
		}
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
