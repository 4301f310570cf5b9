package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultWebhookURL is where lead exports are posted when no webhook is
// configured.
const DefaultWebhookURL = "https://n8n.chatpgs.com/webhook-test/leads/googlemaps"

// Config holds the full application configuration.
type Config struct {
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Tavily     TavilyConfig     `yaml:"tavily" mapstructure:"tavily"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// GeminiConfig holds Gemini API settings. Gemini grounds discovery and is
// the default extraction provider.
type GeminiConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	DiscoveryModel  string `yaml:"discovery_model" mapstructure:"discovery_model"`
	ExtractionModel string `yaml:"extraction_model" mapstructure:"extraction_model"`
}

// TavilyConfig holds Tavily search settings.
type TavilyConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	SearchDepth string `yaml:"search_depth" mapstructure:"search_depth"`
	MaxResults  int    `yaml:"max_results" mapstructure:"max_results"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// DiscoveryConfig configures the discovery step.
type DiscoveryConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // gemini | perplexity
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// RetrievalConfig configures website content retrieval.
type RetrievalConfig struct {
	Fallbacks   []string `yaml:"fallbacks" mapstructure:"fallbacks"` // jina, local
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string   `yaml:"user_agent" mapstructure:"user_agent"`
}

// EnrichConfig configures the enrichment fan-out.
type EnrichConfig struct {
	Provider           string  `yaml:"provider" mapstructure:"provider"` // gemini | anthropic
	MaxConcurrency     int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	RateLimitRPS       float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	SkipWithoutWebsite bool    `yaml:"skip_without_website" mapstructure:"skip_without_website"`
}

// RetryConfig holds the default retry policy for provider calls.
type RetryConfig struct {
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialDelayMs int     `yaml:"initial_delay_ms" mapstructure:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExportConfig configures lead exports.
type ExportConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Dir        string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials have empty defaults so env-only values unmarshal.
	for _, key := range []string{"gemini.key", "gemini.base_url", "tavily.key", "jina.key", "anthropic.key", "perplexity.key"} {
		v.SetDefault(key, "")
	}

	// Defaults
	v.SetDefault("gemini.discovery_model", "gemini-2.5-flash")
	v.SetDefault("gemini.extraction_model", "gemini-2.5-flash")
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.search_depth", "advanced")
	v.SetDefault("tavily.max_results", 2)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("discovery.provider", "gemini")
	v.SetDefault("discovery.max_retries", 2)
	v.SetDefault("retrieval.fallbacks", []string{})
	v.SetDefault("retrieval.timeout_secs", 30)
	v.SetDefault("retrieval.user_agent", "prospect-cli/1.0")
	v.SetDefault("enrich.provider", "gemini")
	v.SetDefault("enrich.max_concurrency", 5)
	v.SetDefault("enrich.rate_limit_rps", 0)
	v.SetDefault("enrich.skip_without_website", true)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospect.db")
	v.SetDefault("export.webhook_url", DefaultWebhookURL)
	v.SetDefault("export.dir", ".")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the settings required by mode are present. Modes:
// "pipeline" (discovery and enrichment), "serve" (pipeline plus HTTP API)
// and "store" (commands that only touch the lead database).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "pipeline", "serve":
		errs = append(errs, c.validateProviders()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.validateStore()...)

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateProviders() []string {
	var errs []string
	if c.Gemini.Key == "" {
		errs = append(errs, "gemini.key is required")
	}
	if c.Tavily.Key == "" {
		errs = append(errs, "tavily.key is required")
	}

	switch c.Discovery.Provider {
	case "", "gemini":
	case "perplexity":
		if c.Perplexity.Key == "" {
			errs = append(errs, "perplexity.key is required when discovery.provider is perplexity")
		}
	default:
		errs = append(errs, "discovery.provider must be gemini or perplexity")
	}

	switch c.Enrich.Provider {
	case "", "gemini":
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required when enrich.provider is anthropic")
		}
	default:
		errs = append(errs, "enrich.provider must be gemini or anthropic")
	}

	if c.Enrich.MaxConcurrency < 1 || c.Enrich.MaxConcurrency > 50 {
		errs = append(errs, "enrich.max_concurrency must be between 1 and 50")
	}
	if c.Enrich.RateLimitRPS < 0 {
		errs = append(errs, "enrich.rate_limit_rps must be >= 0")
	}
	for _, fb := range c.Retrieval.Fallbacks {
		if fb != "jina" && fb != "local" {
			errs = append(errs, "retrieval.fallbacks entries must be jina or local")
		}
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return []string{"store.driver must be sqlite or postgres"}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
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
