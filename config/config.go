// Package config loads service configuration from an optional JSON file
// plus SAGE_-prefixed environment variables, with per-section validation.
// Search providers without an API key are treated as absent capabilities,
// not as configuration errors.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Articles  ArticlesConfig  `mapstructure:"articles"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	return nil
}

// GeneratorConfig selects and tunes the text-generation backend. Mode is
// "openai" for direct chat completions or "job" for submit/poll backends.
type GeneratorConfig struct {
	Mode        string    `mapstructure:"mode"`
	APIKey      string    `mapstructure:"api_key"`
	BaseURL     string    `mapstructure:"base_url"`
	Model       string    `mapstructure:"model"`
	Temperature float64   `mapstructure:"temperature"`
	MaxTokens   int       `mapstructure:"max_tokens"`
	Job         JobConfig `mapstructure:"job"`
}

type JobConfig struct {
	SubmitURL    string        `mapstructure:"submit_url"`
	StatusURL    string        `mapstructure:"status_url"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollStep     time.Duration `mapstructure:"poll_step"`
	PollCap      time.Duration `mapstructure:"poll_cap"`
}

func (g GeneratorConfig) Validate() error {
	switch g.Mode {
	case "openai":
		if strings.TrimSpace(g.APIKey) == "" && strings.TrimSpace(g.BaseURL) == "" {
			return fmt.Errorf("generator.api_key required in openai mode (or set generator.base_url for a keyless gateway)")
		}
	case "job":
		if strings.TrimSpace(g.Job.SubmitURL) == "" || strings.TrimSpace(g.Job.StatusURL) == "" {
			return fmt.Errorf("generator.job.submit_url and generator.job.status_url required in job mode")
		}
	default:
		return fmt.Errorf("generator.mode must be \"openai\" or \"job\", got %q", g.Mode)
	}
	return nil
}

// ProviderConfig is one search provider. A provider is active only when it
// is enabled and carries an API key; anything else is an absent capability.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

func (p ProviderConfig) Active() bool {
	return p.Enabled && strings.TrimSpace(p.APIKey) != ""
}

// ToolsConfig covers the search providers and the tool-level knobs.
type ToolsConfig struct {
	Serper      ProviderConfig `mapstructure:"serper"`
	Tavily      ProviderConfig `mapstructure:"tavily"`
	CallTimeout time.Duration  `mapstructure:"call_timeout"`
	CacheTTL    time.Duration  `mapstructure:"cache_ttl"`
	ForceWeb    bool           `mapstructure:"force_web"`
	ForceImages bool           `mapstructure:"force_images"`
	ForceVideos bool           `mapstructure:"force_videos"`
}

func (t ToolsConfig) Normalize() ToolsConfig {
	t.Serper.APIKey = strings.TrimSpace(t.Serper.APIKey)
	t.Tavily.APIKey = strings.TrimSpace(t.Tavily.APIKey)
	if t.CallTimeout <= 0 {
		t.CallTimeout = 4 * time.Second
	}
	if t.CacheTTL <= 0 {
		t.CacheTTL = 5 * time.Minute
	}
	return t
}

// PipelineConfig tunes the answer synthesis passes.
type PipelineConfig struct {
	Budget            time.Duration `mapstructure:"budget"`
	MinWebBudget      time.Duration `mapstructure:"min_web_budget"`
	WebResults        int           `mapstructure:"web_results"`
	Images            int           `mapstructure:"images"`
	Videos            int           `mapstructure:"videos"`
	ReviseRatio       float64       `mapstructure:"revise_ratio"`
	ReviseMinChars    int           `mapstructure:"revise_min_chars"`
	HistoryTurns      int           `mapstructure:"history_turns"`
	MaxSources        int           `mapstructure:"max_sources"`
	MaxExcerpts       int           `mapstructure:"max_excerpts"`
	EvidenceChars     int           `mapstructure:"evidence_chars"`
	CasualTones       []string      `mapstructure:"casual_tones"`
	RetrievalSnippets int           `mapstructure:"retrieval_snippets"`
}

func (p PipelineConfig) Validate() error {
	if p.ReviseRatio != 0 && (p.ReviseRatio <= 0 || p.ReviseRatio >= 1) {
		return fmt.Errorf("pipeline.revise_ratio must be between 0 and 1 exclusive")
	}
	if p.Budget < 0 || p.MinWebBudget < 0 {
		return fmt.Errorf("pipeline budgets cannot be negative")
	}
	return nil
}

// StorageConfig contains the persistence backends. Both are optional: with
// no Postgres the service skips turn history, with no redis the article
// cache falls back to live fetches.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN resolves the connection string, empty when Postgres is unconfigured.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	if strings.TrimSpace(p.Host) == "" || strings.TrimSpace(p.DBName) == "" {
		return ""
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

func (p PostgresConfig) Enabled() bool { return p.DSN() != "" }

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	host := strings.TrimSpace(p.Host) != ""
	name := strings.TrimSpace(p.DBName) != ""
	if host != name {
		return fmt.Errorf("storage.postgres.host and storage.postgres.dbname must be set together")
	}
	return nil
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

// RetrievalConfig controls the per-session turn index.
type RetrievalConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxSessions int           `mapstructure:"max_sessions"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
}

// ArticlesConfig controls the article cache.
type ArticlesConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// Load reads configuration. An explicit path must exist; otherwise the
// usual locations are searched and a missing file is fine, since defaults
// plus environment variables cover a minimal setup.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("sage")
	v.SetConfigType("json")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	overrideFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Tools = cfg.Tools.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Generator.Validate(); err != nil {
		return err
	}
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Postgres.Validate(); err != nil {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")

	v.SetDefault("generator.mode", "openai")
	v.SetDefault("generator.model", "gpt-4o-mini")
	v.SetDefault("generator.temperature", 0.4)
	v.SetDefault("generator.max_tokens", 1024)
	v.SetDefault("generator.job.max_wait", "60s")
	v.SetDefault("generator.job.poll_interval", "1s")
	v.SetDefault("generator.job.poll_step", "500ms")
	v.SetDefault("generator.job.poll_cap", "5s")

	v.SetDefault("tools.serper.enabled", true)
	v.SetDefault("tools.tavily.enabled", true)
	v.SetDefault("tools.call_timeout", "4s")
	v.SetDefault("tools.cache_ttl", "5m")

	v.SetDefault("pipeline.budget", "9s")
	v.SetDefault("pipeline.min_web_budget", "2s")
	v.SetDefault("pipeline.web_results", 5)
	v.SetDefault("pipeline.images", 4)
	v.SetDefault("pipeline.videos", 3)
	v.SetDefault("pipeline.revise_ratio", 0.7)
	v.SetDefault("pipeline.revise_min_chars", 600)
	v.SetDefault("pipeline.history_turns", 8)
	v.SetDefault("pipeline.max_sources", 6)
	v.SetDefault("pipeline.max_excerpts", 4)
	v.SetDefault("pipeline.evidence_chars", 2400)
	v.SetDefault("pipeline.casual_tones", []string{"casual", "eli5", "simple"})
	v.SetDefault("pipeline.retrieval_snippets", 3)

	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.redis.db", 0)

	v.SetDefault("retrieval.enabled", true)
	v.SetDefault("retrieval.max_sessions", 256)
	v.SetDefault("retrieval.session_ttl", "30m")

	v.SetDefault("articles.ttl", "24h")
	v.SetDefault("articles.fetch_timeout", "5s")
}

// overrideFromEnv maps the conventional unprefixed variable names onto
// their config keys, so deployments can keep using OPENAI_API_KEY and
// friends without learning the SAGE_ spelling.
func overrideFromEnv(v *viper.Viper) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		v.Set("generator.api_key", key)
	}
	if key := os.Getenv("SERPER_API_KEY"); key != "" {
		v.Set("tools.serper.api_key", key)
	}
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		v.Set("tools.tavily.api_key", key)
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		v.Set("storage.postgres.url", dsn)
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		v.Set("storage.redis.addr", addr)
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		v.Set("server.jwt_secret", secret)
	}
}
