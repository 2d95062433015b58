// Package config loads and validates blog-search configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Crawl         CrawlConfig         `mapstructure:"crawl"`
	Store         StoreConfig         `mapstructure:"store"`
	Blob          BlobConfig          `mapstructure:"blob"`
	PubSub        PubSubConfig        `mapstructure:"pubsub"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Index         IndexConfig         `mapstructure:"index"`
	Search        SearchConfig        `mapstructure:"search"`
}

// ServerConfig controls the search API server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxK caps the k query parameter.
	MaxK int `mapstructure:"max_k"`
	// APIKey, when set, is required in X-API-Key on /v1 routes.
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// CrawlConfig governs pagination and article fetching.
type CrawlConfig struct {
	RootURL        string          `mapstructure:"root_url"`
	Delay          time.Duration   `mapstructure:"delay"`
	PageLimit      int             `mapstructure:"page_limit"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	Workers        int             `mapstructure:"workers"`
	UserAgent      string          `mapstructure:"user_agent"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Headless       HeadlessConfig  `mapstructure:"headless"`
}

// RateLimitConfig throttles article fetches per host.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// HeadlessConfig switches page fetching to headless Chrome.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	ExecPath    string        `mapstructure:"exec_path"`
}

// StoreConfig selects the article store.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig configures the pgx pool.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// BlobConfig selects where raw article HTML is archived. Driver "none" disables archiving.
type BlobConfig struct {
	Driver      string `mapstructure:"driver"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds ingestion notification settings.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ElasticsearchConfig holds cluster connection settings.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"api_key"`
	Index     string   `mapstructure:"index"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// IndexConfig controls the indexer.
type IndexConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// SearchConfig controls hybrid retrieval.
type SearchConfig struct {
	Fusion         string  `mapstructure:"fusion"`
	LexicalBoost   float64 `mapstructure:"lexical_boost"`
	VectorBoost    float64 `mapstructure:"vector_boost"`
	RankConstant   int     `mapstructure:"rank_constant"`
	RankWindowSize int     `mapstructure:"rank_window_size"`
	NumCandidates  int     `mapstructure:"num_candidates"`
	DefaultK       int     `mapstructure:"default_k"`
}

// Load builds a Config from defaults, a config file and BLOGSEARCH_* environment variables.
// With an empty path, blogsearch.{yaml,json,toml} is looked up in the working directory,
// /etc/blogsearch and $HOME/.blogsearch; a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BLOGSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("blogsearch")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/blogsearch/")
		v.AddConfigPath("$HOME/.blogsearch")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_k", 100)
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("telemetry.service_name", "blogsearch")
	v.SetDefault("telemetry.project_id", "")
	v.SetDefault("telemetry.sample_ratio", 0.0)
	v.SetDefault("crawl.root_url", "")
	v.SetDefault("crawl.delay", 200*time.Millisecond)
	v.SetDefault("crawl.page_limit", 0)
	v.SetDefault("crawl.request_timeout", 10*time.Second)
	v.SetDefault("crawl.workers", 1)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0")
	v.SetDefault("crawl.rate_limit.rps", 0.0)
	v.SetDefault("crawl.rate_limit.burst", 1)
	v.SetDefault("crawl.headless.enabled", false)
	v.SetDefault("crawl.headless.max_parallel", 1)
	v.SetDefault("crawl.headless.nav_timeout", 30*time.Second)
	v.SetDefault("crawl.headless.exec_path", "")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "blog_posts")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("store.postgres.min_conns", 0)
	v.SetDefault("store.postgres.max_conn_lifetime", time.Hour)
	v.SetDefault("store.postgres.auto_migrate", true)
	v.SetDefault("blob.driver", "none")
	v.SetDefault("blob.prefix", "pages")
	v.SetDefault("blob.content_type", "text/html; charset=utf-8")
	v.SetDefault("blob.local_dir", "")
	v.SetDefault("blob.gcs_bucket", "")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "blog-articles")
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.api_key", "")
	v.SetDefault("elasticsearch.index", "blog_posts_index")
	v.SetDefault("embedding.provider", "http")
	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("index.batch_size", 100)
	v.SetDefault("search.fusion", "weighted")
	v.SetDefault("search.lexical_boost", 0.5)
	v.SetDefault("search.vector_boost", 0.5)
	v.SetDefault("search.rank_constant", 60)
	v.SetDefault("search.rank_window_size", 100)
	v.SetDefault("search.num_candidates", 100)
	v.SetDefault("search.default_k", 10)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.MaxK <= 0 {
		return fmt.Errorf("server.max_k must be > 0")
	}
	if c.Crawl.Delay < 0 {
		return fmt.Errorf("crawl.delay must be >= 0")
	}
	if c.Crawl.PageLimit < 0 {
		return fmt.Errorf("crawl.page_limit must be >= 0")
	}
	if c.Crawl.RequestTimeout <= 0 {
		return fmt.Errorf("crawl.request_timeout must be > 0")
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be > 0")
	}
	if c.Crawl.Headless.Enabled && c.Crawl.Headless.MaxParallel <= 0 {
		return fmt.Errorf("crawl.headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required when store.driver is postgres")
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, postgres; got %q", c.Store.Driver)
	}
	switch c.Blob.Driver {
	case "none", "memory":
	case "local":
		if c.Blob.LocalDir == "" {
			return fmt.Errorf("blob.local_dir is required when blob.driver is local")
		}
	case "gcs":
		if c.Blob.GCSBucket == "" {
			return fmt.Errorf("blob.gcs_bucket is required when blob.driver is gcs")
		}
	default:
		return fmt.Errorf("blob.driver must be one of none, memory, local, gcs; got %q", c.Blob.Driver)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic are required when pubsub is enabled")
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch.addresses must not be empty")
	}
	if c.Elasticsearch.Index == "" {
		return fmt.Errorf("elasticsearch.index is required")
	}
	switch c.Embedding.Provider {
	case "hash":
	case "http":
		if c.Embedding.BaseURL == "" || c.Embedding.Model == "" {
			return fmt.Errorf("embedding.base_url and embedding.model are required for the http provider")
		}
	default:
		return fmt.Errorf("embedding.provider must be one of http, hash; got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be > 0")
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be > 0")
	}
	switch c.Search.Fusion {
	case "weighted", "rrf", "semantic":
	default:
		return fmt.Errorf("search.fusion must be one of weighted, rrf, semantic; got %q", c.Search.Fusion)
	}
	if c.Search.NumCandidates <= 0 {
		return fmt.Errorf("search.num_candidates must be > 0")
	}
	if c.Search.DefaultK <= 0 || c.Search.DefaultK > c.Server.MaxK {
		return fmt.Errorf("search.default_k must be in (0, server.max_k]")
	}
	return nil
}
