// Package config loads the workspace configuration: review policy,
// retrieval backends, provider settings and the check item catalogue.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/application"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/messaging"
	"github.com/felixgeelhaar/smartreviewer/pkg/storage"
)

// Retrieval backend kinds.
const (
	BackendFixture = "fixture"
	BackendMCP     = "mcp"
	BackendPlugin  = "plugin"
	BackendGRPC    = "grpc"
)

// Result store kinds.
const (
	StoreFilesystem = "filesystem"
	StoreS3         = "s3"
)

// ProviderConfig selects the judgment model.
type ProviderConfig struct {
	Name         string `yaml:"name,omitempty"`
	Model        string `yaml:"model,omitempty"`
	MaxRetries   int    `yaml:"max_retries,omitempty"`
	RetryDelayMs int    `yaml:"retry_delay_ms,omitempty"`
	TimeoutSec   int    `yaml:"timeout_sec,omitempty"`
}

// RetrievalConfig selects where evidence comes from.
type RetrievalConfig struct {
	Backend      string            `yaml:"backend,omitempty"`
	FixturePath  string            `yaml:"fixture_path,omitempty"`
	PluginPath   string            `yaml:"plugin_path,omitempty"`
	PluginConfig map[string]string `yaml:"plugin_config,omitempty"`
	GRPCAddr     string            `yaml:"grpc_addr,omitempty"`
	TopK         int               `yaml:"top_k,omitempty"`
	Threshold    float64           `yaml:"threshold,omitempty"`
	MaxDepth     int               `yaml:"max_depth,omitempty"`
	Limit        int               `yaml:"limit,omitempty"`
	Collection   string            `yaml:"collection,omitempty"`
}

// CacheConfig enables the redis response cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	TTLSec    int    `yaml:"ttl_sec,omitempty"`
}

// StoreConfig selects where results are persisted.
type StoreConfig struct {
	Backend   string `yaml:"backend,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

// GitHubConfig is used by publish.
type GitHubConfig struct {
	TokenEnv string `yaml:"token_env,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// ReviewConfig is the content of .smartreviewer/review.yaml.
type ReviewConfig struct {
	Parallelism       int     `yaml:"parallelism,omitempty"`
	EvalParallelism   int     `yaml:"eval_parallelism,omitempty"`
	AdapterTimeoutSec int     `yaml:"adapter_timeout_sec,omitempty"`
	PerItemTimeoutSec int     `yaml:"per_item_timeout_sec,omitempty"`
	RunTimeoutSec     int     `yaml:"run_timeout_sec,omitempty"`
	ContextBudget     int     `yaml:"context_budget,omitempty"`
	MaxTokens         int     `yaml:"max_tokens,omitempty"`
	MaxFindings       int     `yaml:"max_findings,omitempty"`
	RetryDelayMs      int     `yaml:"retry_delay_ms,omitempty"`
	Tolerance         float64 `yaml:"tolerance,omitempty"`

	Provider   ProviderConfig            `yaml:"provider,omitempty"`
	Retrieval  RetrievalConfig           `yaml:"retrieval,omitempty"`
	MCPServers []retrieval.MCPServer     `yaml:"mcp_servers,omitempty"`
	Cache      CacheConfig               `yaml:"cache,omitempty"`
	Store      StoreConfig               `yaml:"store,omitempty"`
	Webhooks   []events.WebhookEndpoint  `yaml:"webhooks,omitempty"`
	Messaging  []messaging.AdapterConfig `yaml:"messaging,omitempty"`
	GitHub     GitHubConfig              `yaml:"github,omitempty"`
}

func LoadReviewConfig(root string) (*ReviewConfig, error) {
	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(storage.ConfigFile)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- path is confined to the workspace directory
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read review config: %w", err)
	}

	var cfg ReviewConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SaveReviewConfig(root string, cfg *ReviewConfig) error {
	if cfg == nil {
		return fmt.Errorf("review config is nil")
	}

	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(storage.ConfigFile)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal review config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Validate rejects values that cannot describe a run.
func (c *ReviewConfig) Validate() error {
	if c.Parallelism < 0 || c.EvalParallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}
	if c.Tolerance < 0 || c.Tolerance > 1 {
		return fmt.Errorf("tolerance %v out of range [0,1]", c.Tolerance)
	}
	if t := c.Retrieval.Threshold; t < 0 || t > 1 {
		return fmt.Errorf("retrieval threshold %v out of range [0,1]", t)
	}
	switch c.Retrieval.Backend {
	case "", BackendFixture, BackendMCP:
	case BackendPlugin:
		if c.Retrieval.PluginPath == "" {
			return fmt.Errorf("retrieval backend plugin requires plugin_path")
		}
	case BackendGRPC:
		if c.Retrieval.GRPCAddr == "" {
			return fmt.Errorf("retrieval backend grpc requires grpc_addr")
		}
	default:
		return fmt.Errorf("unknown retrieval backend %q", c.Retrieval.Backend)
	}
	switch c.Store.Backend {
	case "", StoreFilesystem, StoreS3:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	for _, s := range c.MCPServers {
		if s.Name == "" {
			return fmt.Errorf("mcp server without name")
		}
	}
	for _, ep := range c.Webhooks {
		if ep.Enabled && ep.URL == "" {
			return fmt.Errorf("webhook %q has no url", ep.Name)
		}
	}
	for _, m := range c.Messaging {
		if m.Enabled && m.URL == "" {
			return fmt.Errorf("messaging adapter %q has no url", m.Name)
		}
	}
	return nil
}

// ReviewOptions overlays the configured policy on the defaults.
func (c *ReviewConfig) ReviewOptions() application.ReviewOptions {
	opts := application.DefaultReviewOptions()
	if c == nil {
		return opts
	}
	if c.Parallelism > 0 {
		opts.Parallelism = c.Parallelism
	}
	if c.PerItemTimeoutSec > 0 {
		opts.PerItemTimeout = time.Duration(c.PerItemTimeoutSec) * time.Second
	}
	if c.RunTimeoutSec > 0 {
		opts.RunTimeout = time.Duration(c.RunTimeoutSec) * time.Second
	}
	if c.ContextBudget != 0 {
		opts.ContextBudget = c.ContextBudget
	}
	if c.MaxTokens > 0 {
		opts.MaxTokens = c.MaxTokens
	}
	if c.MaxFindings > 0 {
		opts.MaxFindings = c.MaxFindings
	}
	return opts
}

// EvalOptions builds the evaluation policy around ReviewOptions.
func (c *ReviewConfig) EvalOptions() application.EvalOptions {
	opts := application.EvalOptions{Parallelism: 2, Tolerance: 0.05, Review: c.ReviewOptions()}
	if c == nil {
		return opts
	}
	if c.EvalParallelism > 0 {
		opts.Parallelism = c.EvalParallelism
	}
	if c.Tolerance > 0 {
		opts.Tolerance = c.Tolerance
	}
	return opts
}

// RetrievalSettings builds the orchestrator configuration. Zero values
// are filled by the orchestrator.
func (c *ReviewConfig) RetrievalSettings() application.RetrievalConfig {
	if c == nil {
		return application.RetrievalConfig{}
	}
	return application.RetrievalConfig{
		AdapterTimeout: time.Duration(c.AdapterTimeoutSec) * time.Second,
		RetryDelay:     time.Duration(c.RetryDelayMs) * time.Millisecond,
		TopK:           c.Retrieval.TopK,
		Threshold:      c.Retrieval.Threshold,
		MaxDepth:       c.Retrieval.MaxDepth,
		Limit:          c.Retrieval.Limit,
		Collection:     c.Retrieval.Collection,
	}
}

// RedisOptions returns the cache connection, or false when caching is off.
func (c *ReviewConfig) RedisOptions() (retrieval.RedisOptions, bool) {
	if c == nil || c.Cache.RedisAddr == "" {
		return retrieval.RedisOptions{}, false
	}
	ttl := time.Duration(c.Cache.TTLSec) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return retrieval.RedisOptions{
		Address:  c.Cache.RedisAddr,
		Password: c.Cache.Password,
		DB:       c.Cache.DB,
		TTL:      ttl,
	}, true
}

// EnabledMCPServers returns the servers marked enabled, in order.
func (c *ReviewConfig) EnabledMCPServers() []retrieval.MCPServer {
	if c == nil {
		return nil
	}
	var out []retrieval.MCPServer
	for _, s := range c.MCPServers {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
