package config

import "time"

// Defaults applied by Validate when a field is left unset
const (
	DefaultUserAgent            = "Sitemap/1.0"
	DefaultMaxDepth             = 3
	DefaultMaxRetries           = 5
	DefaultBackoffMs            = 100
	DefaultBackoffMultiplier    = 2.0
	DefaultMaxBackoffMs         = 30000
	DefaultBatchSize            = 2048
	DefaultMaxResponseBytes     = 50 * 1024 * 1024  // 50 MB
	DefaultMaxDecompressedBytes = 256 * 1024 * 1024 // 256 MB
	CacheBackendMemory          = "memory"
	CacheBackendBadger          = "badger"
	OutputFormatJSONL           = "jsonl"
	OutputFormatTSV             = "tsv"
)

// SiteConfig holds per-domain overrides. A site applies when its base_url
// normalizes to the same base domain as the one being processed.
type SiteConfig struct {
	BaseURL            string        `yaml:"base_url"`
	FollowRobots       *bool         `yaml:"follow_robots,omitempty"`
	MaxDepth           *int          `yaml:"max_depth,omitempty"`
	IgnoreErrors       *bool         `yaml:"ignore_errors,omitempty"`
	UserAgent          string        `yaml:"user_agent,omitempty"`
	DelayPerHost       time.Duration `yaml:"delay_per_host,omitempty"`
	URLIncludePatterns []string      `yaml:"url_include_patterns,omitempty"` // Regex; entry kept only if one matches
	URLExcludePatterns []string      `yaml:"url_exclude_patterns,omitempty"` // Regex; entry dropped if one matches
}

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent               string                `yaml:"user_agent"`
	FollowRobots            *bool                 `yaml:"follow_robots,omitempty"` // nil = default (true)
	RespectRobotsDisallow   bool                  `yaml:"respect_robots_disallow,omitempty"`
	MaxDepth                *int                  `yaml:"max_depth,omitempty"`   // nil = default (3)
	MaxRetries              *int                  `yaml:"max_retries,omitempty"` // nil = default (5)
	BackoffMs               int                   `yaml:"backoff_ms,omitempty"`
	BackoffMultiplier       float64               `yaml:"backoff_multiplier,omitempty"`
	MaxBackoffMs            int                   `yaml:"max_backoff_ms,omitempty"`
	IgnoreErrors            bool                  `yaml:"ignore_errors,omitempty"`
	DedupeSitemaps          bool                  `yaml:"dedupe_sitemaps,omitempty"`
	URLIncludePatterns      []string              `yaml:"url_include_patterns,omitempty"`
	URLExcludePatterns      []string              `yaml:"url_exclude_patterns,omitempty"`
	BatchSize               int                   `yaml:"batch_size,omitempty"`
	MaxParallelDomains      int                   `yaml:"max_parallel_domains,omitempty"`
	MaxRequestsPerHost      int                   `yaml:"max_requests_per_host,omitempty"`
	DefaultDelayPerHost     time.Duration         `yaml:"default_delay_per_host,omitempty"`
	GlobalTimeout           time.Duration         `yaml:"global_timeout,omitempty"` // Wall-clock budget for one run (0 = none)
	MaxResponseBytes        int64                 `yaml:"max_response_bytes,omitempty"`
	MaxDecompressedBytes    int64                 `yaml:"max_decompressed_bytes,omitempty"`
	BruteforceRatePerSecond float64               `yaml:"bruteforce_rate_per_second,omitempty"` // 0 = unlimited
	CacheBackend            string                `yaml:"cache_backend,omitempty"`              // "memory" or "badger"
	OutputFormat            string                `yaml:"output_format,omitempty"`              // "jsonl" or "tsv"
	OutputDir               string                `yaml:"output_dir,omitempty"`                 // Where background jobs write results
	HTTPClientSettings      HTTPClientConfig      `yaml:"http_client_settings,omitempty"`
	Sites                   map[string]SiteConfig `yaml:"sites,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// DomainOptions is the fully resolved set of knobs for processing one base domain
type DomainOptions struct {
	FollowRobots       bool
	MaxDepth           int
	IgnoreErrors       bool
	UserAgent          string
	DelayPerHost       time.Duration
	Retry              RetryConfig
	URLIncludePatterns []string
	URLExcludePatterns []string
}

// RetryConfig returns the retry policy described by the global settings
func (c *AppConfig) RetryConfig() RetryConfig {
	rc := RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoffMs:  c.BackoffMs,
		BackoffMultiplier: c.BackoffMultiplier,
		MaxBackoffMs:      c.MaxBackoffMs,
	}
	if c.MaxRetries != nil {
		rc.MaxRetries = *c.MaxRetries
	}
	rc.Validate()
	return rc
}

// GetEffectiveFollowRobots determines whether robots.txt is consulted during discovery
func GetEffectiveFollowRobots(siteCfg SiteConfig, appCfg AppConfig) bool {
	if siteCfg.FollowRobots != nil {
		return *siteCfg.FollowRobots
	}
	if appCfg.FollowRobots != nil {
		return *appCfg.FollowRobots
	}
	return true
}

// GetEffectiveMaxDepth determines the nesting limit for sitemap indexes
func GetEffectiveMaxDepth(siteCfg SiteConfig, appCfg AppConfig) int {
	if siteCfg.MaxDepth != nil {
		return *siteCfg.MaxDepth
	}
	if appCfg.MaxDepth != nil {
		return *appCfg.MaxDepth
	}
	return DefaultMaxDepth
}

// GetEffectiveIgnoreErrors determines whether an empty domain aborts the run
func GetEffectiveIgnoreErrors(siteCfg SiteConfig, appCfg AppConfig) bool {
	if siteCfg.IgnoreErrors != nil {
		return *siteCfg.IgnoreErrors
	}
	return appCfg.IgnoreErrors
}

// GetEffectiveUserAgent determines the User-Agent header sent for a domain
func GetEffectiveUserAgent(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.UserAgent != "" {
		return siteCfg.UserAgent
	}
	if appCfg.UserAgent != "" {
		return appCfg.UserAgent
	}
	return DefaultUserAgent
}

// GetEffectiveDelayPerHost determines the politeness delay between requests to one host
func GetEffectiveDelayPerHost(siteCfg SiteConfig, appCfg AppConfig) time.Duration {
	if siteCfg.DelayPerHost > 0 {
		return siteCfg.DelayPerHost
	}
	return appCfg.DefaultDelayPerHost
}

// EffectiveDomainOptions merges a site's overrides over the global settings.
// Pattern lists are concatenated: global patterns always apply.
func EffectiveDomainOptions(siteCfg SiteConfig, appCfg AppConfig) DomainOptions {
	opts := DomainOptions{
		FollowRobots: GetEffectiveFollowRobots(siteCfg, appCfg),
		MaxDepth:     GetEffectiveMaxDepth(siteCfg, appCfg),
		IgnoreErrors: GetEffectiveIgnoreErrors(siteCfg, appCfg),
		UserAgent:    GetEffectiveUserAgent(siteCfg, appCfg),
		DelayPerHost: GetEffectiveDelayPerHost(siteCfg, appCfg),
		Retry:        appCfg.RetryConfig(),
	}
	opts.URLIncludePatterns = append(append(opts.URLIncludePatterns, appCfg.URLIncludePatterns...), siteCfg.URLIncludePatterns...)
	opts.URLExcludePatterns = append(append(opts.URLExcludePatterns, appCfg.URLExcludePatterns...), siteCfg.URLExcludePatterns...)
	return opts
}
