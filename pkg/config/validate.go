package config

import (
	"fmt"
	"time"

	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// FollowRobots
	if c.FollowRobots == nil {
		follow := true
		c.FollowRobots = &follow
	}

	// MaxDepth
	if c.MaxDepth == nil {
		depth := DefaultMaxDepth
		c.MaxDepth = &depth
	} else if *c.MaxDepth < 0 {
		warnings = append(warnings, "max_depth cannot be negative, setting to 0 (root documents only)")
		depth := 0
		c.MaxDepth = &depth
	}

	// Retry policy (MaxRetries, BackoffMs, BackoffMultiplier, MaxBackoffMs)
	if c.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.MaxRetries = &retries
	}
	rc := RetryConfig{
		MaxRetries:        *c.MaxRetries,
		InitialBackoffMs:  c.BackoffMs,
		BackoffMultiplier: c.BackoffMultiplier,
		MaxBackoffMs:      c.MaxBackoffMs,
	}
	warnings = append(warnings, rc.Validate()...)
	c.MaxRetries = &rc.MaxRetries
	c.BackoffMs = rc.InitialBackoffMs
	c.BackoffMultiplier = rc.BackoffMultiplier
	c.MaxBackoffMs = rc.MaxBackoffMs

	// BatchSize
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	// MaxParallelDomains
	if c.MaxParallelDomains <= 0 {
		c.MaxParallelDomains = 1
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, "max_requests_per_host should be > 0, defaulting to 2")
		c.MaxRequestsPerHost = 2
	}

	// DefaultDelayPerHost
	if c.DefaultDelayPerHost < 0 {
		warnings = append(warnings, "default_delay_per_host cannot be negative, disabling delay")
		c.DefaultDelayPerHost = 0
	}

	// GlobalTimeout
	if c.GlobalTimeout < 0 {
		warnings = append(warnings, "global_timeout cannot be negative, disabling timeout")
		c.GlobalTimeout = 0
	}

	// Size caps
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if c.MaxDecompressedBytes <= 0 {
		c.MaxDecompressedBytes = DefaultMaxDecompressedBytes
	}

	// BruteforceRatePerSecond
	if c.BruteforceRatePerSecond < 0 {
		warnings = append(warnings, "bruteforce_rate_per_second cannot be negative, setting to 0 (unlimited)")
		c.BruteforceRatePerSecond = 0
	}

	// CacheBackend
	switch c.CacheBackend {
	case "":
		c.CacheBackend = CacheBackendMemory
	case CacheBackendMemory, CacheBackendBadger:
	default:
		return warnings, fmt.Errorf("%w: unknown cache_backend '%s' (supported: memory, badger)",
			utils.ErrConfigValidation, c.CacheBackend)
	}

	// OutputFormat
	switch c.OutputFormat {
	case "":
		c.OutputFormat = OutputFormatJSONL
	case OutputFormatJSONL, OutputFormatTSV:
	default:
		return warnings, fmt.Errorf("%w: unknown output_format '%s' (supported: jsonl, tsv)",
			utils.ErrConfigValidation, c.OutputFormat)
	}

	// OutputDir
	if c.OutputDir == "" {
		warnings = append(warnings, "output_dir is empty, defaulting to './sitemap_output'")
		c.OutputDir = "./sitemap_output"
	}

	// URL filter patterns
	if _, err := utils.CompileRegexPatterns(c.URLIncludePatterns); err != nil {
		return warnings, fmt.Errorf("url_include_patterns: %w", err)
	}
	if _, err := utils.CompileRegexPatterns(c.URLExcludePatterns); err != nil {
		return warnings, fmt.Errorf("url_exclude_patterns: %w", err)
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
func (c *SiteConfig) Validate() (warnings []string, err error) {
	// Required: BaseURL
	if c.BaseURL == "" {
		return nil, fmt.Errorf("%w: site needs base_url", utils.ErrConfigValidation)
	}

	// MaxDepth (pointer)
	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		warnings = append(warnings, "Site max_depth cannot be negative, setting to 0 (root documents only)")
		zero := 0
		c.MaxDepth = &zero
	}

	// DelayPerHost
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "Site delay_per_host cannot be negative, falling back to global default")
		c.DelayPerHost = 0
	}

	if _, err := utils.CompileRegexPatterns(c.URLIncludePatterns); err != nil {
		return warnings, fmt.Errorf("url_include_patterns: %w", err)
	}
	if _, err := utils.CompileRegexPatterns(c.URLExcludePatterns); err != nil {
		return warnings, fmt.Errorf("url_exclude_patterns: %w", err)
	}

	return warnings, nil
}
