package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(i int) *int {
	return &i
}

func TestGetEffectiveFollowRobots(t *testing.T) {
	tests := []struct {
		name     string
		siteCfg  SiteConfig
		appCfg   AppConfig
		expected bool
	}{
		{
			name:     "site disabled overrides global enabled",
			siteCfg:  SiteConfig{FollowRobots: boolPtr(false)},
			appCfg:   AppConfig{FollowRobots: boolPtr(true)},
			expected: false,
		},
		{
			name:     "site nil uses global disabled",
			siteCfg:  SiteConfig{},
			appCfg:   AppConfig{FollowRobots: boolPtr(false)},
			expected: false,
		},
		{
			name:     "both nil defaults to true",
			siteCfg:  SiteConfig{},
			appCfg:   AppConfig{},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetEffectiveFollowRobots(tt.siteCfg, tt.appCfg))
		})
	}
}

func TestGetEffectiveMaxDepth(t *testing.T) {
	tests := []struct {
		name     string
		siteCfg  SiteConfig
		appCfg   AppConfig
		expected int
	}{
		{"site zero overrides global", SiteConfig{MaxDepth: intPtr(0)}, AppConfig{MaxDepth: intPtr(5)}, 0},
		{"site nil uses global", SiteConfig{}, AppConfig{MaxDepth: intPtr(5)}, 5},
		{"both nil uses default", SiteConfig{}, AppConfig{}, DefaultMaxDepth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetEffectiveMaxDepth(tt.siteCfg, tt.appCfg))
		})
	}
}

func TestGetEffectiveIgnoreErrors(t *testing.T) {
	assert.True(t, GetEffectiveIgnoreErrors(SiteConfig{IgnoreErrors: boolPtr(true)}, AppConfig{IgnoreErrors: false}))
	assert.False(t, GetEffectiveIgnoreErrors(SiteConfig{IgnoreErrors: boolPtr(false)}, AppConfig{IgnoreErrors: true}))
	assert.True(t, GetEffectiveIgnoreErrors(SiteConfig{}, AppConfig{IgnoreErrors: true}))
	assert.False(t, GetEffectiveIgnoreErrors(SiteConfig{}, AppConfig{}))
}

func TestGetEffectiveUserAgent(t *testing.T) {
	tests := []struct {
		name     string
		siteCfg  SiteConfig
		appCfg   AppConfig
		expected string
	}{
		{"site agent overrides global", SiteConfig{UserAgent: "site-bot"}, AppConfig{UserAgent: "global-bot"}, "site-bot"},
		{"site empty uses global", SiteConfig{}, AppConfig{UserAgent: "global-bot"}, "global-bot"},
		{"both empty uses default", SiteConfig{}, AppConfig{}, "Sitemap/1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetEffectiveUserAgent(tt.siteCfg, tt.appCfg))
		})
	}
}

func TestGetEffectiveDelayPerHost(t *testing.T) {
	app := AppConfig{DefaultDelayPerHost: 200 * time.Millisecond}
	assert.Equal(t, time.Second, GetEffectiveDelayPerHost(SiteConfig{DelayPerHost: time.Second}, app))
	assert.Equal(t, 200*time.Millisecond, GetEffectiveDelayPerHost(SiteConfig{}, app))
}

func TestEffectiveDomainOptions(t *testing.T) {
	app := AppConfig{
		UserAgent:          "global-bot",
		MaxRetries:         intPtr(2),
		BackoffMs:          50,
		MaxBackoffMs:       1000,
		URLExcludePatterns: []string{`\.pdf$`},
	}
	site := SiteConfig{
		BaseURL:            "https://example.com",
		MaxDepth:           intPtr(1),
		URLExcludePatterns: []string{`/tag/`},
	}

	opts := EffectiveDomainOptions(site, app)

	assert.True(t, opts.FollowRobots)
	assert.Equal(t, 1, opts.MaxDepth)
	assert.False(t, opts.IgnoreErrors)
	assert.Equal(t, "global-bot", opts.UserAgent)
	assert.Equal(t, 2, opts.Retry.MaxRetries)
	assert.Equal(t, 50, opts.Retry.InitialBackoffMs)
	assert.Equal(t, DefaultBackoffMultiplier, opts.Retry.BackoffMultiplier)
	assert.Equal(t, 1000, opts.Retry.MaxBackoffMs)
	assert.Equal(t, []string{`\.pdf$`, `/tag/`}, opts.URLExcludePatterns)
	assert.Empty(t, opts.URLIncludePatterns)
}

func TestAppConfig_RetryConfig_Defaults(t *testing.T) {
	cfg := AppConfig{}
	assert.Equal(t, DefaultRetryConfig(), cfg.RetryConfig())
}
