package fetch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/parse"
)

// hostEvictionInterval is how often idle per-host semaphores are dropped
const hostEvictionInterval = 5 * time.Minute

// Session is the fetch stack shared by every component of one process:
// one HTTP client, one per-host pacing table and one per-host concurrency pool.
type Session struct {
	Fetcher *Fetcher
	Limiter *RateLimiter
	Hosts   *HostSemaphorePool
}

// NewSession builds the fetch stack from a validated AppConfig.
// Sites with delay_per_host get a host-level pacing override.
func NewSession(appCfg *config.AppConfig, log *logrus.Entry) *Session {
	client := NewClient(appCfg.HTTPClientSettings, log)
	limiter := NewRateLimiter(appCfg.DefaultDelayPerHost, log.WithField("component", "rate_limiter"))
	hosts := NewHostSemaphorePool(appCfg.MaxRequestsPerHost, log.WithField("component", "host_semaphores"))

	for key, site := range appCfg.Sites {
		if site.DelayPerHost <= 0 {
			continue
		}
		host := parse.HostOf(parse.NormalizeBaseDomain(site.BaseURL))
		if host == "" {
			continue
		}
		limiter.SetHostDelay(host, site.DelayPerHost)
		log.Debugf("Site '%s': delay_per_host %v for %s", key, site.DelayPerHost, host)
	}

	return &Session{
		Fetcher: NewFetcher(
			NewHTTPGetter(client, appCfg.MaxResponseBytes),
			log,
			WithRateLimiter(limiter, appCfg.DefaultDelayPerHost),
			WithHostSemaphores(hosts),
		),
		Limiter: limiter,
		Hosts:   hosts,
	}
}

// Start launches background upkeep (idle host eviction) until ctx ends
func (s *Session) Start(ctx context.Context) {
	go s.Hosts.RunEviction(ctx, hostEvictionInterval)
}
