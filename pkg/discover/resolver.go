// Package discover locates sitemap documents for a base domain, either through
// the automatic cascade (Resolver) or the explicit catalog search (Finder).
package discover

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/metrics"
	"github.com/Sriram-PR/sitemap-urls/pkg/models"
	"github.com/Sriram-PR/sitemap-urls/pkg/parse"
	"github.com/Sriram-PR/sitemap-urls/pkg/robots"
	"github.com/Sriram-PR/sitemap-urls/pkg/storage"
)

// Fetcher is the retrying fetch capability discovery needs. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, retry config.RetryConfig, userAgent string) (*models.FetchResult, error)
}

// Strategy names reported in logs and metrics
const (
	StrategyDirect       = "direct"
	StrategyCache        = "cache"
	StrategyRobots       = "robots"
	StrategySitemapXML   = "sitemap_xml"
	StrategySitemapIndex = "sitemap_index_xml"
	StrategyHomepage     = "homepage"
	StrategyNone         = "none"
)

// Options controls one Discover call
type Options struct {
	FollowRobots bool
	UserAgent    string
	Retry        config.RetryConfig
	// RespectDisallow skips well-known locations that the fetched robots.txt
	// disallows for UserAgent. Only effective with FollowRobots and a Policy.
	RespectDisallow bool
}

// Resolver runs the discovery cascade against one session cache
type Resolver struct {
	fetcher Fetcher
	cache   storage.DiscoveryCache // may be nil
	policy  *robots.Policy         // may be nil
	log     *logrus.Entry
}

// NewResolver creates a Resolver. cache and policy are optional.
func NewResolver(fetcher Fetcher, cache storage.DiscoveryCache, policy *robots.Policy, log *logrus.Entry) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		cache:   cache,
		policy:  policy,
		log:     log.WithField("component", "discovery"),
	}
}

// Discover returns the sitemap locations for baseDomain, stopping at the first
// strategy that yields any: direct sitemap URL, session cache, robots.txt,
// /sitemap.xml, /sitemap_index.xml, then <link rel="sitemap"> on the homepage.
// Finding nothing returns an empty list and a nil error; the error is non-nil
// only when ctx is cancelled or its deadline passes.
func (r *Resolver) Discover(ctx context.Context, baseDomain string, opts Options) ([]string, error) {
	domain := parse.NormalizeBaseDomain(baseDomain)
	if domain == "" {
		return []string{}, nil
	}
	log := r.log.WithField("domain", domain)

	if parse.IsDirectSitemapURL(domain) {
		log.Debug("Input is a sitemap URL, skipping discovery")
		metrics.ObserveDiscoveryStrategy(StrategyDirect)
		return []string{domain}, nil
	}

	if r.cache != nil {
		// An empty cached list is indistinguishable from a miss
		if cached, ok := r.cache.Get(domain); ok && len(cached) > 0 {
			metrics.ObserveCacheLookup(true)
			metrics.ObserveDiscoveryStrategy(StrategyCache)
			log.WithField("locations", len(cached)).Debug("Discovery cache hit")
			return cached, nil
		}
		metrics.ObserveCacheLookup(false)
	}

	steps := []struct {
		name string
		run  func(context.Context, string, Options) ([]string, error)
	}{
		{StrategyRobots, r.fromRobots},
		{StrategySitemapXML, r.wellKnown("/sitemap.xml")},
		{StrategySitemapIndex, r.wellKnown("/sitemap_index.xml")},
		{StrategyHomepage, r.fromHomepage},
	}

	for _, step := range steps {
		locations, err := step.run(ctx, domain, opts)
		if err != nil {
			return nil, err
		}
		if len(locations) == 0 {
			continue
		}
		if r.cache != nil {
			r.cache.Set(domain, locations)
		}
		metrics.ObserveDiscoveryStrategy(step.name)
		log.WithFields(logrus.Fields{"strategy": step.name, "locations": len(locations)}).Info("Discovered sitemaps")
		return locations, nil
	}

	metrics.ObserveDiscoveryStrategy(StrategyNone)
	log.Info("No sitemap location found")
	return []string{}, nil
}

// fromRobots reads Sitemap: directives from robots.txt. With RespectDisallow the
// response is also recorded so later well-known checks can honor Disallow rules.
func (r *Resolver) fromRobots(ctx context.Context, domain string, opts Options) ([]string, error) {
	if !opts.FollowRobots {
		return nil, nil
	}
	res, err := r.fetcher.Fetch(ctx, domain+"/robots.txt", opts.Retry, opts.UserAgent)
	if err != nil {
		return nil, err
	}
	if opts.RespectDisallow && r.policy != nil {
		r.policy.Record(parse.HostOf(domain), res.StatusCode, res.Body)
	}
	if !res.Succeeded {
		r.log.WithFields(logrus.Fields{"domain": domain, "error": res.ErrorMessage}).Debug("robots.txt unavailable")
		return nil, nil
	}
	return robots.ParseSitemapURLs(string(res.Body)), nil
}

// wellKnown returns a step that accepts path as the sole location when it answers 2xx
func (r *Resolver) wellKnown(path string) func(context.Context, string, Options) ([]string, error) {
	return func(ctx context.Context, domain string, opts Options) ([]string, error) {
		target := domain + path
		if opts.RespectDisallow && r.policy != nil && !r.policy.Allowed(target, opts.UserAgent) {
			r.log.WithField("url", target).Debug("Well-known location disallowed by robots.txt, skipping")
			return nil, nil
		}
		res, err := r.fetcher.Fetch(ctx, target, opts.Retry, opts.UserAgent)
		if err != nil {
			return nil, err
		}
		if !res.Succeeded {
			return nil, nil
		}
		return []string{target}, nil
	}
}

// fromHomepage scans the homepage for <link rel="sitemap"> and resolves relative hrefs
func (r *Resolver) fromHomepage(ctx context.Context, domain string, opts Options) ([]string, error) {
	res, err := r.fetcher.Fetch(ctx, domain, opts.Retry, opts.UserAgent)
	if err != nil {
		return nil, err
	}
	if !res.Succeeded {
		return nil, nil
	}
	hrefs := parse.FindSitemapInHTML(res.Body)
	if len(hrefs) == 0 {
		return nil, nil
	}
	locations := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		if strings.TrimSpace(href) == "" {
			continue
		}
		locations = append(locations, parse.ResolveSitemapHref(domain, href))
	}
	return locations, nil
}
