package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/discover"
	"github.com/Sriram-PR/sitemap-urls/pkg/metrics"
	"github.com/Sriram-PR/sitemap-urls/pkg/models"
	"github.com/Sriram-PR/sitemap-urls/pkg/output"
	"github.com/Sriram-PR/sitemap-urls/pkg/parse"
	"github.com/Sriram-PR/sitemap-urls/pkg/robots"
	"github.com/Sriram-PR/sitemap-urls/pkg/sitemap"
	"github.com/Sriram-PR/sitemap-urls/pkg/storage"
	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

// Orchestrator runs discovery and traversal for a list of base domains and
// streams the resulting entries to a sink. One Orchestrator belongs to one
// session: its discovery cache lives as long as it does.
type Orchestrator struct {
	appCfg   *config.AppConfig
	fetcher  discover.Fetcher
	resolver *discover.Resolver
	log      *logrus.Entry
}

// NewOrchestrator wires a resolver over fetcher and cache. appCfg must already be validated.
func NewOrchestrator(appCfg *config.AppConfig, fetcher discover.Fetcher, cache storage.DiscoveryCache, log *logrus.Entry) *Orchestrator {
	log = log.WithField("component", "orchestrator")
	var policy *robots.Policy
	if appCfg.RespectRobotsDisallow {
		policy = robots.NewPolicy(log)
	}
	return &Orchestrator{
		appCfg:   appCfg,
		fetcher:  fetcher,
		resolver: discover.NewResolver(fetcher, cache, policy, log),
		log:      log,
	}
}

// domainRun is the outcome of one domain before delivery
type domainRun struct {
	result  models.DomainResult
	entries []models.SitemapEntry
}

// Run processes domains and delivers their entries to sink in domain order,
// in batches of at most BatchSize.
//
// A domain yielding zero entries fails the run unless its effective
// ignore_errors is set, in which case it contributes nothing and the run
// continues. The returned results cover every domain that was started.
// Cancellation (or global_timeout) is returned as context.Canceled or
// context.DeadlineExceeded.
func (o *Orchestrator) Run(ctx context.Context, domains []string, sink output.Sink) ([]models.DomainResult, error) {
	if o.appCfg.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.appCfg.GlobalTimeout)
		defer cancel()
	}

	startTime := time.Now()
	o.log.Infof("Starting sitemap run for %d domain(s)", len(domains))

	var (
		results []models.DomainResult
		runErr  error
	)
	if o.appCfg.MaxParallelDomains > 1 && len(domains) > 1 {
		results, runErr = o.runParallel(ctx, domains, sink)
	} else {
		results, runErr = o.runSequential(ctx, domains, sink)
	}

	o.logSummary(results, time.Since(startTime), runErr)
	return results, runErr
}

func (o *Orchestrator) runSequential(ctx context.Context, domains []string, sink output.Sink) ([]models.DomainResult, error) {
	results := make([]models.DomainResult, 0, len(domains))
	for _, domain := range domains {
		run := o.processDomain(ctx, domain)
		results = append(results, run.result)
		if err := o.finish(run, sink); err != nil {
			return results, err
		}
	}
	return results, nil
}

// runParallel processes up to MaxParallelDomains domains at once. Each domain has
// its own State; delivery still happens in input order once a domain and all
// domains before it are done.
func (o *Orchestrator) runParallel(ctx context.Context, domains []string, sink output.Sink) ([]models.DomainResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.appCfg.MaxParallelDomains + 1) // workers plus the deliverer

	runs := make([]*domainRun, len(domains))
	done := make([]chan struct{}, len(domains))
	for i := range done {
		done[i] = make(chan struct{})
	}

	g.Go(func() error {
		for i := range domains {
			select {
			case <-done[i]:
			case <-gctx.Done():
				return gctx.Err()
			}
			if err := o.finish(*runs[i], sink); err != nil {
				return err
			}
		}
		return nil
	})

	for i, domain := range domains {
		g.Go(func() error {
			run := o.processDomain(gctx, domain)
			runs[i] = &run
			close(done[i])
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
	}

	results := make([]models.DomainResult, 0, len(domains))
	for _, run := range runs {
		if run != nil {
			results = append(results, run.result)
		}
	}
	return results, err
}

// finish applies the ignore-errors rule and delivers a successful domain's entries
func (o *Orchestrator) finish(run domainRun, sink output.Sink) error {
	metrics.ObserveDomain(run.result.Status.String(), run.result.Duration)
	switch run.result.Status {
	case models.DomainStatusSuccess:
		return o.deliver(sink, run.entries)
	case models.DomainStatusEmptyIgnored:
		return nil
	}
	return run.result.Err
}

// deliver writes entries to sink in batches of BatchSize
func (o *Orchestrator) deliver(sink output.Sink, entries []models.SitemapEntry) error {
	size := o.appCfg.BatchSize
	if size <= 0 {
		size = config.DefaultBatchSize
	}
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		if err := sink.WriteBatch(entries[start:end]); err != nil {
			return fmt.Errorf("sink write failed: %w", err)
		}
	}
	return nil
}

// processDomain discovers and traverses one base domain with its effective options
func (o *Orchestrator) processDomain(ctx context.Context, domain string) domainRun {
	startTime := time.Now()
	base := parse.NormalizeBaseDomain(domain)
	opts := o.DomainOptions(base)
	log := o.log.WithField("domain", base)

	run := domainRun{result: models.DomainResult{BaseDomain: base}}

	include, err := utils.CompileRegexPatterns(opts.URLIncludePatterns)
	if err != nil {
		return failedRun(run, fmt.Errorf("url_include_patterns for %s: %w", base, err), startTime)
	}
	exclude, err := utils.CompileRegexPatterns(opts.URLExcludePatterns)
	if err != nil {
		return failedRun(run, fmt.Errorf("url_exclude_patterns for %s: %w", base, err), startTime)
	}

	locations, err := o.discover(ctx, base, opts)
	if err != nil {
		run.result.Status = models.DomainStatusCancelled
		run.result.Err = err
		run.result.Duration = time.Since(startTime)
		return run
	}
	run.result.Locations = locations

	traverser := sitemap.NewTraverser(o.fetcher, sitemap.Config{
		UserAgent:            opts.UserAgent,
		Retry:                opts.Retry,
		Include:              include,
		Exclude:              exclude,
		DedupeSitemaps:       o.appCfg.DedupeSitemaps,
		MaxDecompressedBytes: o.appCfg.MaxDecompressedBytes,
	}, o.log)

	state := sitemap.NewState()
	for _, loc := range locations {
		if err := traverser.Traverse(ctx, loc, opts.MaxDepth, state); err != nil {
			run.result.Status = models.DomainStatusCancelled
			run.result.Err = err
			run.result.Errors = state.ErrorsFrom(0)
			run.result.Duration = time.Since(startTime)
			return run
		}
	}

	entries, errs := state.Snapshot()
	run.entries = entries
	run.result.EntryCount = len(entries)
	run.result.Errors = errs
	run.result.Duration = time.Since(startTime)

	switch {
	case len(entries) > 0:
		run.result.Status = models.DomainStatusSuccess
		log.WithFields(logrus.Fields{"entries": len(entries), "errors": len(errs)}).Info("Domain completed")
	case opts.IgnoreErrors:
		run.result.Status = models.DomainStatusEmptyIgnored
		log.WithField("errors", len(errs)).Warn("Domain produced no entries, ignoring")
	default:
		run.result.Status = models.DomainStatusFailed
		run.result.Err = emptyDomainError(base, locations, state.LastError())
		log.WithError(run.result.Err).Error("Domain produced no entries")
	}
	return run
}

func failedRun(run domainRun, err error, startTime time.Time) domainRun {
	run.result.Status = models.DomainStatusFailed
	run.result.Err = err
	run.result.Duration = time.Since(startTime)
	return run
}

// emptyDomainError explains a zero-entry domain with the most recent recorded error
func emptyDomainError(base string, locations []string, lastErr string) error {
	if len(locations) == 0 {
		return fmt.Errorf("%w: %w for %s", utils.ErrNoEntries, utils.ErrDiscoveryExhausted, base)
	}
	if lastErr != "" {
		return fmt.Errorf("%w for %s: %s", utils.ErrNoEntries, base, lastErr)
	}
	return fmt.Errorf("%w for %s", utils.ErrNoEntries, base)
}

// DomainOptions resolves the effective options for domain: its site override, if any, over the globals
func (o *Orchestrator) DomainOptions(domain string) config.DomainOptions {
	return config.EffectiveDomainOptions(o.siteFor(parse.NormalizeBaseDomain(domain)), *o.appCfg)
}

// Discover runs sitemap discovery for one domain with its effective options
func (o *Orchestrator) Discover(ctx context.Context, domain string) ([]string, error) {
	return o.discover(ctx, domain, o.DomainOptions(domain))
}

func (o *Orchestrator) discover(ctx context.Context, domain string, opts config.DomainOptions) ([]string, error) {
	return o.resolver.Discover(ctx, domain, discover.Options{
		FollowRobots:    opts.FollowRobots,
		UserAgent:       opts.UserAgent,
		Retry:           opts.Retry,
		RespectDisallow: o.appCfg.RespectRobotsDisallow,
	})
}

// siteFor returns the site override whose base_url matches base, if any
func (o *Orchestrator) siteFor(base string) config.SiteConfig {
	for _, site := range o.appCfg.Sites {
		if parse.SameBaseDomain(site.BaseURL, base) {
			return site
		}
	}
	return config.SiteConfig{}
}

// logSummary logs a summary of all domain results
func (o *Orchestrator) logSummary(results []models.DomainResult, totalDuration time.Duration, runErr error) {
	o.log.Info("============================================")
	o.log.Infof("Sitemap run completed in %v", totalDuration)
	o.log.Info("Domain Results:")

	totalEntries := 0
	counts := make(map[models.DomainStatus]int)
	for _, r := range results {
		counts[r.Status]++
		totalEntries += r.EntryCount
		o.log.Infof("  %s: %s - %d entries from %d location(s) in %v",
			r.BaseDomain, r.Status, r.EntryCount, len(r.Locations), r.Duration)
		if r.Err != nil {
			o.log.Infof("    Error: %v", r.Err)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d domains (%d success, %d failed, %d ignored, %d cancelled), %d entries",
		len(results), counts[models.DomainStatusSuccess], counts[models.DomainStatusFailed],
		counts[models.DomainStatusEmptyIgnored], counts[models.DomainStatusCancelled], totalEntries)
	if runErr != nil && !errors.Is(runErr, utils.ErrNoEntries) {
		o.log.Warnf("Run stopped: %v", runErr)
	}
	o.log.Info("============================================")
}

// ValidateDomains checks that every input normalizes to a usable base domain
func ValidateDomains(domains []string) error {
	if len(domains) == 0 {
		return fmt.Errorf("%w: no domains given", utils.ErrConfigValidation)
	}
	for _, d := range domains {
		base := parse.NormalizeBaseDomain(d)
		if base == "" || parse.HostOf(base) == "" {
			return fmt.Errorf("%w: invalid domain '%s'", utils.ErrConfigValidation, d)
		}
	}
	return nil
}

// SiteDomains returns the base_url of every configured site, sorted by key
func SiteDomains(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Sites))
	for k := range appCfg.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	domains := make([]string, 0, len(keys))
	for _, k := range keys {
		domains = append(domains, appCfg.Sites[k].BaseURL)
	}
	return domains
}
