package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/discover"
	"github.com/Sriram-PR/sitemap-urls/pkg/fetch"
	"github.com/Sriram-PR/sitemap-urls/pkg/orchestrate"
	"github.com/Sriram-PR/sitemap-urls/pkg/output"
	"github.com/Sriram-PR/sitemap-urls/pkg/parse"
	"github.com/Sriram-PR/sitemap-urls/pkg/storage"
)

// engine bundles the long-lived pieces one command run needs
type engine struct {
	session *fetch.Session
	cache   storage.DiscoveryCache
	orch    *orchestrate.Orchestrator
}

func newEngine(ctx context.Context, appCfg *config.AppConfig, log *logrus.Entry) (*engine, error) {
	cache, err := storage.NewDiscoveryCache(appCfg.CacheBackend, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery cache: %w", err)
	}
	session := fetch.NewSession(appCfg, log)
	session.Start(ctx)
	return &engine{
		session: session,
		cache:   cache,
		orch:    orchestrate.NewOrchestrator(appCfg, session.Fetcher, cache, log),
	}, nil
}

func (e *engine) Close(log *logrus.Logger) {
	if err := e.cache.Close(); err != nil {
		log.Errorf("Error closing discovery cache: %v", err)
	}
}

// parseFlags parses args and reports whether the caller should exit, and with which code
func parseFlags(fs *flag.FlagSet, args []string) (exit bool, code int) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, 0
		}
		return true, 2
	}
	return false, 0
}

// doFetch discovers, traverses and parses sitemaps for every domain and writes
// the entries to stdout or a file. Returns exit code.
func doFetch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommonFlags(fs)
	overrides := registerOverrideFlags(fs)
	format := fs.String("format", "", "Output format: jsonl or tsv (default from config, else jsonl)")
	outputPath := fs.String("output", "-", "Output file ('-' for stdout)")
	reportPath := fs.String("report", "", "Write a run report to this path (.md, .html or .yaml)")
	allSites := fs.Bool("all-sites", false, "Also process the base_url of every configured site")
	parallel := fs.Int("parallel", 0, "Domains processed concurrently (default from config, else 1)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sitemap-urls fetch [options] <domain|sitemap-url>...\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if exit, code := parseFlags(fs, args); exit {
		return code
	}

	log := setupLogger(common.logLevel, stderr)
	appCfg, err := loadAndValidateConfig(common.configPath, func(c *config.AppConfig) {
		overrides.apply(c)
		if *format != "" {
			c.OutputFormat = *format
		}
		if *parallel > 0 {
			c.MaxParallelDomains = *parallel
		}
	}, log)
	if err != nil {
		fmt.Fprintf(stderr, "Config error: %v\n", err)
		return 1
	}

	domains := fs.Args()
	if *allSites {
		domains = append(domains, orchestrate.SiteDomains(appCfg)...)
	}
	if err := orchestrate.ValidateDomains(domains); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fs.Usage()
		return 1
	}

	ctx, stop := signalContext(log)
	defer stop()
	stopMetrics := startMetrics(common.metricsAddr, log)
	defer stopMetrics()

	entry := logrus.NewEntry(log)
	eng, err := newEngine(ctx, appCfg, entry)
	if err != nil {
		log.Error(err)
		return 1
	}
	defer eng.Close(log)

	var sink output.Sink
	if *outputPath == "" || *outputPath == "-" {
		sink, err = output.New(appCfg.OutputFormat, stdout)
	} else {
		sink, err = output.Open(appCfg.OutputFormat, *outputPath)
	}
	if err != nil {
		log.Errorf("Failed to open output: %v", err)
		return 1
	}

	startedAt := time.Now()
	results, runErr := eng.orch.Run(ctx, domains, sink)
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close output: %w", err)
	}

	if *reportPath != "" {
		report := &output.Report{
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Domains:   results,
			Err:       runErr,
		}
		if err := report.WriteFile(*reportPath); err != nil {
			log.Errorf("Failed to write report: %v", err)
		} else {
			log.Infof("Report written to %s", *reportPath)
		}
	}

	return exitCode(runErr, log)
}

// doDiscover prints "<base>\t<sitemap>" for every sitemap location found.
// Exits 1 when any domain yields no location.
func doDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommonFlags(fs)
	overrides := registerOverrideFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sitemap-urls discover [options] <domain>...\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if exit, code := parseFlags(fs, args); exit {
		return code
	}

	log := setupLogger(common.logLevel, stderr)
	appCfg, err := loadAndValidateConfig(common.configPath, overrides.apply, log)
	if err != nil {
		fmt.Fprintf(stderr, "Config error: %v\n", err)
		return 1
	}
	domains := fs.Args()
	if err := orchestrate.ValidateDomains(domains); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fs.Usage()
		return 1
	}

	ctx, stop := signalContext(log)
	defer stop()
	stopMetrics := startMetrics(common.metricsAddr, log)
	defer stopMetrics()

	eng, err := newEngine(ctx, appCfg, logrus.NewEntry(log))
	if err != nil {
		log.Error(err)
		return 1
	}
	defer eng.Close(log)

	code := 0
	for _, d := range domains {
		base := parse.NormalizeBaseDomain(d)
		locations, err := eng.orch.Discover(ctx, base)
		if err != nil {
			return exitCode(err, log)
		}
		if len(locations) == 0 {
			fmt.Fprintf(stderr, "No sitemap found for %s\n", base)
			code = 1
			continue
		}
		for _, loc := range locations {
			fmt.Fprintf(stdout, "%s\t%s\n", base, loc)
		}
	}
	return code
}

// doBruteforce tries the filename catalog for each domain and prints the
// first sitemap URL that answers. Exits 1 when any domain has none.
func doBruteforce(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bruteforce", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := registerCommonFlags(fs)
	userAgent := fs.String("user-agent", "", "User-Agent header (default \"Sitemap/1.0\")")
	rate := fs.Float64("rate", -1, "Requests per second (default from config, 0 = unlimited)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sitemap-urls bruteforce [options] <domain>...\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if exit, code := parseFlags(fs, args); exit {
		return code
	}

	log := setupLogger(common.logLevel, stderr)
	appCfg, err := loadAndValidateConfig(common.configPath, func(c *config.AppConfig) {
		if *userAgent != "" {
			c.UserAgent = *userAgent
		}
		if *rate >= 0 {
			c.BruteforceRatePerSecond = *rate
		}
	}, log)
	if err != nil {
		fmt.Fprintf(stderr, "Config error: %v\n", err)
		return 1
	}
	domains := fs.Args()
	if err := orchestrate.ValidateDomains(domains); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fs.Usage()
		return 1
	}

	ctx, stop := signalContext(log)
	defer stop()
	stopMetrics := startMetrics(common.metricsAddr, log)
	defer stopMetrics()

	entry := logrus.NewEntry(log)
	eng, err := newEngine(ctx, appCfg, entry)
	if err != nil {
		log.Error(err)
		return 1
	}
	defer eng.Close(log)

	finder := discover.NewFinder(eng.session.Fetcher, appCfg.BruteforceRatePerSecond, entry)
	code := 0
	for _, d := range domains {
		base := parse.NormalizeBaseDomain(d)
		opts := eng.orch.DomainOptions(base)
		found, ok, err := finder.Find(ctx, base, opts.UserAgent)
		if err != nil {
			return exitCode(err, log)
		}
		if !ok {
			fmt.Fprintf(stderr, "No sitemap found for %s after probing %d candidates\n", base, len(discover.Candidates(base)))
			code = 1
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\n", base, found)
	}
	return code
}
