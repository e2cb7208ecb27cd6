package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/metrics"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "fetch":
		os.Exit(doFetch(os.Args[2:], os.Stdout, os.Stderr))
	case "discover":
		os.Exit(doDiscover(os.Args[2:], os.Stdout, os.Stderr))
	case "bruteforce":
		os.Exit(doBruteforce(os.Args[2:], os.Stdout, os.Stderr))
	case "validate":
		runValidate(os.Args[2:])
	case "list-sites":
		runListSites(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("sitemap-urls %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `sitemap-urls - Sitemap discovery and URL extraction

Usage:
  sitemap-urls <command> [options] [domain...]

Commands:
  fetch       Discover sitemaps for domains and write every page URL
  discover    Print the sitemap locations found for domains
  bruteforce  Try common sitemap filenames until one answers
  validate    Validate configuration file
  list-sites  List configured sites
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'sitemap-urls <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file. An empty path yields an empty config (all defaults).
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return &config.AppConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// loadAndValidateConfig loads the config file, applies CLI overrides, validates it and logs warnings
func loadAndValidateConfig(configFile string, override func(*config.AppConfig), log *logrus.Logger) (*config.AppConfig, error) {
	if configFile != "" {
		log.Infof("Loading configuration from %s", configFile)
	}
	appCfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(appCfg)
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	for key, site := range appCfg.Sites {
		siteWarnings, err := site.Validate()
		for _, w := range siteWarnings {
			log.Warnf("[%s] %s", key, w)
		}
		if err != nil {
			return nil, fmt.Errorf("site '%s': %w", key, err)
		}
		appCfg.Sites[key] = site
	}
	return appCfg, nil
}

// setupLogger creates a configured logrus.Logger writing to w
func setupLogger(logLevelStr string, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}

// optionalBool is a boolean flag that remembers whether it was given,
// so an absent flag leaves the config value alone
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) String() string {
	if b == nil || !b.set {
		return ""
	}
	return strconv.FormatBool(b.value)
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

// commonFlags are accepted by every run-style subcommand
type commonFlags struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "Path to YAML config file (optional)")
	fs.StringVar(&c.logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. ':9090' (disabled by default)")
	return c
}

// overrideFlags override values from the config file when given
type overrideFlags struct {
	followRobots optionalBool
	ignoreErrors optionalBool
	maxDepth     int
	maxRetries   int
	backoffMs    int
	maxBackoffMs int
	userAgent    string
}

func registerOverrideFlags(fs *flag.FlagSet) *overrideFlags {
	o := &overrideFlags{}
	fs.Var(&o.followRobots, "follow-robots", "Consult robots.txt during discovery (default true)")
	fs.Var(&o.ignoreErrors, "ignore-errors", "Skip domains that yield no entries instead of failing the run")
	fs.IntVar(&o.maxDepth, "max-depth", -1, "Maximum sitemap index nesting depth (default 3)")
	fs.IntVar(&o.maxRetries, "max-retries", -1, "Retries per request after the first attempt (default 5)")
	fs.IntVar(&o.backoffMs, "backoff-ms", 0, "Initial retry backoff in milliseconds (default 100)")
	fs.IntVar(&o.maxBackoffMs, "max-backoff-ms", 0, "Retry backoff ceiling in milliseconds (default 30000)")
	fs.StringVar(&o.userAgent, "user-agent", "", "User-Agent header (default \"Sitemap/1.0\")")
	return o
}

func (o *overrideFlags) apply(c *config.AppConfig) {
	if o.followRobots.set {
		v := o.followRobots.value
		c.FollowRobots = &v
	}
	if o.ignoreErrors.set {
		c.IgnoreErrors = o.ignoreErrors.value
	}
	if o.maxDepth >= 0 {
		v := o.maxDepth
		c.MaxDepth = &v
	}
	if o.maxRetries >= 0 {
		v := o.maxRetries
		c.MaxRetries = &v
	}
	if o.backoffMs > 0 {
		c.BackoffMs = o.backoffMs
	}
	if o.maxBackoffMs > 0 {
		c.MaxBackoffMs = o.maxBackoffMs
	}
	if o.userAgent != "" {
		c.UserAgent = o.userAgent
	}
}

// signalContext returns a context cancelled by the first SIGINT/SIGTERM.
// A second signal forces exit. stop releases the signal handler.
func signalContext(log *logrus.Logger) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		close(done)
		cancel()
	}
}

// startMetrics serves /metrics on addr when addr is non-empty. The returned func stops the server.
func startMetrics(addr string, log *logrus.Logger) func() {
	if addr == "" {
		return func() {}
	}
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Infof("Serving metrics at http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server error: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// exitCode maps a run error to the process exit status
func exitCode(err error, log *logrus.Logger) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		log.Warn("Run cancelled.")
		return 130
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("Run timed out (global timeout).")
		return 1
	default:
		log.Errorf("Run finished with error: %v", err)
		return 1
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site key to validate (optional, validates all if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sitemap-urls validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, *siteKey, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, siteKey string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	keys := make([]string, 0, len(appCfg.Sites))
	if siteKey != "" {
		if _, ok := appCfg.Sites[siteKey]; !ok {
			fmt.Fprintf(stderr, "Error: site '%s' not found in config\n", siteKey)
			return 1
		}
		keys = append(keys, siteKey)
	} else {
		for k := range appCfg.Sites {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	hasError := false
	for _, key := range keys {
		siteCfg := appCfg.Sites[key]
		siteWarnings, err := siteCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			hasError = true
			continue
		}
		for _, w := range siteWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		fmt.Fprintf(stdout, "OK: [%s] %s\n", key, siteCfg.BaseURL)
	}
	if hasError {
		return 1
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

func runListSites(args []string) {
	fs := flag.NewFlagSet("list-sites", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sitemap-urls list-sites [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListSites(*configFile, os.Stdout, os.Stderr))
}

// doListSites lists sites with their effective options.
// Returns exit code (0 = success, 1 = error).
func doListSites(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	appCfg.Validate()

	keys := make([]string, 0, len(appCfg.Sites))
	for k := range appCfg.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(stdout, "Sites in %s:\n\n", configPath)
	for _, key := range keys {
		site := appCfg.Sites[key]
		opts := config.EffectiveDomainOptions(site, *appCfg)
		fmt.Fprintf(stdout, "  %s\n", key)
		fmt.Fprintf(stdout, "    Base URL: %s\n", site.BaseURL)
		fmt.Fprintf(stdout, "    Follow robots: %t, Max depth: %d, Ignore errors: %t\n",
			opts.FollowRobots, opts.MaxDepth, opts.IgnoreErrors)
		if n := len(site.URLIncludePatterns) + len(site.URLExcludePatterns); n > 0 {
			fmt.Fprintf(stdout, "    URL filters: %d\n", n)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}
