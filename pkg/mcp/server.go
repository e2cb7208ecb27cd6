// Package mcp exposes sitemap discovery and extraction as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/discover"
	"github.com/Sriram-PR/sitemap-urls/pkg/fetch"
	"github.com/Sriram-PR/sitemap-urls/pkg/orchestrate"
	"github.com/Sriram-PR/sitemap-urls/pkg/storage"
)

const (
	serverName    = "sitemap-urls"
	serverVersion = "0.4.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig // Must already be validated
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server wraps the MCP server. All tools share one fetch session and one
// discovery cache for the lifetime of the process.
type Server struct {
	mcpServer    *server.MCPServer
	cfg          *ServerConfig
	log          *logrus.Entry
	jobManager   *JobManager
	fetcher      discover.Fetcher
	cache        storage.DiscoveryCache
	orchestrator *orchestrate.Orchestrator
	stopSession  context.CancelFunc
	running      sync.WaitGroup
	toolCount    int
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	log := cfg.Logger.WithField("component", "mcp")

	cache, err := storage.NewDiscoveryCache(cfg.AppConfig.CacheBackend, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery cache: %w", err)
	}

	sessionCtx, stop := context.WithCancel(context.Background())
	session := fetch.NewSession(cfg.AppConfig, log)
	session.Start(sessionCtx)

	s := &Server{
		mcpServer: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithLogging(),
		),
		cfg:          cfg,
		log:          log,
		jobManager:   NewJobManager(),
		fetcher:      session.Fetcher,
		cache:        cache,
		orchestrator: orchestrate.NewOrchestrator(cfg.AppConfig, session.Fetcher, cache, log),
		stopSession:  stop,
	}

	s.registerTools()

	return s, nil
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.toolCount++
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.addTool(mcp.NewTool("list_sites",
		mcp.WithDescription("List configured sites and their effective sitemap options"),
	), s.handleListSites)

	s.addTool(mcp.NewTool("sitemap_urls",
		mcp.WithDescription("Discover and read the sitemaps of one or more domains and return their page URLs. Runs to completion before returning."),
		mcp.WithString("domains",
			mcp.Required(),
			mcp.Description("Comma-separated base domains or sitemap URLs (e.g., 'example.com, https://docs.example.com')"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of entries to return (default: 1000, max: 50000)"),
		),
	), s.handleSitemapURLs)

	s.addTool(mcp.NewTool("discover_sitemaps",
		mcp.WithDescription("Find the sitemap locations of a domain via robots.txt, well-known paths and the homepage"),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Base domain, e.g. 'example.com'"),
		),
	), s.handleDiscoverSitemaps)

	s.addTool(mcp.NewTool("bruteforce_find_sitemap",
		mcp.WithDescription("Try a catalog of common sitemap filenames and return the first that answers with a sitemap content type. Slow: may issue thousands of requests."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Base domain, e.g. 'example.com'"),
		),
	), s.handleBruteforceFindSitemap)

	s.addTool(mcp.NewTool("start_sitemap_job",
		mcp.WithDescription("Start a background sitemap run that writes entries to a file in the output directory. Returns immediately with a job ID."),
		mcp.WithString("domains",
			mcp.Required(),
			mcp.Description("Comma-separated base domains or sitemap URLs"),
		),
		mcp.WithString("format",
			mcp.Description("Output format (defaults to the configured output_format)"),
			mcp.Enum(config.OutputFormatJSONL, config.OutputFormatTSV),
		),
	), s.handleStartSitemapJob)

	s.addTool(mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status and per-domain results of a sitemap job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_sitemap_job"),
		),
	), s.handleGetJobStatus)

	s.addTool(mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a running sitemap job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_sitemap_job"),
		),
	), s.handleCancelJob)

	s.addTool(mcp.NewTool("search_results",
		mcp.WithDescription("Search URLs written by previous JSONL sitemap jobs"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Case-insensitive substring matched against entry URLs"),
		),
		mcp.WithString("job_id",
			mcp.Description("Limit search to one job's output (optional)"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results to return (default: 50, max: 1000)"),
		),
	), s.handleSearchResults)

	s.log.Infof("Registered %d MCP tools", s.toolCount)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs, waits for them to release their output files
// (or for ctx to end) and closes the discovery cache
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = ctx.Err()
		s.log.Warn("Jobs still running at shutdown deadline")
	}

	s.stopSession()
	if err := s.cache.Close(); err != nil {
		return fmt.Errorf("failed to close discovery cache: %w", err)
	}
	return waitErr
}
