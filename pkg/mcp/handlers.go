package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/discover"
	"github.com/Sriram-PR/sitemap-urls/pkg/models"
	"github.com/Sriram-PR/sitemap-urls/pkg/orchestrate"
	"github.com/Sriram-PR/sitemap-urls/pkg/output"
	"github.com/Sriram-PR/sitemap-urls/pkg/parse"
	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

const (
	defaultMaxEntries = 1000
	maxMaxEntries     = 50000
	defaultMaxMatches = 50
	maxMaxMatches     = 1000
)

// handleListSites handles the list_sites tool
func (s *Server) handleListSites(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := make([]string, 0, len(s.cfg.AppConfig.Sites))
	for k := range s.cfg.AppConfig.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sites := make([]map[string]interface{}, 0, len(keys))
	for _, key := range keys {
		siteCfg := s.cfg.AppConfig.Sites[key]
		opts := s.orchestrator.DomainOptions(siteCfg.BaseURL)
		siteInfo := map[string]interface{}{
			"key":           key,
			"base_url":      parse.NormalizeBaseDomain(siteCfg.BaseURL),
			"follow_robots": opts.FollowRobots,
			"max_depth":     opts.MaxDepth,
			"ignore_errors": opts.IgnoreErrors,
			"user_agent":    opts.UserAgent,
		}
		if len(opts.URLIncludePatterns) > 0 {
			siteInfo["url_include_patterns"] = opts.URLIncludePatterns
		}
		if len(opts.URLExcludePatterns) > 0 {
			siteInfo["url_exclude_patterns"] = opts.URLExcludePatterns
		}
		if job, ok := s.jobManager.ActiveJobFor([]string{siteCfg.BaseURL}); ok {
			siteInfo["status"] = "running"
			siteInfo["job_id"] = job.ID
		}
		sites = append(sites, siteInfo)
	}

	result := map[string]interface{}{
		"sites":       sites,
		"config_path": s.cfg.ConfigPath,
		"total_sites": len(sites),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleSitemapURLs handles the sitemap_urls tool
func (s *Server) handleSitemapURLs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domains := splitDomains(request.GetString("domains", ""))
	if len(domains) == 0 {
		return mcp.NewToolResultError("domains parameter is required"), nil
	}
	if err := orchestrate.ValidateDomains(domains); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxResults := clamp(request.GetInt("max_results", defaultMaxEntries), 1, maxMaxEntries)

	sink := output.NewCollectSink(maxResults)
	results, err := s.orchestrator.Run(ctx, domains, sink)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sitemap run failed: %v", err)), nil
	}

	entries := sink.Entries()
	response := map[string]interface{}{
		"entries":        entries,
		"total_returned": len(entries),
		"truncated":      sink.Truncated(),
		"domains":        domainSummaries(results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDiscoverSitemaps handles the discover_sitemaps tool
func (s *Server) handleDiscoverSitemaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain := parse.NormalizeBaseDomain(request.GetString("domain", ""))
	if domain == "" {
		return mcp.NewToolResultError("domain parameter is required"), nil
	}

	locations, err := s.orchestrator.Discover(ctx, domain)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("discovery interrupted: %v", err)), nil
	}

	result := map[string]interface{}{
		"domain":   domain,
		"sitemaps": locations,
		"found":    len(locations) > 0,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleBruteforceFindSitemap handles the bruteforce_find_sitemap tool
func (s *Server) handleBruteforceFindSitemap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain := parse.NormalizeBaseDomain(request.GetString("domain", ""))
	if domain == "" {
		return mcp.NewToolResultError("domain parameter is required"), nil
	}

	opts := s.orchestrator.DomainOptions(domain)
	finder := discover.NewFinder(s.fetcher, s.cfg.AppConfig.BruteforceRatePerSecond, s.log)
	start := time.Now()
	found, ok, err := finder.Find(ctx, domain, opts.UserAgent)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("bruteforce interrupted: %v", err)), nil
	}

	result := map[string]interface{}{
		"domain":           domain,
		"found":            ok,
		"sitemap_url":      nil,
		"duration_seconds": time.Since(start).Seconds(),
	}
	if ok {
		result["sitemap_url"] = found
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleStartSitemapJob handles the start_sitemap_job tool
func (s *Server) handleStartSitemapJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domains := splitDomains(request.GetString("domains", ""))
	if len(domains) == 0 {
		return mcp.NewToolResultError("domains parameter is required"), nil
	}
	if err := orchestrate.ValidateDomains(domains); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := request.GetString("format", s.cfg.AppConfig.OutputFormat)
	if format != config.OutputFormatJSONL && format != config.OutputFormatTSV {
		return mcp.NewToolResultError(fmt.Sprintf("unknown format '%s' (supported: jsonl, tsv)", format)), nil
	}

	job, created := s.jobManager.CreateJob(domains)
	if !created {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A job is already in progress for these domains",
			"job_id":  job.ID,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	path := filepath.Join(s.cfg.AppConfig.OutputDir, jobFileName(job, format))
	s.running.Add(1)
	go s.runSitemapJob(job, format, path)

	result := map[string]interface{}{
		"status":      "started",
		"message":     "Sitemap job started",
		"job_id":      job.ID,
		"domains":     job.Domains,
		"output_path": path,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":          job.ID,
		"domains":         job.Domains,
		"status":          job.Status,
		"started_at":      job.StartedAt.Format(time.RFC3339),
		"entries_written": job.EntriesWritten,
		"batches":         job.Batches,
	}
	if job.OutputPath != "" {
		result["output_path"] = job.OutputPath
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	if len(job.Results) > 0 {
		result["domain_results"] = domainSummaries(job.Results)
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	if _, ok := s.jobManager.GetJob(jobID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	cancelled := s.jobManager.CancelJob(jobID)
	job, _ := s.jobManager.GetJob(jobID)
	result := map[string]interface{}{
		"job_id":    jobID,
		"cancelled": cancelled,
		"status":    job.Status,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleSearchResults handles the search_results tool
func (s *Server) handleSearchResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	maxResults := clamp(request.GetInt("max_results", defaultMaxMatches), 1, maxMaxMatches)

	var files []string
	if jobID := request.GetString("job_id", ""); jobID != "" {
		job, ok := s.jobManager.GetJob(jobID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
		}
		if job.OutputPath == "" || !strings.HasSuffix(job.OutputPath, "."+config.OutputFormatJSONL) {
			return mcp.NewToolResultError(fmt.Sprintf("job '%s' has no JSONL output", jobID)), nil
		}
		files = []string{job.OutputPath}
	} else {
		matches, err := filepath.Glob(filepath.Join(s.cfg.AppConfig.OutputDir, "*."+config.OutputFormatJSONL))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list output files: %v", err)), nil
		}
		sort.Strings(matches)
		files = matches
	}

	results := searchJSONL(files, query, maxResults)
	response := map[string]interface{}{
		"query":         query,
		"results":       results,
		"total_matches": len(results),
		"files_scanned": len(files),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// runSitemapJob runs a sitemap job in the background
func (s *Server) runSitemapJob(job Job, format, path string) {
	defer s.running.Done()
	jobCtx := s.jobManager.GetContext(job.ID)
	log := s.log.WithField("job_id", job.ID)

	sink, err := output.Open(format, path)
	if err != nil {
		s.jobManager.Finish(job.ID, JobStatusFailed, nil, fmt.Sprintf("failed to open output: %v", err))
		return
	}
	s.jobManager.SetRunning(job.ID, path)
	log.Infof("Sitemap job started for %d domain(s), writing to %s", len(job.Domains), path)

	results, runErr := s.orchestrator.Run(jobCtx, job.Domains, &progressSink{
		Sink:    sink,
		onBatch: func(n int) { s.jobManager.AddProgress(job.ID, n) },
	})
	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close output: %w", closeErr)
	}

	switch {
	case runErr == nil:
		s.jobManager.Finish(job.ID, JobStatusCompleted, results, "")
		log.Info("Sitemap job completed")
	case utils.IsCancellation(runErr):
		msg := ""
		if errors.Is(runErr, context.DeadlineExceeded) {
			msg = "global timeout exceeded"
		}
		s.jobManager.Finish(job.ID, JobStatusCancelled, results, msg)
		log.WithError(runErr).Warn("Sitemap job cancelled")
	default:
		s.jobManager.Finish(job.ID, JobStatusFailed, results, runErr.Error())
		log.WithError(runErr).Error("Sitemap job failed")
	}
}

// progressSink reports each delivered batch to the job manager
type progressSink struct {
	output.Sink
	onBatch func(n int)
}

func (p *progressSink) WriteBatch(entries []models.SitemapEntry) error {
	if err := p.Sink.WriteBatch(entries); err != nil {
		return err
	}
	p.onBatch(len(entries))
	return nil
}

// jobFileName names a job's output file after its domain, or after the job for multi-domain runs
func jobFileName(job Job, format string) string {
	if len(job.Domains) == 1 {
		return utils.DomainFileStem(job.Domains[0]) + "." + format
	}
	return "sitemap-urls-" + job.ID[:8] + "." + format
}

// domainSummaries renders DomainResults for tool output
func domainSummaries(results []models.DomainResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		summary := map[string]interface{}{
			"base_domain":      r.BaseDomain,
			"status":           r.Status.String(),
			"locations":        r.Locations,
			"entry_count":      r.EntryCount,
			"duration_seconds": r.Duration.Seconds(),
		}
		if len(r.Errors) > 0 {
			summary["errors"] = r.Errors
		}
		if r.Err != nil {
			summary["error"] = r.Err.Error()
		}
		out = append(out, summary)
	}
	return out
}

// searchJSONL streams JSONL output files and returns entries whose URL contains query
func searchJSONL(files []string, query string, maxResults int) []map[string]interface{} {
	results := make([]map[string]interface{}, 0)
	queryLower := strings.ToLower(query)

	for _, path := range files {
		if len(results) >= maxResults {
			break
		}
		file, err := os.Open(path)
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() && len(results) < maxResults {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var entry models.SitemapEntry
			if err := parseJSONLine(line, &entry); err != nil {
				continue
			}
			if !strings.Contains(strings.ToLower(entry.URL), queryLower) {
				continue
			}
			match := map[string]interface{}{
				"url":  entry.URL,
				"file": filepath.Base(path),
			}
			if entry.LastMod != "" {
				match["lastmod"] = entry.LastMod
			}
			results = append(results, match)
		}
		file.Close()
	}
	return results
}

// splitDomains splits a comma-separated domain list, dropping blanks
func splitDomains(raw string) []string {
	var domains []string
	for _, part := range strings.Split(raw, ",") {
		if d := strings.TrimSpace(part); d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// parseJSONLine decodes one JSONL record
func parseJSONLine(line string, v interface{}) error {
	if line == "" {
		return fmt.Errorf("empty line")
	}
	return json.Unmarshal([]byte(line), v)
}

// formatJSON formats a value as indented JSON
func formatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "failed to format JSON: %v"}`, err)
	}
	return string(data)
}
