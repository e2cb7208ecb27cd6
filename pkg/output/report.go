package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/sitemap-urls/pkg/models"
)

// Report summarizes one multi-domain run
type Report struct {
	StartedAt time.Time
	Duration  time.Duration
	Domains   []models.DomainResult
	Err       error // Run-level failure, if any
}

// Totals returns the entry count and the number of domains per status
func (r *Report) Totals() (entries int, byStatus map[models.DomainStatus]int) {
	byStatus = make(map[models.DomainStatus]int)
	for _, d := range r.Domains {
		entries += d.EntryCount
		byStatus[d.Status]++
	}
	return entries, byStatus
}

// Markdown renders the report as a Markdown document
func (r *Report) Markdown() string {
	var b strings.Builder
	entries, byStatus := r.Totals()

	b.WriteString("# Sitemap run report\n\n")
	fmt.Fprintf(&b, "- Started: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "- Domains: %d (%d success, %d failed, %d empty ignored, %d cancelled)\n",
		len(r.Domains),
		byStatus[models.DomainStatusSuccess],
		byStatus[models.DomainStatusFailed],
		byStatus[models.DomainStatusEmptyIgnored],
		byStatus[models.DomainStatusCancelled])
	fmt.Fprintf(&b, "- Entries: %d\n", entries)
	if r.Err != nil {
		fmt.Fprintf(&b, "- Run error: `%s`\n", mdEscape(r.Err.Error()))
	}

	if len(r.Domains) > 0 {
		b.WriteString("\n## Domains\n\n")
		b.WriteString("| Domain | Status | Locations | Entries | Errors | Duration |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, d := range r.Domains {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %s |\n",
				mdEscape(d.BaseDomain), d.Status, len(d.Locations), d.EntryCount, len(d.Errors), d.Duration.Round(time.Millisecond))
		}
	}

	for _, d := range r.Domains {
		if len(d.Errors) == 0 && d.Err == nil {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n\n", mdEscape(d.BaseDomain))
		if d.Err != nil {
			fmt.Fprintf(&b, "**%s**\n\n", mdEscape(d.Err.Error()))
		}
		for _, e := range d.Errors {
			fmt.Fprintf(&b, "- %s\n", mdEscape(e))
		}
	}
	return b.String()
}

// HTML converts the Markdown rendering with goldmark (GFM tables enabled)
func (r *Report) HTML() (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("failed to render report HTML: %w", err)
	}
	return buf.String(), nil
}

// reportDomain is the YAML shape of one DomainResult
type reportDomain struct {
	BaseDomain string   `yaml:"base_domain"`
	Status     string   `yaml:"status"`
	Locations  []string `yaml:"locations,omitempty"`
	EntryCount int      `yaml:"entry_count"`
	Errors     []string `yaml:"errors,omitempty"`
	Error      string   `yaml:"error,omitempty"`
	Duration   string   `yaml:"duration"`
}

// YAML renders the report as a YAML document
func (r *Report) YAML() ([]byte, error) {
	doc := struct {
		StartedAt time.Time      `yaml:"started_at"`
		Duration  string         `yaml:"duration"`
		Entries   int            `yaml:"total_entries"`
		RunError  string         `yaml:"run_error,omitempty"`
		Domains   []reportDomain `yaml:"domains"`
	}{
		StartedAt: r.StartedAt,
		Duration:  r.Duration.String(),
	}
	doc.Entries, _ = r.Totals()
	if r.Err != nil {
		doc.RunError = r.Err.Error()
	}
	for _, d := range r.Domains {
		rd := reportDomain{
			BaseDomain: d.BaseDomain,
			Status:     d.Status.String(),
			Locations:  d.Locations,
			EntryCount: d.EntryCount,
			Errors:     d.Errors,
			Duration:   d.Duration.String(),
		}
		if d.Err != nil {
			rd.Error = d.Err.Error()
		}
		doc.Domains = append(doc.Domains, rd)
	}
	return yaml.Marshal(&doc)
}

// WriteFile renders the report by extension (.html, .yaml/.yml, otherwise Markdown) and writes it to path
func (r *Report) WriteFile(path string) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		html, err := r.HTML()
		if err != nil {
			return err
		}
		data = []byte(html)
	case ".yaml", ".yml":
		y, err := r.YAML()
		if err != nil {
			return fmt.Errorf("failed to marshal report YAML: %w", err)
		}
		data = y
	default:
		data = []byte(r.Markdown())
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory '%s': %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report '%s': %w", path, err)
	}
	return nil
}

var mdEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "`", "'")

func mdEscape(s string) string { return mdEscaper.Replace(s) }
