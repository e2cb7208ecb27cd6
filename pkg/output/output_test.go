package output

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/sitemap-urls/pkg/models"
	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

var sampleEntries = []models.SitemapEntry{
	{URL: "https://a.com/1"},
	{URL: "https://a.com/2?x=1&y=<2>", LastMod: "2024-01-01", ChangeFreq: "daily", Priority: "0.5"},
}

func TestJSONLSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLSink(&buf)
	require.NoError(t, s.WriteBatch(sampleEntries[:1]))
	require.NoError(t, s.WriteBatch(sampleEntries[1:]))
	require.NoError(t, s.Close())

	assert.Equal(t,
		`{"url":"https://a.com/1"}`+"\n"+
			`{"url":"https://a.com/2?x=1&y=<2>","lastmod":"2024-01-01","changefreq":"daily","priority":"0.5"}`+"\n",
		buf.String())
}

func TestTSVSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewTSVSink(&buf)
	require.NoError(t, s.WriteBatch(sampleEntries))
	require.NoError(t, s.WriteBatch([]models.SitemapEntry{{URL: "https://a.com/tab\there"}}))
	require.NoError(t, s.Close())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"url\tlastmod\tchangefreq\tpriority",
		"https://a.com/1\t\t\t",
		"https://a.com/2?x=1&y=<2>\t2024-01-01\tdaily\t0.5",
		"https://a.com/tab here\t\t\t",
	}, lines)
}

func TestTSVSink_HeaderOnlyWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	s := NewTSVSink(&buf)
	require.NoError(t, s.Close())
	assert.Equal(t, "url\tlastmod\tchangefreq\tpriority\n", buf.String())
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestSinks_CloseReportsWriteFailure(t *testing.T) {
	diskFull := errors.New("disk full")

	tsv := NewTSVSink(failingWriter{err: diskFull})
	assert.ErrorIs(t, tsv.Close(), diskFull, "header-only TSV output still has to reach the writer")

	jsonl := NewJSONLSink(failingWriter{err: diskFull})
	require.NoError(t, jsonl.WriteBatch(sampleEntries[:1]))
	assert.ErrorIs(t, jsonl.Close(), diskFull)
}

func TestCollectSink_Limit(t *testing.T) {
	s := NewCollectSink(3)
	require.NoError(t, s.WriteBatch(sampleEntries))
	assert.False(t, s.Truncated())
	require.NoError(t, s.WriteBatch(sampleEntries))
	require.NoError(t, s.WriteBatch(sampleEntries))

	assert.Len(t, s.Entries(), 3)
	assert.True(t, s.Truncated())
	assert.Equal(t, 3, s.Batches())

	unlimited := NewCollectSink(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, unlimited.WriteBatch(sampleEntries))
	}
	assert.Len(t, unlimited.Entries(), 10)
	assert.False(t, unlimited.Truncated())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "nested", "out.jsonl")
	s, err := Open("jsonl", path)
	require.NoError(t, err)
	require.NoError(t, s.WriteBatch(sampleEntries[:1]))
	require.NoError(t, s.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"url":"https://a.com/1"}`+"\n", string(data))

	tsvPath := filepath.Join(dir, "out.tsv")
	s, err = Open("tsv", tsvPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	data, err = os.ReadFile(tsvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "url\t"))

	_, err = Open("csv", filepath.Join(dir, "out.csv"))
	assert.True(t, errors.Is(err, utils.ErrConfigValidation))
	_, statErr := os.Stat(filepath.Join(dir, "out.csv"))
	assert.True(t, os.IsNotExist(statErr), "no file is created for an unknown format")
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	s, err := New("tsv", &buf)
	require.NoError(t, err)
	require.NoError(t, s.WriteBatch(sampleEntries[:1]))
	require.NoError(t, s.Close())
	assert.Equal(t, "url\tlastmod\tchangefreq\tpriority\nhttps://a.com/1\t\t\t\n", buf.String())

	_, err = New("xml", &buf)
	assert.True(t, errors.Is(err, utils.ErrConfigValidation))
}

func sampleReport() *Report {
	return &Report{
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Domains: []models.DomainResult{
			{BaseDomain: "https://a.com", Locations: []string{"https://a.com/sitemap.xml"}, EntryCount: 12, Status: models.DomainStatusSuccess, Duration: time.Second},
			{
				BaseDomain: "https://b.com", Status: models.DomainStatusFailed,
				Errors: []string{"failed to fetch https://b.com/sitemap.xml: status | 500"},
				Err:    errors.New("no sitemap entries found"),
			},
			{BaseDomain: "https://c.com", Status: models.DomainStatusEmptyIgnored},
		},
	}
}

func TestReport_Markdown(t *testing.T) {
	md := sampleReport().Markdown()

	assert.Contains(t, md, "# Sitemap run report")
	assert.Contains(t, md, "- Domains: 3 (1 success, 1 failed, 1 empty ignored, 0 cancelled)")
	assert.Contains(t, md, "- Entries: 12")
	assert.Contains(t, md, "| https://a.com | success | 1 | 12 | 0 | 1s |")
	assert.Contains(t, md, "### https://b.com")
	assert.Contains(t, md, `status \| 500`)
	assert.NotContains(t, md, "### https://c.com")
}

func TestReport_HTML(t *testing.T) {
	html, err := sampleReport().HTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Sitemap run report</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>https://a.com</td>")
}

func TestReport_WriteFile(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()

	for _, name := range []string{"report.md", "report.html", "report.yaml"} {
		require.NoError(t, r.WriteFile(filepath.Join(dir, name)), name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "report.yaml"))
	require.NoError(t, err)
	var parsed struct {
		Entries int `yaml:"total_entries"`
		Domains []struct {
			BaseDomain string `yaml:"base_domain"`
			Status     string `yaml:"status"`
			Error      string `yaml:"error"`
		} `yaml:"domains"`
	}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, 12, parsed.Entries)
	require.Len(t, parsed.Domains, 3)
	assert.Equal(t, "failed", parsed.Domains[1].Status)
	assert.Equal(t, "no sitemap entries found", parsed.Domains[1].Error)

	html, err := os.ReadFile(filepath.Join(dir, "report.html"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(html), "<h1>"))
}
