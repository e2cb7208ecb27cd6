// Package output delivers sitemap entries to their destination and renders run reports.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/models"
	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

// Sink receives entries in bounded batches, in delivery order
type Sink interface {
	WriteBatch(entries []models.SitemapEntry) error
	Close() error
}

// Open creates a file-backed sink for format. An empty path or "-" writes to stdout.
func Open(format, path string) (Sink, error) {
	if path == "" || path == "-" {
		return New(format, os.Stdout)
	}
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory '%s': %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file '%s': %w", path, err)
	}
	return newSink(format, f, f), nil
}

// New creates a sink for format over w. Close flushes but does not close w.
func New(format string, w io.Writer) (Sink, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	return newSink(format, w, nil), nil
}

func checkFormat(format string) error {
	switch format {
	case "", config.OutputFormatJSONL, config.OutputFormatTSV:
		return nil
	}
	return fmt.Errorf("%w: unknown output format '%s'", utils.ErrConfigValidation, format)
}

func newSink(format string, w io.Writer, closer io.Closer) Sink {
	if format == config.OutputFormatTSV {
		return newTSVSink(w, closer)
	}
	return newJSONLSink(w, closer)
}

// JSONLSink writes one JSON object per entry per line. Empty optional fields are omitted.
type JSONLSink struct {
	mu     sync.Mutex
	bw     *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONLSink writes to w. Close flushes but does not close w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return newJSONLSink(w, nil)
}

func newJSONLSink(w io.Writer, closer io.Closer) *JSONLSink {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLSink{bw: bw, enc: enc, closer: closer}
}

// WriteBatch implements Sink
func (s *JSONLSink) WriteBatch(entries []models.SitemapEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range entries {
		if err := s.enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("failed to write JSONL entry: %w", err)
		}
	}
	return nil
}

// Close flushes buffered output and closes the file it owns
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flushAndClose(s.bw, s.closer)
}

// TSVSink writes a header row followed by one tab-separated row per entry.
// Absent optional fields are empty cells.
type TSVSink struct {
	mu          sync.Mutex
	bw          *bufio.Writer
	closer      io.Closer
	wroteHeader bool
}

// NewTSVSink writes to w. Close flushes but does not close w.
func NewTSVSink(w io.Writer) *TSVSink {
	return newTSVSink(w, nil)
}

func newTSVSink(w io.Writer, closer io.Closer) *TSVSink {
	return &TSVSink{bw: bufio.NewWriter(w), closer: closer}
}

const tsvHeader = "url\tlastmod\tchangefreq\tpriority\n"

var tsvCleaner = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// WriteBatch implements Sink
func (s *TSVSink) WriteBatch(entries []models.SitemapEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.wroteHeader {
		if _, err := s.bw.WriteString(tsvHeader); err != nil {
			return fmt.Errorf("failed to write TSV header: %w", err)
		}
		s.wroteHeader = true
	}
	for _, e := range entries {
		line := strings.Join([]string{
			tsvCleaner.Replace(e.URL),
			tsvCleaner.Replace(e.LastMod),
			tsvCleaner.Replace(e.ChangeFreq),
			tsvCleaner.Replace(e.Priority),
		}, "\t")
		if _, err := s.bw.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("failed to write TSV row: %w", err)
		}
	}
	return nil
}

// Close flushes buffered output (writing the header if nothing else was written)
// and closes the file it owns
func (s *TSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.wroteHeader {
		if _, err := s.bw.WriteString(tsvHeader); err != nil {
			flushAndClose(s.bw, s.closer)
			return fmt.Errorf("failed to write TSV header: %w", err)
		}
		s.wroteHeader = true
	}
	return flushAndClose(s.bw, s.closer)
}

func flushAndClose(bw *bufio.Writer, closer io.Closer) error {
	err := bw.Flush()
	if closer != nil {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// CollectSink keeps entries in memory, up to Limit when Limit > 0
type CollectSink struct {
	mu        sync.Mutex
	limit     int
	entries   []models.SitemapEntry
	batches   int
	truncated bool
}

// NewCollectSink creates a CollectSink. limit <= 0 keeps everything.
func NewCollectSink(limit int) *CollectSink {
	return &CollectSink{limit: limit}
}

// WriteBatch implements Sink. Entries past the limit are dropped and Truncated reports it.
func (s *CollectSink) WriteBatch(entries []models.SitemapEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.limit > 0 && len(s.entries)+len(entries) > s.limit {
		entries = entries[:s.limit-len(s.entries)]
		s.truncated = true
	}
	s.entries = append(s.entries, entries...)
	return nil
}

// Close implements Sink
func (s *CollectSink) Close() error { return nil }

// Entries returns a copy of everything collected
func (s *CollectSink) Entries() []models.SitemapEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SitemapEntry(nil), s.entries...)
}

// Batches returns how many WriteBatch calls were received
func (s *CollectSink) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// Truncated reports whether entries were dropped because of the limit
func (s *CollectSink) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}
