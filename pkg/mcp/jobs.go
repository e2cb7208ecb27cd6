package mcp

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/sitemap-urls/pkg/models"
	"github.com/Sriram-PR/sitemap-urls/pkg/parse"
)

// JobStatus represents the current state of a background sitemap job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) active() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job is a background run over one list of domains
type Job struct {
	ID             string                `json:"id"`
	Domains        []string              `json:"domains"`
	Status         JobStatus             `json:"status"`
	StartedAt      time.Time             `json:"started_at"`
	CompletedAt    time.Time             `json:"completed_at,omitempty"`
	EntriesWritten int64                 `json:"entries_written"`
	Batches        int64                 `json:"batches"`
	OutputPath     string                `json:"output_path,omitempty"`
	Results        []models.DomainResult `json:"-"`
	ErrorMessage   string                `json:"error_message,omitempty"`

	key    string
	ctx    context.Context
	cancel context.CancelFunc
}

// JobKey identifies a domain list independent of order, case and trailing slashes
func JobKey(domains []string) string {
	norm := make([]string, 0, len(domains))
	for _, d := range domains {
		if n := strings.ToLower(parse.NormalizeBaseDomain(d)); n != "" {
			norm = append(norm, n)
		}
	}
	sort.Strings(norm)
	return strings.Join(norm, ",")
}

// JobManager tracks background jobs. At most one active job exists per domain list.
type JobManager struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	byKey map[string]string // JobKey -> ID of the active job
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:  make(map[string]*Job),
		byKey: make(map[string]string),
	}
}

// CreateJob registers a pending job for domains. If one is already active for
// the same domain list, that job is returned with created=false.
func (m *JobManager) CreateJob(domains []string) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := JobKey(domains)
	if id, ok := m.byKey[key]; ok {
		if existing := m.jobs[id]; existing != nil && existing.Status.active() {
			return existing.snapshot(), false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:        uuid.New().String(),
		Domains:   append([]string(nil), domains...),
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		key:       key,
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[j.ID] = j
	m.byKey[key] = j.ID
	return j.snapshot(), true
}

// GetJob returns a copy of the job with jobID
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[jobID]; ok {
		return j.snapshot(), true
	}
	return Job{}, false
}

// ActiveJobFor returns the active job for a domain list, if any
func (m *JobManager) ActiveJobFor(domains []string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.byKey[JobKey(domains)]; ok {
		if j := m.jobs[id]; j != nil && j.Status.active() {
			return j.snapshot(), true
		}
	}
	return Job{}, false
}

// SetRunning moves a pending job to running and records where it writes
func (m *JobManager) SetRunning(jobID, outputPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[jobID]; ok && j.Status == JobStatusPending {
		j.Status = JobStatusRunning
		j.OutputPath = outputPath
	}
}

// AddProgress records one delivered batch of n entries
func (m *JobManager) AddProgress(jobID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[jobID]; ok {
		j.Batches++
		j.EntriesWritten += int64(n)
	}
}

// Finish records the final status and per-domain results. A job already
// cancelled keeps its status but still receives results.
func (m *JobManager) Finish(jobID string, status JobStatus, results []models.DomainResult, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}
	j.Results = results
	if errorMsg != "" {
		j.ErrorMessage = errorMsg
	}
	if !j.Status.active() {
		return
	}
	j.Status = status
	j.CompletedAt = time.Now()
	j.cancel()
	delete(m.byKey, j.key)
}

// CancelJob cancels an active job. Returns false if it is unknown or already finished.
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok || !j.Status.active() {
		return false
	}
	j.cancelLocked()
	delete(m.byKey, j.key)
	return true
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.Status.active() {
			j.cancelLocked()
		}
	}
	m.byKey = make(map[string]string)
}

// ListJobs returns copies of all jobs, most recent first
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j.snapshot())
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].StartedAt.After(jobs[b].StartedAt) })
	return jobs
}

// GetContext returns the context a job runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[jobID]; ok {
		return j.ctx
	}
	return context.Background()
}

func (j *Job) cancelLocked() {
	j.cancel()
	j.Status = JobStatusCancelled
	j.CompletedAt = time.Now()
}

func (j *Job) snapshot() Job {
	c := *j
	c.Domains = append([]string(nil), j.Domains...)
	c.Results = append([]models.DomainResult(nil), j.Results...)
	return c
}
