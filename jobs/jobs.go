// Package jobs dispatches crawl and clean runs to background goroutines and
// tracks their lifecycle. At most one job may be active per output path;
// conflicting submissions are rejected with ErrPathBusy rather than queued,
// so triggering callers get an immediate, explicit busy signal.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-scholar/cleaner"
	"github.com/aluiziolira/go-scrape-scholar/config"
	"github.com/aluiziolira/go-scrape-scholar/pipeline"
	"github.com/aluiziolira/go-scrape-scholar/scraper"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Kind discriminates crawl jobs from clean jobs.
type Kind string

const (
	KindCrawl Kind = "crawl"
	KindClean Kind = "clean"
)

var (
	// ErrPathBusy is returned when a job is already running against the
	// requested output path.
	ErrPathBusy = errors.New("jobs: output path busy")
	// ErrNotFound is returned for unknown job handles.
	ErrNotFound = errors.New("jobs: job not found")
)

// Job is a snapshot of one job's state.
type Job struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Status      Status    `json:"status"`
	OutputPath  string    `json:"output_path"`
	SubmittedAt time.Time `json:"submitted_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	// Records counts persisted records; with Status failed and Records > 0
	// the run failed after persisting partial data.
	Records    int    `json:"records"`
	ErrorClass string `json:"error_class,omitempty"`
	Error      string `json:"error,omitempty"`
}

type jobState struct {
	snapshot Job
	cancel   context.CancelFunc
}

// Manager owns all background jobs.
type Manager struct {
	metrics *scraper.Metrics

	mu     sync.Mutex
	jobs   map[string]*jobState
	active map[string]string // output path -> job id
}

// NewManager builds an empty job manager. All crawl jobs it dispatches
// report into one shared metrics registry.
func NewManager() *Manager {
	return &Manager{
		metrics: scraper.NewMetrics(),
		jobs:    make(map[string]*jobState),
		active:  make(map[string]string),
	}
}

// Metrics exposes the shared crawl metrics bundle for serving.
func (m *Manager) Metrics() *scraper.Metrics {
	return m.metrics
}

// StartCrawl validates cfg, reserves its output path, and runs the crawl on
// a background goroutine. It returns the job handle immediately.
func (m *Manager) StartCrawl(cfg *config.CrawlConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", scraper.ErrConfig{Err: err}
	}

	s, err := scraper.NewScraper(cfg, scraper.WithMetrics(m.metrics))
	if err != nil {
		return "", err
	}

	// Dual-format crawls also write a .json sibling; reserve both so no
	// other job can race on either file.
	return m.launch(KindCrawl, pipeline.RawOutputPaths(cfg.OutputFormat, cfg.OutputFile), func(ctx context.Context) (int, error) {
		result, err := s.Run(ctx)
		records := 0
		if result != nil {
			records = result.UniqueTitles
		}
		return records, err
	})
}

// StartClean validates cfg, reserves its output path, and runs the clean
// stage on a background goroutine. It returns the job handle immediately.
func (m *Manager) StartClean(cfg *config.CleanConfig) (string, error) {
	c, err := cleaner.New(cfg)
	if err != nil {
		return "", err
	}

	return m.launch(KindClean, []string{cfg.ResolvedOutput()}, func(ctx context.Context) (int, error) {
		result, err := c.Run(ctx)
		records := 0
		if result != nil {
			records = len(result.Records)
		}
		return records, err
	})
}

func (m *Manager) launch(kind Kind, outputPaths []string, run func(context.Context) (int, error)) (string, error) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	for _, path := range outputPaths {
		if owner, busy := m.active[path]; busy {
			m.mu.Unlock()
			cancel()
			return "", fmt.Errorf("%w: %s (job %s)", ErrPathBusy, path, owner)
		}
	}
	for _, path := range outputPaths {
		m.active[path] = id
	}
	m.jobs[id] = &jobState{
		snapshot: Job{
			ID:          id,
			Kind:        kind,
			Status:      StatusPending,
			OutputPath:  outputPaths[0],
			SubmittedAt: time.Now(),
		},
		cancel: cancel,
	}
	m.mu.Unlock()

	go m.execute(ctx, id, outputPaths, run)
	return id, nil
}

func (m *Manager) execute(ctx context.Context, id string, outputPaths []string, run func(context.Context) (int, error)) {
	m.update(id, func(j *Job) {
		j.Status = StatusRunning
	})

	records, err := run(ctx)

	cancelled := ctx.Err() != nil
	m.mu.Lock()
	for _, path := range outputPaths {
		delete(m.active, path)
	}
	m.mu.Unlock()

	m.update(id, func(j *Job) {
		j.FinishedAt = time.Now()
		j.Records = records
		switch {
		case err != nil:
			j.Status = StatusFailed
			j.Error = err.Error()
			j.ErrorClass = classify(err)
		case cancelled:
			j.Status = StatusFailed
			j.Error = "cancelled before completion"
			j.ErrorClass = "cancelled"
		default:
			j.Status = StatusSucceeded
		}
	})

	if err != nil {
		slog.Error("job failed", slog.String("id", id), slog.Any("error", err))
	}
}

// Status returns a snapshot of the job.
func (m *Manager) Status(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return state.snapshot, nil
}

// Cancel signals the job's context. The stage persists whatever it has
// collected before returning.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	state.cancel()
	return nil
}

// List returns snapshots of all known jobs.
func (m *Manager) List() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, 0, len(m.jobs))
	for _, state := range m.jobs {
		out = append(out, state.snapshot)
	}
	return out
}

func (m *Manager) update(id string, mutate func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.jobs[id]; ok {
		mutate(&state.snapshot)
	}
}

func classify(err error) string {
	var fetch scraper.ErrFetch
	var cfg scraper.ErrConfig
	switch {
	case errors.As(err, &fetch):
		return "fetch"
	case errors.As(err, &cfg):
		return "config"
	case errors.Is(err, cleaner.ErrInputNotFound):
		return "input_not_found"
	case errors.Is(err, cleaner.ErrUnsupportedLanguage):
		return "unsupported_language"
	default:
		return "internal"
	}
}
