package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultJobTimeout = 10 * time.Minute

// Job is a named unit of background work run on a cron schedule
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Manager runs registered jobs on their cron schedules. A job never overlaps
// with itself: a tick arriving while the previous run is in flight is skipped.
type Manager struct {
	cron    *cron.Cron
	logger  *zap.Logger
	mu      sync.RWMutex
	jobs    map[string]*entry
	running bool
	baseCtx context.Context
}

type entry struct {
	job     Job
	id      cron.EntryID
	busy    sync.Mutex
	mu      sync.Mutex
	lastErr error
	lastRun time.Time
}

// NewManager creates a job manager using six-field (seconds-first) cron specs
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		jobs:    make(map[string]*entry),
		baseCtx: context.Background(),
	}
}

// Register adds a job; registering a name twice replaces the earlier job
func (m *Manager) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}
	if err := ValidateSpec(job.Spec); err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", job.Name, err)
	}
	if job.Timeout <= 0 {
		job.Timeout = defaultJobTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.jobs[job.Name]; ok {
		m.cron.Remove(existing.id)
	}

	e := &entry{job: job}
	id, err := m.cron.AddFunc(job.Spec, func() { m.execute(m.context(), e) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	e.id = id
	m.jobs[job.Name] = e

	m.logger.Info("Registered job", zap.String("job", job.Name), zap.String("cron", job.Spec))
	return nil
}

// Start starts the cron scheduler; jobs run under ctx until Stop
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("job manager already running")
	}
	m.running = true
	m.baseCtx = ctx

	m.logger.Info("Starting job manager", zap.Int("jobs", len(m.jobs)))
	m.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.logger.Info("Stopping job manager")
	<-m.cron.Stop().Done()
}

// RunNow runs a registered job immediately, outside its schedule
func (m *Manager) RunNow(ctx context.Context, name string) error {
	m.mu.RLock()
	e, ok := m.jobs[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return m.execute(ctx, e)
}

// Status returns the schedule and last outcome of a job
func (m *Manager) Status(name string) (*JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job %s not found", name)
	}
	cronEntry := m.cron.Entry(e.id)

	e.mu.Lock()
	defer e.mu.Unlock()
	status := &JobStatus{
		Name:    name,
		Cron:    e.job.Spec,
		NextRun: cronEntry.Next,
		LastRun: e.lastRun,
	}
	if e.lastErr != nil {
		status.LastError = e.lastErr.Error()
	}
	return status, nil
}

// JobStatus represents the status of a scheduled job
type JobStatus struct {
	Name      string    `json:"name"`
	Cron      string    `json:"cron"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

func (m *Manager) context() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseCtx
}

func (m *Manager) execute(ctx context.Context, e *entry) error {
	if !e.busy.TryLock() {
		m.logger.Warn("Skipping job, previous run still in progress", zap.String("job", e.job.Name))
		return fmt.Errorf("job %s already running", e.job.Name)
	}
	defer e.busy.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.job.Timeout)
	defer cancel()

	started := time.Now()
	err := e.job.Run(ctx)
	e.mu.Lock()
	e.lastRun = started
	e.lastErr = err
	e.mu.Unlock()

	if err != nil {
		m.logger.Error("Job failed", zap.String("job", e.job.Name), zap.Error(err))
		return err
	}
	m.logger.Debug("Job completed", zap.String("job", e.job.Name), zap.Duration("took", time.Since(started)))
	return nil
}

// ValidateSpec validates a six-field cron expression or a descriptor such as @every 1m
func ValidateSpec(spec string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(spec)
	return err
}
