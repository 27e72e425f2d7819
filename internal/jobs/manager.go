package jobs

import (
	"context"
	"sync"
	"time"

	"elasticpool/pkg/logger"
)

// Job represents a periodic background task.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Stats run counters of one job
type Stats struct {
	Name      string
	Runs      int
	Failures  int
	LastRun   time.Time
	LastError string
}

// Manager runs registered jobs until its context ends. Every job runs once
// on Start and then on its own interval; a failed run waits for the next tick.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    []Job
	stats   map[string]*Stats
	started bool
	wg      sync.WaitGroup
}

// NewManager creates a job manager bound to the provided context.
func NewManager(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		stats:  make(map[string]*Stats),
	}
}

// Register adds a job. Jobs registered after Start are ignored.
func (m *Manager) Register(job Job) {
	if job == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		logger.WarnCtx(m.ctx, "job %s registered after start, ignoring", job.Name())
		return
	}
	m.jobs = append(m.jobs, job)
	m.stats[job.Name()] = &Stats{Name: job.Name()}
}

// Len returns the number of registered jobs
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Stats returns a copy of every job's counters in registration order
func (m *Manager) Stats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Stats, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, *m.stats[job.Name()])
	}
	return out
}

// Start launches all registered jobs.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	jobs := append([]Job(nil), m.jobs...)
	m.mu.Unlock()

	for _, job := range jobs {
		m.wg.Add(1)
		go m.loop(job)
	}
}

// Stop signals all jobs to stop.
func (m *Manager) Stop() {
	m.cancel()
}

// Wait blocks until all jobs exit.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) loop(job Job) {
	defer m.wg.Done()

	interval := job.Interval()
	if interval <= 0 {
		interval = time.Minute
	}
	logger.InfoCtx(m.ctx, "background job %s started, interval: %s", job.Name(), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.runOnce(job)
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) runOnce(job Job) {
	if m.ctx.Err() != nil {
		return
	}
	ctx := logger.WithTrace(m.ctx, job.Name())
	err := job.Run(ctx)

	m.mu.Lock()
	s := m.stats[job.Name()]
	s.Runs++
	s.LastRun = time.Now()
	s.LastError = ""
	if err != nil {
		s.Failures++
		s.LastError = err.Error()
	}
	m.mu.Unlock()

	if err != nil && m.ctx.Err() == nil {
		logger.WarnCtx(ctx, "background job %s failed: %v", job.Name(), err)
	}
}
