package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/portal/internal/infrastructure/config"
	"github.com/erp/portal/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Refresh Job Types
// ---------------------------------------------------------------------------

// RefreshJobStatus represents the status of a refresh job
type RefreshJobStatus string

const (
	RefreshJobStatusPending   RefreshJobStatus = "PENDING"
	RefreshJobStatusRunning   RefreshJobStatus = "RUNNING"
	RefreshJobStatusCompleted RefreshJobStatus = "COMPLETED"
	RefreshJobStatusPanicked  RefreshJobStatus = "PANICKED"
	RefreshJobStatusCancelled RefreshJobStatus = "CANCELLED"
)

// RefreshJob is one queued background job, usually a crawl for a cache key
type RefreshJob struct {
	ID          uuid.UUID
	Name        string
	Status      RefreshJobStatus
	Error       string
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	run func(ctx context.Context)
}

// NewRefreshJob creates a pending job
func NewRefreshJob(name string, run func(ctx context.Context)) *RefreshJob {
	return &RefreshJob{
		ID:          uuid.New(),
		Name:        name,
		Status:      RefreshJobStatusPending,
		SubmittedAt: time.Now(),
		run:         run,
	}
}

func (j *RefreshJob) start() {
	now := time.Now()
	j.Status = RefreshJobStatusRunning
	j.StartedAt = &now
}

func (j *RefreshJob) finish(status RefreshJobStatus, errMsg string) {
	now := time.Now()
	j.Status = status
	j.Error = errMsg
	j.CompletedAt = &now
}

// Duration returns how long the job ran, or 0 if it has not finished
func (j *RefreshJob) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// ---------------------------------------------------------------------------
// RefreshPoolConfig
// ---------------------------------------------------------------------------

// RefreshPoolConfig holds configuration for the refresh pool
type RefreshPoolConfig struct {
	// Workers is the number of jobs that run concurrently
	Workers int
	// QueueSize bounds the jobs waiting for a worker
	QueueSize int
	// JobTimeout caps the context handed to every job
	JobTimeout time.Duration
	// HistorySize is how many finished jobs are kept for monitoring
	HistorySize int
}

// DefaultRefreshPoolConfig returns default configuration
func DefaultRefreshPoolConfig() RefreshPoolConfig {
	return RefreshPoolConfig{
		Workers:     4,
		QueueSize:   64,
		JobTimeout:  30 * time.Minute,
		HistorySize: 100,
	}
}

// RefreshPoolConfigFrom maps the scheduler section of the application config
func RefreshPoolConfigFrom(cfg config.SchedulerConfig) RefreshPoolConfig {
	return RefreshPoolConfig{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		JobTimeout:  cfg.JobTimeout,
		HistorySize: cfg.HistorySize,
	}
}

// Validate validates the configuration
func (c *RefreshPoolConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("%w: history size cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// ---------------------------------------------------------------------------
// RefreshPool
// ---------------------------------------------------------------------------

// RefreshPool runs background crawls on a fixed set of workers. Jobs run under
// the pool's own context, never the context of the request that queued them.
type RefreshPool struct {
	config RefreshPoolConfig
	logger *zap.Logger

	jobs      chan *RefreshJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool

	historyMu sync.RWMutex
	history   []*RefreshJob
}

// NewRefreshPool creates a stopped pool
func NewRefreshPool(config RefreshPoolConfig, logger *zap.Logger) (*RefreshPool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RefreshPool{
		config:  config,
		logger:  logger.Named("refresh_pool"),
		history: make([]*RefreshJob, 0, config.HistorySize),
	}, nil
}

// Start starts the workers. Calling Start on a running pool is a no-op.
func (p *RefreshPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.jobs = make(chan *RefreshJob, p.config.QueueSize)
	p.isRunning = true

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, p.jobs)
	}

	p.logger.Info("Refresh pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize),
		zap.Duration("job_timeout", p.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers until ctx is done.
// Queued jobs that never started are recorded as cancelled.
func (p *RefreshPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	jobs := p.jobs
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	close(jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Refresh pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Refresh pool stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the pool accepts jobs
func (p *RefreshPool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// Submit queues run under name without blocking. It fails with
// ErrSchedulerNotRunning or ErrJobQueueFull; a rejected job is dropped.
func (p *RefreshPool) Submit(name string, run func(ctx context.Context)) error {
	_, err := p.SubmitJob(NewRefreshJob(name, run))
	return err
}

// SubmitJob queues job and returns it for tracking
func (p *RefreshPool) SubmitJob(job *RefreshJob) (*RefreshJob, error) {
	// the read lock keeps Stop from closing the channel mid-send
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.isRunning {
		return nil, ErrSchedulerNotRunning
	}

	select {
	case p.jobs <- job:
		p.logger.Debug("Refresh job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("name", job.Name),
		)
		return job, nil
	default:
		p.logger.Warn("Refresh queue full, dropping job", zap.String("name", job.Name))
		return nil, ErrJobQueueFull
	}
}

// QueueLength returns the number of jobs waiting for a worker
func (p *RefreshPool) QueueLength() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.jobs == nil {
		return 0
	}
	return len(p.jobs)
}

// worker processes jobs from the queue
func (p *RefreshPool) worker(ctx context.Context, workerID int, jobs <-chan *RefreshJob) {
	defer p.wg.Done()

	p.logger.Debug("Refresh worker started", zap.Int("worker_id", workerID))

	for job := range jobs {
		if ctx.Err() != nil {
			p.cancelJob(ctx, job)
			continue
		}
		p.processJob(ctx, job, workerID)
	}

	p.logger.Debug("Refresh worker stopping", zap.Int("worker_id", workerID))
}

// cancelJob runs a job that was still queued when the pool stopped with the
// cancelled context, so a job owning a lock (a crawl continuation holds its
// crawl lock) can release it. The job is recorded as cancelled.
func (p *RefreshPool) cancelJob(ctx context.Context, job *RefreshJob) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Cancelled refresh job panicked",
				zap.String("job_id", job.ID.String()),
				zap.String("name", job.Name),
				zap.Any("panic", r),
			)
		}
		job.finish(RefreshJobStatusCancelled, ctx.Err().Error())
		p.addToHistory(job)
	}()
	job.run(ctx)
}

// processJob executes a single job. A panicking job is recorded, not fatal.
func (p *RefreshPool) processJob(ctx context.Context, job *RefreshJob, workerID int) {
	job.start()

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()
	jobCtx = logger.WithContext(jobCtx, p.logger.With(zap.String("job", job.Name)))

	defer func() {
		if r := recover(); r != nil {
			job.finish(RefreshJobStatusPanicked, fmt.Sprint(r))
			p.logger.Error("Refresh job panicked",
				zap.Int("worker_id", workerID),
				zap.String("job_id", job.ID.String()),
				zap.String("name", job.Name),
				zap.Any("panic", r),
				zap.Stack("stacktrace"),
			)
		}
		p.addToHistory(job)
	}()

	job.run(jobCtx)
	job.finish(RefreshJobStatusCompleted, "")

	p.logger.Debug("Refresh job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("name", job.Name),
		zap.Duration("duration", job.Duration()),
	)
}

// addToHistory adds a finished job to the front of the history
func (p *RefreshPool) addToHistory(job *RefreshJob) {
	if p.config.HistorySize == 0 {
		return
	}
	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	p.history = append([]*RefreshJob{job}, p.history...)
	if len(p.history) > p.config.HistorySize {
		p.history = p.history[:p.config.HistorySize]
	}
}

// GetJobHistory returns up to limit finished jobs, newest first
func (p *RefreshPool) GetJobHistory(limit int) []*RefreshJob {
	p.historyMu.RLock()
	defer p.historyMu.RUnlock()

	if limit <= 0 || limit > len(p.history) {
		limit = len(p.history)
	}
	result := make([]*RefreshJob, limit)
	copy(result, p.history[:limit])
	return result
}
