// Package scheduler runs the indexer's recurring jobs: one namespace per
// job, one run at a time per namespace, with persisted run logs and a
// queryable status.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/6529-collections/tdh-indexer/internal/metrics"
	"github.com/6529-collections/tdh-indexer/pkg/model"
	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

// RunLogStore persists job run logs.
type RunLogStore interface {
	AppendJobLog(ctx context.Context, line model.JobLogLine) error
}

// Status is the lifecycle state of a job namespace.
type Status string

const (
	StatusIdle Status = "IDLE"
	// StatusDisabled holds a job: no future triggers until StartJob.
	StatusDisabled  Status = "DISABLED"
	StatusStarting  Status = "STARTING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusError     Status = "ERROR"
	// StatusThrottled marks a run aborted by upstream rate limiting; the next
	// scheduled run retries from the persisted watermark.
	StatusThrottled Status = "THROTTLED"
)

// Reporter lets a job emit progress lines that are both logged and persisted
// to the run log.
type Reporter func(level, message string)

// RunFunc is one job execution. It must honor ctx cancellation.
type RunFunc func(ctx context.Context, report Reporter) error

// Job is a recurring named task. A disabled job is registered but never
// triggered until StartJob enables it.
type Job struct {
	Namespace string
	Interval  time.Duration
	Disabled  bool
	Run       RunFunc
}

// JobStatus is the externally visible state of one namespace.
type JobStatus struct {
	Namespace string    `json:"namespace"`
	Status    Status    `json:"status"`
	RunID     string    `json:"run_id,omitempty"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type jobState struct {
	job       Job
	status    Status
	runID     string
	lastRun   time.Time
	nextRun   time.Time
	lastError string
	cancel    context.CancelFunc
	stopped   bool
}

// Scheduler drives registered jobs on their intervals.
type Scheduler struct {
	store  RunLogStore
	logger *zap.Logger

	mu     sync.Mutex
	jobs   map[string]*jobState
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a scheduler.
func New(st RunLogStore, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:  st,
		logger: logger,
		jobs:   map[string]*jobState{},
		stopCh: make(chan struct{}),
	}
}

// Register adds a job. An enabled job's first run is due immediately once
// Start is called.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := StatusIdle
	if job.Disabled {
		status = StatusDisabled
	}
	s.jobs[job.Namespace] = &jobState{
		job:     job,
		status:  status,
		stopped: job.Disabled,
		nextRun: time.Now(),
	}
}

// Start launches the scheduling loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels running jobs and waits for the loop to exit.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.mu.Lock()
	for _, state := range s.jobs {
		if state.cancel != nil {
			state.cancel()
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for _, state := range s.jobs {
				if !running(state.status) && !state.stopped && !now.Before(state.nextRun) {
					s.launch(state)
				}
			}
			s.mu.Unlock()
		}
	}
}

func running(status Status) bool {
	return status == StatusStarting || status == StatusRunning
}

// launch starts one run. Caller holds the mutex.
func (s *Scheduler) launch(state *jobState) {
	ctx, cancel := context.WithCancel(context.Background())
	state.status = StatusStarting
	state.runID = uuid.New().String()
	state.lastRun = time.Now()
	state.lastError = ""
	state.cancel = cancel

	namespace := state.job.Namespace
	runID := state.runID
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		report := s.reporter(namespace)
		report("info", fmt.Sprintf("run %s started", runID))

		s.mu.Lock()
		state.status = StatusRunning
		s.mu.Unlock()

		err := state.job.Run(ctx, report)

		s.mu.Lock()
		defer s.mu.Unlock()
		state.cancel = nil
		state.nextRun = time.Now().Add(state.job.Interval)
		switch {
		case err == nil:
			state.status = StatusCompleted
			report("info", fmt.Sprintf("run %s completed", runID))
		case tdherr.Is(err, tdherr.KindRateLimited):
			state.status = StatusThrottled
			state.lastError = err.Error()
			report("warn", fmt.Sprintf("run %s throttled: %v", runID, err))
		case ctx.Err() != nil:
			state.status = StatusDisabled
			state.lastError = ctx.Err().Error()
			report("warn", fmt.Sprintf("run %s stopped", runID))
		default:
			state.status = StatusError
			state.lastError = err.Error()
			report("error", fmt.Sprintf("run %s failed: %v", runID, err))
		}
		metrics.JobRuns.WithLabelValues(namespace, string(state.status)).Inc()
	}()
}

// reporter builds the job's progress sink: structured log plus persisted run
// log. Persistence failures are logged and swallowed so they never fail a run.
func (s *Scheduler) reporter(namespace string) Reporter {
	return func(level, message string) {
		logger := s.logger.With(zap.String("namespace", namespace))
		switch level {
		case "error":
			logger.Error(message)
		case "warn":
			logger.Warn(message)
		default:
			logger.Info(message)
		}
		err := s.store.AppendJobLog(context.Background(), model.JobLogLine{
			Namespace: namespace,
			Level:     level,
			Message:   message,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			logger.Warn("Failed to persist job log line", zap.Error(err))
		}
	}
}

// StartJob schedules an immediate run and clears a manual stop.
func (s *Scheduler) StartJob(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[namespace]
	if !ok {
		return tdherr.Validation(fmt.Sprintf("unknown job namespace %q", namespace))
	}
	state.stopped = false
	if !running(state.status) {
		if state.status == StatusDisabled {
			state.status = StatusIdle
		}
		state.nextRun = time.Now()
	}
	return nil
}

// StopJob holds the job until StartJob or ResetJob. An in-flight run is left
// to finish; only future triggers are suppressed.
func (s *Scheduler) StopJob(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[namespace]
	if !ok {
		return tdherr.Validation(fmt.Sprintf("unknown job namespace %q", namespace))
	}
	state.stopped = true
	if !running(state.status) {
		state.status = StatusDisabled
	}
	return nil
}

// ResetJob clears the job's error state and makes it due immediately.
func (s *Scheduler) ResetJob(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[namespace]
	if !ok {
		return tdherr.Validation(fmt.Sprintf("unknown job namespace %q", namespace))
	}
	if running(state.status) {
		return tdherr.Validation(fmt.Sprintf("job %q is running", namespace))
	}
	state.stopped = false
	state.status = StatusIdle
	state.lastError = ""
	state.nextRun = time.Now()
	return nil
}

// StatusOf returns one namespace's status.
func (s *Scheduler) StatusOf(namespace string) (JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[namespace]
	if !ok {
		return JobStatus{}, false
	}
	return snapshotStatus(state), true
}

// Statuses returns the status of every registered namespace.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, state := range s.jobs {
		out = append(out, snapshotStatus(state))
	}
	return out
}

func snapshotStatus(state *jobState) JobStatus {
	return JobStatus{
		Namespace: state.job.Namespace,
		Status:    state.status,
		RunID:     state.runID,
		LastRun:   state.lastRun,
		NextRun:   state.nextRun,
		LastError: state.lastError,
	}
}
