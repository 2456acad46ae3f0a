// Package scheduler accepts download jobs on an unbounded intake queue and
// drains them into a bounded set of concurrently running executions, tracking
// each job's lifecycle from pending to a terminal state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/abujamalhack/Snapchat-pro/internal/domain"
)

const maxErrorLen = 200

// ErrNoExecutor is recorded on jobs when no execution unit was configured.
var ErrNoExecutor = errors.New("no executor configured")

// Executor runs one job and returns the location of its result. The
// scheduler is execution-agnostic; the pipeline is wired in by the caller.
// Executions must observe ctx and wind down when it is canceled.
type Executor func(ctx context.Context, job domain.Job) (resultPath string, err error)

// Recorder persists job state transitions. Persistence is best-effort; the
// in-memory scheduler state stays authoritative.
type Recorder interface {
	Record(ctx context.Context, job *domain.Job) error
}

// Config holds scheduler configuration.
type Config struct {
	MaxConcurrent int
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{MaxConcurrent: 5}
}

// Scheduler owns all jobs for the lifetime of the process. Callers only
// observe value snapshots.
type Scheduler struct {
	executor Executor
	recorder Recorder

	mu      sync.Mutex
	cond    *sync.Cond
	jobs    map[string]*domain.Job
	order   []string // creation order, for per-requester listings
	queue   []string // pending job ids, FIFO
	active  map[string]context.CancelFunc
	running bool

	slots chan struct{}

	baseCtx    context.Context
	baseCancel context.CancelFunc
	loopWg     sync.WaitGroup
	execWg     sync.WaitGroup
}

// New creates a Scheduler. The recorder may be nil.
func New(config *Config, executor Executor, recorder Recorder) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}

	s := &Scheduler{
		executor: executor,
		recorder: recorder,
		jobs:     make(map[string]*domain.Job),
		active:   make(map[string]context.CancelFunc),
		slots:    make(chan struct{}, config.MaxConcurrent),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the dispatch loop. It is a no-op if already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.baseCtx, s.baseCancel = context.WithCancel(ctx)
	s.mu.Unlock()

	slog.Info("Starting scheduler", "max_concurrent", cap(s.slots))

	s.loopWg.Add(1)
	go s.dispatchLoop()
}

// Running reports whether the dispatch loop is accepting work.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Submit creates a pending job and enqueues it for dispatch. It never blocks
// on backlog; the intake queue has no capacity bound.
func (s *Scheduler) Submit(requesterID int64, target string, kind domain.MediaKind) string {
	s.mu.Lock()

	id := s.newJobID(requesterID, target)
	job := domain.NewJob(id, requesterID, target, kind)
	s.jobs[id] = job
	s.order = append(s.order, id)
	s.queue = append(s.queue, id)
	s.cond.Signal()

	s.mu.Unlock()

	s.record(job)

	slog.Debug("Job submitted",
		"job_id", id,
		"requester_id", requesterID,
		"target", target,
	)
	return id
}

// Status returns a snapshot of the job, or false if the id is unknown.
func (s *Scheduler) Status(jobID string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// JobsForRequester returns snapshots of the requester's jobs in creation
// order.
func (s *Scheduler) JobsForRequester(requesterID int64) []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Job
	for _, id := range s.order {
		if job := s.jobs[id]; job.RequesterID == requesterID {
			out = append(out, *job)
		}
	}
	return out
}

// QueueDepth returns the number of jobs awaiting dispatch.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ActiveCount returns the number of executions currently running.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Stop halts dispatch, cancels every active execution and waits for all of
// them to reach a terminal state. Pending jobs stay queued and queryable.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cond.Broadcast()

	cancels := make([]context.CancelFunc, 0, len(s.active))
	for _, cancel := range s.active {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	slog.Info("Stopping scheduler", "active", len(cancels))

	for _, cancel := range cancels {
		cancel()
	}
	s.baseCancel()

	s.loopWg.Wait()
	s.execWg.Wait()

	slog.Info("Scheduler stopped")
}

// dispatchLoop drains the intake queue, never exceeding the configured
// number of concurrently active executions.
func (s *Scheduler) dispatchLoop() {
	defer s.loopWg.Done()

	for {
		// Hold a slot before claiming a job so jobs stay pending while the
		// pool is saturated.
		select {
		case s.slots <- struct{}{}:
		case <-s.baseCtx.Done():
			return
		}

		id, ok := s.nextPending()
		if !ok {
			<-s.slots
			return
		}

		s.launch(id)
	}
}

// nextPending blocks until a pending job is available or the scheduler is
// stopped.
func (s *Scheduler) nextPending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 && s.running {
		s.cond.Wait()
	}
	if !s.running {
		return "", false
	}

	id := s.queue[0]
	s.queue = s.queue[1:]
	return id, true
}

// launch transitions the job to processing and runs its execution in a new
// goroutine. The caller has already acquired a slot; it is released on every
// exit path of the execution.
func (s *Scheduler) launch(id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		<-s.slots
		return
	}

	job.MarkProcessing()
	jctx, cancel := context.WithCancel(s.baseCtx)
	s.active[id] = cancel
	snapshot := *job
	s.mu.Unlock()

	s.record(&snapshot)

	slog.Info("Job started",
		"job_id", id,
		"requester_id", snapshot.RequesterID,
	)

	s.execWg.Add(1)
	go func() {
		defer s.execWg.Done()
		defer func() { <-s.slots }()
		defer cancel()

		path, err := s.runExecutor(jctx, snapshot)
		s.finish(id, path, err)
	}()
}

// runExecutor invokes the executor, converting panics into job failures so a
// bad execution cannot take down the scheduler.
func (s *Scheduler) runExecutor(ctx context.Context, job domain.Job) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("execution panicked: %v", r)
		}
	}()

	if s.executor == nil {
		return "", ErrNoExecutor
	}
	return s.executor(ctx, job)
}

// finish applies the terminal transition and removes the job from the active
// set. The transition happens synchronously in the execution goroutine, so
// the active set and job state never disagree.
func (s *Scheduler) finish(id string, path string, err error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		if err != nil {
			job.MarkFailed(truncate(err.Error(), maxErrorLen))
		} else {
			job.MarkCompleted(path)
		}
	}
	delete(s.active, id)
	var snapshot domain.Job
	if ok {
		snapshot = *job
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	s.record(&snapshot)

	if err != nil {
		slog.Warn("Job failed",
			"job_id", id,
			"error", snapshot.Error,
		)
		return
	}
	slog.Info("Job completed",
		"job_id", id,
		"result", path,
	)
}

// newJobID derives an id from requester, submission time and a hash of the
// target, bumping a salt on the rare collision. Caller must hold s.mu.
func (s *Scheduler) newJobID(requesterID int64, target string) string {
	h := fnv.New32a()
	h.Write([]byte(target))
	salt := h.Sum32() % 10000

	for {
		id := fmt.Sprintf("%d_%d_%d", requesterID, time.Now().Unix(), salt)
		if _, exists := s.jobs[id]; !exists {
			return id
		}
		salt = (salt + 1) % 10000
	}
}

// record persists a transition when a recorder is configured. Persistence
// failures are logged and never propagate.
func (s *Scheduler) record(job *domain.Job) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.Record(ctx, job); err != nil {
		slog.Warn("Failed to record job transition",
			"job_id", job.ID,
			"error", err,
		)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
