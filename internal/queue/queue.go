package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/markbunyevacz/HR-AI-website/internal/model"
	"gorm.io/gorm"
)

// JobStore is the slice of the durable record store the scheduler needs.
// The worker body performs its own processing/completed writes.
type JobStore interface {
	CreatePending(ctx context.Context, jobID, userID, fileName string, fileSize int64, kind string) (*model.OCRResult, error)
	MarkFailed(ctx context.Context, jobID, message string) error
	FindByJobID(ctx context.Context, jobID string) (*model.OCRResult, error)
}

// ProcessorFunc is the per-job worker body. Returning nil means the attempt
// completed and the durable record was written; returning an error schedules
// a retry or, on the last attempt, the durable failed state.
type ProcessorFunc func(ctx context.Context, job *Job) error

// Config bounds the scheduler. Zero values fall back to the queue defaults
// (2 workers, 3 attempts, 2s backoff base, 50/20 retention, 30s stall).
type Config struct {
	Concurrency   int
	MaxAttempts   int
	BackoffBase   time.Duration
	KeepCompleted int
	KeepFailed    int
	StallTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.KeepCompleted <= 0 {
		c.KeepCompleted = 50
	}
	if c.KeepFailed <= 0 {
		c.KeepFailed = 20
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = 30 * time.Second
	}
}

// Queue schedules document-processing jobs over a bounded worker pool with
// exponential-backoff retries. It is explicitly constructed with its
// dependencies so tests can run isolated instances.
type Queue struct {
	cfg     Config
	store   JobStore
	process ProcessorFunc

	mu        sync.Mutex
	cond      *sync.Cond
	jobs      map[string]*Job
	pending   []*Job
	completed []string // retention ring, oldest first
	failed    []string

	listeners []Listener

	started bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(cfg Config, store JobStore, process ProcessorFunc) *Queue {
	cfg.applyDefaults()
	q := &Queue{
		cfg:     cfg,
		store:   store,
		process: process,
		jobs:    make(map[string]*Job),
		stopCh:  make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker pool and the stall monitor.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.stallMonitor()
	log.Printf("[Job Queue] started with %d workers", q.cfg.Concurrency)
}

// Stop rejects further submissions and waits for in-flight attempts to
// finish. Pending and delayed jobs stay in their durable pending state.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	for _, j := range q.jobs {
		if j.retryTimer != nil {
			j.retryTimer.Stop()
		}
	}
	close(q.stopCh)
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
	log.Println("[Job Queue] stopped")
}

// Submit validates the input, creates the durable pending record, then
// enqueues the job. Persistence is synchronous with submission; execution is
// asynchronous.
func (q *Queue) Submit(ctx context.Context, input JobInput) (string, error) {
	if input.Kind != model.FileTypePDF && input.Kind != model.FileTypeImage {
		return "", ErrUnsupportedKind
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return "", ErrQueueStopped
	}
	q.mu.Unlock()

	jobID := uuid.NewString()
	if _, err := q.store.CreatePending(ctx, jobID, input.UserID, input.FileName, input.FileSize, input.Kind); err != nil {
		return "", err
	}

	j := &Job{
		ID:           jobID,
		Input:        input,
		q:            q,
		phase:        phaseWaiting,
		lastProgress: time.Now(),
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		// Close out the record just created so it is not orphaned as
		// pending behind an error the caller already received.
		if err := q.store.MarkFailed(ctx, jobID, "queue is stopped"); err != nil {
			log.Printf("[Job Queue] job %s shutdown write failed: %v", jobID, err)
		}
		return "", ErrQueueStopped
	}
	q.jobs[jobID] = j
	q.pending = append(q.pending, j)
	q.cond.Signal()
	q.mu.Unlock()

	log.Printf("[Job Queue] job %s queued for user %s (%s)", jobID, input.UserID, input.FileName)
	return jobID, nil
}

// Status reads the durable record as the source of truth, overlaying live
// phase and progress for non-terminal jobs.
func (q *Queue) Status(ctx context.Context, jobID string) (*Snapshot, error) {
	rec, err := q.store.FindByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	snap := &Snapshot{JobID: jobID, Status: rec.Status, Record: rec}
	if rec.IsTerminal() {
		snap.Progress = 100
		if rec.Status == model.StatusFailed {
			snap.Progress = 0
		}
		return snap, nil
	}

	q.mu.Lock()
	if j, ok := q.jobs[jobID]; ok {
		snap.Progress = j.progress
		snap.Attempts = j.attempts
	}
	q.mu.Unlock()
	return snap, nil
}

// ListForOwner returns snapshots for the owner's tracked jobs. This is an
// O(tracked-jobs) scan; the bounded retention window keeps it cheap.
func (q *Queue) ListForOwner(ctx context.Context, ownerID string) ([]*Snapshot, error) {
	q.mu.Lock()
	ids := make([]string, 0)
	for id, j := range q.jobs {
		if j.Input.UserID == ownerID {
			ids = append(ids, id)
		}
	}
	q.mu.Unlock()

	snaps := make([]*Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := q.Status(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Cancel pre-empts a job that has not started running. Running and terminal
// jobs are left alone and Cancel reports false.
func (q *Queue) Cancel(ctx context.Context, jobID string) bool {
	q.mu.Lock()
	j, ok := q.jobs[jobID]
	if !ok || (j.phase != phaseWaiting && j.phase != phaseDelayed) {
		q.mu.Unlock()
		return false
	}
	j.cancelled = true
	j.phase = phaseFailed
	if j.retryTimer != nil {
		j.retryTimer.Stop()
		j.retryTimer = nil
	}
	q.removePending(j)
	q.failed = append(q.failed, jobID)
	q.pruneLocked()
	attempt := j.attempts
	userID := j.Input.UserID
	q.mu.Unlock()

	if err := q.store.MarkFailed(ctx, jobID, "cancelled by user"); err != nil {
		log.Printf("[Job Queue] job %s cancel write failed: %v", jobID, err)
	}
	log.Printf("[Job Queue] job %s cancelled", jobID)
	q.emit(Event{Type: EventFailed, JobID: jobID, UserID: userID, Attempt: attempt, Error: "cancelled by user"})
	return true
}

// GetStats recomputes queue counters on demand.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Stats
	for _, j := range q.jobs {
		switch j.phase {
		case phaseWaiting:
			s.Waiting++
		case phaseActive:
			s.Active++
		case phaseDelayed:
			s.Delayed++
		case phaseCompleted:
			s.Completed++
		case phaseFailed:
			s.Failed++
		}
	}
	s.Total = s.Waiting + s.Active + s.Delayed + s.Completed + s.Failed
	return s
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		j := q.nextJob()
		if j == nil {
			return
		}
		q.runAttempt(j)
	}
}

// nextJob blocks until a pending job is available or the queue stops. A
// stopped queue never hands out another job; the backlog stays durably
// pending.
func (q *Queue) nextJob() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.stopped {
			return nil
		}
		for len(q.pending) > 0 {
			j := q.pending[0]
			q.pending = q.pending[1:]
			if j.cancelled {
				continue
			}
			j.attempts++
			j.phase = phaseActive
			j.progress = 0
			j.lastProgress = time.Now()
			j.stalledFlagged = false
			return j
		}
		q.cond.Wait()
	}
}

// runAttempt executes one attempt of the worker body and reconciles the
// outcome: success, scheduled retry, or durable failure on exhaustion.
func (q *Queue) runAttempt(j *Job) {
	attempt := j.Attempt()
	q.emit(Event{Type: EventStarted, JobID: j.ID, UserID: j.Input.UserID, Attempt: attempt})
	log.Printf("[Job Queue] processing job %s (attempt %d/%d)", j.ID, attempt, q.cfg.MaxAttempts)

	err := q.process(context.Background(), j)

	q.mu.Lock()
	if err == nil {
		j.phase = phaseCompleted
		j.progress = 100
		q.completed = append(q.completed, j.ID)
		q.pruneLocked()
		q.mu.Unlock()
		log.Printf("[Job Queue] job %s completed", j.ID)
		q.emit(Event{Type: EventCompleted, JobID: j.ID, UserID: j.Input.UserID, Attempt: attempt})
		return
	}

	if attempt < q.cfg.MaxAttempts {
		if q.stopped {
			// Stop cancels retries the same way it stops scheduled retry
			// timers: the durable record stays non-terminal for operators.
			j.phase = phaseDelayed
			q.mu.Unlock()
			log.Printf("[Job Queue] job %s attempt %d failed during shutdown, not retrying: %v", j.ID, attempt, err)
			return
		}
		delay := q.backoff(attempt)
		j.phase = phaseDelayed
		j.retryTimer = time.AfterFunc(delay, func() { q.requeue(j) })
		q.mu.Unlock()
		log.Printf("[Job Queue] job %s attempt %d failed, retrying in %v: %v", j.ID, attempt, delay, err)
		return
	}

	j.phase = phaseFailed
	q.failed = append(q.failed, j.ID)
	q.pruneLocked()
	q.mu.Unlock()

	// Only the exhausted attempt becomes visible as a durable failure, and
	// only the last error message is retained.
	if werr := q.store.MarkFailed(context.Background(), j.ID, err.Error()); werr != nil {
		log.Printf("[Job Queue] job %s failure write failed: %v", j.ID, werr)
	}
	log.Printf("[Job Queue] job %s failed after %d attempts: %v", j.ID, attempt, err)
	q.emit(Event{Type: EventFailed, JobID: j.ID, UserID: j.Input.UserID, Attempt: attempt, Error: err.Error()})
}

// backoff doubles the base delay for each completed attempt.
func (q *Queue) backoff(attempt int) time.Duration {
	d := q.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func (q *Queue) requeue(j *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || j.cancelled || j.phase != phaseDelayed {
		return
	}
	j.phase = phaseWaiting
	j.retryTimer = nil
	q.pending = append(q.pending, j)
	q.cond.Signal()
}

func (q *Queue) removePending(j *Job) {
	for i, p := range q.pending {
		if p == j {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// pruneLocked drops the oldest tracking handles beyond the retention window.
// The durable records are untouched; Status falls back to the store.
func (q *Queue) pruneLocked() {
	for len(q.completed) > q.cfg.KeepCompleted {
		delete(q.jobs, q.completed[0])
		q.completed = q.completed[1:]
	}
	for len(q.failed) > q.cfg.KeepFailed {
		delete(q.jobs, q.failed[0])
		q.failed = q.failed[1:]
	}
}

// stallMonitor flags active jobs that have gone quiet past the stall
// timeout. Observation only: the job keeps its worker until it finishes.
func (q *Queue) stallMonitor() {
	defer q.wg.Done()
	interval := q.cfg.StallTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.checkStalls()
		}
	}
}

func (q *Queue) checkStalls() {
	var stalled []Event
	q.mu.Lock()
	now := time.Now()
	for _, j := range q.jobs {
		if j.phase == phaseActive && !j.stalledFlagged && now.Sub(j.lastProgress) > q.cfg.StallTimeout {
			j.stalledFlagged = true
			stalled = append(stalled, Event{Type: EventStalled, JobID: j.ID, UserID: j.Input.UserID, Attempt: j.attempts})
		}
	}
	q.mu.Unlock()
	for _, ev := range stalled {
		log.Printf("[Job Queue] job %s stalled", ev.JobID)
		q.emit(ev)
	}
}
