package queue

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/markbunyevacz/HR-AI-website/internal/model"
)

var (
	// ErrUnsupportedKind is returned at submission for file kinds the
	// pipeline cannot process. No durable record is created.
	ErrUnsupportedKind = errors.New("unsupported file kind")
	// ErrNotFound is returned when neither the queue nor the record store
	// knows the job id.
	ErrNotFound = errors.New("job not found")
	// ErrQueueStopped is returned for submissions after Stop.
	ErrQueueStopped = errors.New("queue is stopped")
)

// Transient phases of a tracked job. Terminal durable statuses live on the
// record; the queue only distinguishes scheduling states.
const (
	phaseWaiting   = "waiting"
	phaseActive    = "active"
	phaseDelayed   = "delayed"
	phaseCompleted = "completed"
	phaseFailed    = "failed"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// KindForFile maps a file name to its declared kind, or ErrUnsupportedKind.
func KindForFile(fileName string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); {
	case ext == ".pdf":
		return model.FileTypePDF, nil
	case imageExts[ext]:
		return model.FileTypeImage, nil
	default:
		return "", ErrUnsupportedKind
	}
}

// JobInput describes one submitted document. FilePath references transient
// storage and is not durable state.
type JobInput struct {
	UserID   string
	FileName string
	FileSize int64
	Kind     string // model.FileTypePDF | model.FileTypeImage
	FilePath string
}

// Job is the queue's transient in-flight representation. The durable record
// is the source of truth for anything observable after a restart.
type Job struct {
	ID    string
	Input JobInput

	q              *Queue
	attempts       int
	phase          string
	progress       int
	cancelled      bool
	lastProgress   time.Time
	stalledFlagged bool
	retryTimer     *time.Timer
}

// Attempt returns the current attempt number, starting at 1.
func (j *Job) Attempt() int {
	j.q.mu.Lock()
	defer j.q.mu.Unlock()
	return j.attempts
}

// IsLastAttempt reports whether no retries remain after the current attempt.
func (j *Job) IsLastAttempt() bool {
	j.q.mu.Lock()
	defer j.q.mu.Unlock()
	return j.attempts >= j.q.cfg.MaxAttempts
}

// ReportProgress records a progress signal (0-100). It feeds the status
// endpoint and resets the stall detector.
func (j *Job) ReportProgress(pct int) {
	j.q.mu.Lock()
	defer j.q.mu.Unlock()
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	j.progress = pct
	j.lastProgress = time.Now()
	j.stalledFlagged = false
}

// Snapshot is a caller-facing view of one job: the durable record plus the
// live progress of a non-terminal job.
type Snapshot struct {
	JobID    string
	Status   string
	Progress int
	Attempts int
	Record   *model.OCRResult
}

// Stats is the on-demand aggregate over tracked jobs.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
	Total     int `json:"total"`
}
