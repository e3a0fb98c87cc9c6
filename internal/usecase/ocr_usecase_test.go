package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/markbunyevacz/HR-AI-website/internal/model"
	"github.com/markbunyevacz/HR-AI-website/internal/queue"
	"github.com/markbunyevacz/HR-AI-website/internal/repository"
	"github.com/markbunyevacz/HR-AI-website/internal/response"
	"github.com/markbunyevacz/HR-AI-website/internal/service"
)

type fakeStore struct {
	mu              sync.Mutex
	byJobID         map[string]*model.OCRResult
	processingCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byJobID: make(map[string]*model.OCRResult)}
}

func (s *fakeStore) CreatePending(_ context.Context, jobID, userID, fileName string, fileSize int64, kind string) (*model.OCRResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &model.OCRResult{
		ID:        uuid.New(),
		JobID:     jobID,
		UserID:    userID,
		FileName:  fileName,
		FileSize:  fileSize,
		FileType:  kind,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	s.byJobID[jobID] = rec
	return rec, nil
}

func (s *fakeStore) MarkProcessing(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processingCalls++
	rec, ok := s.byJobID[jobID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if rec.IsTerminal() {
		return nil
	}
	rec.Status = model.StatusProcessing
	if rec.ProcessingStartedAt == nil {
		now := time.Now()
		rec.ProcessingStartedAt = &now
	}
	return nil
}

func (s *fakeStore) MarkCompleted(_ context.Context, jobID, rawText string, confidence int, extractedJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byJobID[jobID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if rec.IsTerminal() {
		return nil
	}
	now := time.Now()
	rec.Status = model.StatusCompleted
	rec.RawText = rawText
	rec.Confidence = confidence
	rec.ExtractedData = extractedJSON
	rec.ProcessingCompletedAt = &now
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, jobID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byJobID[jobID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if rec.IsTerminal() {
		return nil
	}
	now := time.Now()
	rec.Status = model.StatusFailed
	rec.ErrorMessage = message
	rec.ProcessingCompletedAt = &now
	return nil
}

func (s *fakeStore) FindByJobID(_ context.Context, jobID string) (*model.OCRResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byJobID[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) FindByIDForUser(_ context.Context, id, userID string) (*model.OCRResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byJobID {
		if rec.ID.String() == id && rec.UserID == userID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) ListByUser(_ context.Context, userID, status string, page, limit int) ([]model.OCRResult, *response.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.OCRResult
	for _, rec := range s.byJobID {
		if rec.UserID != userID {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, *rec)
	}
	return out, &response.Pagination{Page: page, PageSize: limit, TotalItems: int64(len(out))}, nil
}

func (s *fakeStore) UpdateExtractedData(_ context.Context, id, userID, extractedJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byJobID {
		if rec.ID.String() == id && rec.UserID == userID {
			rec.ExtractedData = extractedJSON
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *fakeStore) Delete(_ context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jobID, rec := range s.byJobID {
		if rec.ID.String() == id && rec.UserID == userID {
			delete(s.byJobID, jobID)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Statistics(_ context.Context, userID string) (*repository.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &repository.Statistics{}
	for _, rec := range s.byJobID {
		if userID != "" && rec.UserID != userID {
			continue
		}
		stats.TotalResults++
		switch rec.Status {
		case model.StatusCompleted:
			stats.CompletedResults++
		case model.StatusFailed:
			stats.FailedResults++
		}
	}
	return stats, nil
}

func (s *fakeStore) record(jobID string) *model.OCRResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.byJobID[jobID]; ok {
		cp := *rec
		return &cp
	}
	return nil
}

// fakeRecognizer scripts per-attempt recognition outcomes.
type fakeRecognizer struct {
	mu       sync.Mutex
	attempts int
	image    func(attempt int, path string) (*service.RecognitionResult, error)
	pdf      func(attempt int, path string) (*service.PDFRecognitionResult, error)
}

func (r *fakeRecognizer) RecognizeImage(_ context.Context, path string) (*service.RecognitionResult, error) {
	r.mu.Lock()
	r.attempts++
	n := r.attempts
	r.mu.Unlock()
	return r.image(n, path)
}

func (r *fakeRecognizer) RecognizePDF(_ context.Context, path string, _ ...int) (*service.PDFRecognitionResult, error) {
	r.mu.Lock()
	r.attempts++
	n := r.attempts
	r.mu.Unlock()
	return r.pdf(n, path)
}

func testQueueConfig() queue.Config {
	return queue.Config{
		Concurrency:  2,
		MaxAttempts:  3,
		BackoffBase:  5 * time.Millisecond,
		StallTimeout: time.Hour,
	}
}

func startUsecase(t *testing.T, store ResultStore, rec service.Recognizer) (*OCRUsecase, <-chan queue.Event) {
	t.Helper()
	uc := NewOCRUsecase(store, rec, testQueueConfig())
	events := make(chan queue.Event, 64)
	uc.Queue().OnEvent(func(ev queue.Event) { events <- ev })
	uc.Start()
	t.Cleanup(uc.Stop)
	return uc, events
}

func waitForEvent(t *testing.T, ch <-chan queue.Event, typ queue.EventType) queue.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}

func writeUpload(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("upload bytes"), 0o644))
	return path
}

func TestPipelineCompletesPDFJob(t *testing.T) {
	store := newFakeStore()
	rec := &fakeRecognizer{
		pdf: func(int, string) (*service.PDFRecognitionResult, error) {
			return &service.PDFRecognitionResult{
				Text:       "John Smith can be reached at john@example.com." + service.PageBreak + "Skills: docker and python.",
				Confidence: 87,
			}, nil
		},
	}
	uc, events := startUsecase(t, store, rec)

	path := writeUpload(t, "resume.pdf")
	jobID, err := uc.EnqueueDocument(context.Background(), path, "resume.pdf", 12, "u1")
	require.NoError(t, err)

	ev := waitForEvent(t, events, queue.EventCompleted)
	assert.Equal(t, jobID, ev.JobID)
	assert.Equal(t, 1, ev.Attempt)

	record := store.record(jobID)
	require.NotNil(t, record)
	assert.Equal(t, model.StatusCompleted, record.Status)
	assert.Equal(t, 87, record.Confidence)
	assert.Contains(t, record.RawText, "---PAGE BREAK---")
	require.NotNil(t, record.ProcessingStartedAt)
	require.NotNil(t, record.ProcessingCompletedAt)
	assert.False(t, record.ProcessingCompletedAt.Before(*record.ProcessingStartedAt))

	data, err := model.ExtractedDataFromJSON(record.ExtractedData)
	require.NoError(t, err)
	assert.Equal(t, []string{"john@example.com"}, data.Emails)
	assert.Contains(t, data.Names, "John Smith")
	assert.Contains(t, data.Skills, "Docker")
	assert.Contains(t, data.Skills, "Python")

	// The upload is disposed after the successful attempt.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnqueueRejectsUnsupportedExtension(t *testing.T) {
	store := newFakeStore()
	uc := NewOCRUsecase(store, &fakeRecognizer{}, testQueueConfig())

	_, err := uc.EnqueueDocument(context.Background(), "/tmp/x", "resume.docx", 12, "u1")
	assert.ErrorIs(t, err, queue.ErrUnsupportedKind)
	assert.Empty(t, store.byJobID)
}

func TestPipelineFailsAfterRetriesOnEmptyText(t *testing.T) {
	store := newFakeStore()
	rec := &fakeRecognizer{
		image: func(int, string) (*service.RecognitionResult, error) {
			return &service.RecognitionResult{Text: "   "}, nil
		},
	}
	uc, events := startUsecase(t, store, rec)

	path := writeUpload(t, "scan.png")
	jobID, err := uc.EnqueueDocument(context.Background(), path, "scan.png", 12, "u1")
	require.NoError(t, err)

	ev := waitForEvent(t, events, queue.EventFailed)
	assert.Equal(t, 3, ev.Attempt)

	record := store.record(jobID)
	require.NotNil(t, record)
	assert.Equal(t, model.StatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "no text recognized")
	require.NotNil(t, record.ProcessingStartedAt)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelineKeepsUploadWhileRetriesRemain(t *testing.T) {
	store := newFakeStore()
	rec := &fakeRecognizer{
		image: func(attempt int, path string) (*service.RecognitionResult, error) {
			// Every attempt, including retries, must still find the upload.
			if _, err := os.Stat(path); err != nil {
				return nil, err
			}
			if attempt < 3 {
				return &service.RecognitionResult{Text: ""}, nil
			}
			return &service.RecognitionResult{Text: "A perfectly readable resume text at last."}, nil
		},
	}
	uc, events := startUsecase(t, store, rec)

	path := writeUpload(t, "scan.jpg")
	jobID, err := uc.EnqueueDocument(context.Background(), path, "scan.jpg", 12, "u1")
	require.NoError(t, err)

	ev := waitForEvent(t, events, queue.EventCompleted)
	assert.Equal(t, 3, ev.Attempt)

	record := store.record(jobID)
	require.NotNil(t, record)
	assert.Equal(t, model.StatusCompleted, record.Status)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessingStartedAtSetOnce(t *testing.T) {
	store := newFakeStore()
	var firstStart *time.Time
	rec := &fakeRecognizer{
		image: func(attempt int, _ string) (*service.RecognitionResult, error) {
			if attempt == 2 {
				firstStart = store.record(jobIDOf(store)).ProcessingStartedAt
			}
			return &service.RecognitionResult{Text: ""}, nil
		},
	}
	_, events := startUsecaseWithSubmit(t, store, rec)

	waitForEvent(t, events, queue.EventFailed)

	record := store.record(jobIDOf(store))
	require.NotNil(t, record)
	require.NotNil(t, firstStart)
	require.NotNil(t, record.ProcessingStartedAt)
	assert.Equal(t, *firstStart, *record.ProcessingStartedAt)
	assert.Equal(t, 3, store.processingCalls)
}

func jobIDOf(store *fakeStore) string {
	store.mu.Lock()
	defer store.mu.Unlock()
	for jobID := range store.byJobID {
		return jobID
	}
	return ""
}

func startUsecaseWithSubmit(t *testing.T, store *fakeStore, rec service.Recognizer) (*OCRUsecase, <-chan queue.Event) {
	t.Helper()
	uc, events := startUsecase(t, store, rec)
	path := writeUpload(t, "scan.png")
	_, err := uc.EnqueueDocument(context.Background(), path, "scan.png", 12, "u1")
	require.NoError(t, err)
	return uc, events
}

func TestApplyManualCorrection(t *testing.T) {
	store := newFakeStore()
	uc := NewOCRUsecase(store, &fakeRecognizer{}, testQueueConfig())

	seed := service.ParseResumeText("Reach jane@example.com or 555-123-4567. Jane knows docker well enough for production work.")
	payload, err := seed.ToJSON()
	require.NoError(t, err)
	rec, err := store.CreatePending(context.Background(), "job-1", "u1", "resume.pdf", 12, model.FileTypePDF)
	require.NoError(t, err)
	require.NoError(t, store.MarkCompleted(context.Background(), "job-1", "raw", 90, payload))

	updated, err := uc.ApplyManualCorrection(context.Background(), rec.ID.String(), "u1",
		`{"emails":["corrected@example.com"],"summary":"Hand-written summary"}`)
	require.NoError(t, err)

	data, err := model.ExtractedDataFromJSON(updated.ExtractedData)
	require.NoError(t, err)
	assert.Equal(t, []string{"corrected@example.com"}, data.Emails)
	assert.Equal(t, "Hand-written summary", data.Summary)
	// Untouched categories keep their extracted values.
	assert.Equal(t, []string{"555-123-4567"}, data.Phones)
	assert.Contains(t, data.Skills, "Docker")

	assert.True(t, data.ManuallyCorrected)
	assert.Equal(t, "u1", data.CorrectedBy)
	require.NotNil(t, data.CorrectedAt)

	// The durable record carries the merged payload.
	stored := store.record("job-1")
	assert.Equal(t, updated.ExtractedData, stored.ExtractedData)
}

func TestApplyManualCorrectionUnknownResult(t *testing.T) {
	uc := NewOCRUsecase(newFakeStore(), &fakeRecognizer{}, testQueueConfig())

	_, err := uc.ApplyManualCorrection(context.Background(), uuid.NewString(), "u1", `{"emails":[]}`)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDeleteResult(t *testing.T) {
	store := newFakeStore()
	uc := NewOCRUsecase(store, &fakeRecognizer{}, testQueueConfig())

	rec, err := store.CreatePending(context.Background(), "job-1", "u1", "resume.pdf", 12, model.FileTypePDF)
	require.NoError(t, err)

	ok, err := uc.DeleteResult(context.Background(), rec.ID.String(), "someone-else")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = uc.DeleteResult(context.Background(), rec.ID.String(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExportCSV(t *testing.T) {
	store := newFakeStore()
	uc := NewOCRUsecase(store, &fakeRecognizer{}, testQueueConfig())

	seed := service.ParseResumeText("Reach jane@example.com and bob@example.org. Jane uses docker daily in production systems.")
	payload, err := seed.ToJSON()
	require.NoError(t, err)
	_, err = store.CreatePending(context.Background(), "job-1", "u1", "resume.pdf", 12, model.FileTypePDF)
	require.NoError(t, err)
	require.NoError(t, store.MarkCompleted(context.Background(), "job-1", "raw", 91, payload))

	out, err := uc.ExportCSV(context.Background(), "u1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "File Name")
	assert.Contains(t, lines[1], "resume.pdf")
	assert.Contains(t, lines[1], "jane@example.com; bob@example.org")
	assert.Contains(t, lines[1], "91")
}
