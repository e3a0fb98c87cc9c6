package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/markbunyevacz/HR-AI-website/internal/model"
	"github.com/markbunyevacz/HR-AI-website/internal/queue"
	"github.com/markbunyevacz/HR-AI-website/internal/repository"
	"github.com/markbunyevacz/HR-AI-website/internal/response"
	"github.com/markbunyevacz/HR-AI-website/internal/service"
	"github.com/tidwall/gjson"
)

// Failure taxonomy surfaced to the durable record when retries are
// exhausted. Intermediate attempt failures stay internal.
var (
	ErrRecognitionFailed  = errors.New("recognition failed")
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrStorageWriteFailed = errors.New("storage write failed")
)

// ResultStore is the durable record contract the pipeline consumes. The
// GORM repository implements it; tests use an in-memory fake.
type ResultStore interface {
	queue.JobStore
	MarkProcessing(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID, rawText string, confidence int, extractedJSON string) error
	FindByIDForUser(ctx context.Context, id, userID string) (*model.OCRResult, error)
	ListByUser(ctx context.Context, userID, status string, page, limit int) ([]model.OCRResult, *response.Pagination, error)
	UpdateExtractedData(ctx context.Context, id, userID, extractedJSON string) error
	Delete(ctx context.Context, id, userID string) (bool, error)
	Statistics(ctx context.Context, userID string) (*repository.Statistics, error)
}

// OCRUsecase wires the record store, the recognition adapter, the field
// extractor, and the scheduler into the document-ingestion pipeline.
type OCRUsecase struct {
	store      ResultStore
	recognizer service.Recognizer
	q          *queue.Queue
}

func NewOCRUsecase(store ResultStore, recognizer service.Recognizer, qcfg queue.Config) *OCRUsecase {
	uc := &OCRUsecase{store: store, recognizer: recognizer}
	uc.q = queue.New(qcfg, store, uc.ProcessJob)
	return uc
}

// Queue exposes the scheduler for event listener registration.
func (uc *OCRUsecase) Queue() *queue.Queue { return uc.q }

func (uc *OCRUsecase) Start() { uc.q.Start() }
func (uc *OCRUsecase) Stop()  { uc.q.Stop() }

// EnqueueDocument validates the file kind and submits the job. The pending
// record exists before the job id is returned; processing is asynchronous.
func (uc *OCRUsecase) EnqueueDocument(ctx context.Context, filePath, fileName string, fileSize int64, ownerID string) (string, error) {
	kind, err := queue.KindForFile(fileName)
	if err != nil {
		return "", err
	}
	return uc.q.Submit(ctx, queue.JobInput{
		UserID:   ownerID,
		FileName: fileName,
		FileSize: fileSize,
		Kind:     kind,
		FilePath: filePath,
	})
}

func (uc *OCRUsecase) GetJobStatus(ctx context.Context, jobID string) (*queue.Snapshot, error) {
	return uc.q.Status(ctx, jobID)
}

func (uc *OCRUsecase) ListJobsForOwner(ctx context.Context, ownerID string) ([]*queue.Snapshot, error) {
	return uc.q.ListForOwner(ctx, ownerID)
}

func (uc *OCRUsecase) CancelJob(ctx context.Context, jobID string) bool {
	return uc.q.Cancel(ctx, jobID)
}

func (uc *OCRUsecase) GetQueueStats() queue.Stats {
	return uc.q.GetStats()
}

// ProcessJob is the worker body run by the queue for each attempt:
// mark processing, recognize, extract, persist, dispose the input file.
func (uc *OCRUsecase) ProcessJob(ctx context.Context, job *queue.Job) error {
	err := uc.runPipeline(ctx, job)
	// The input file is kept while retries remain so the next attempt has
	// something to read; the final disposition always disposes it.
	if err == nil || job.IsLastAttempt() {
		uc.disposeInput(job.Input.FilePath)
	}
	return err
}

func (uc *OCRUsecase) runPipeline(ctx context.Context, job *queue.Job) error {
	input := job.Input

	// Idempotent across retried attempts: started-at is set exactly once.
	if err := uc.store.MarkProcessing(ctx, job.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	job.ReportProgress(10)

	var rawText string
	var confidence int
	switch input.Kind {
	case model.FileTypePDF:
		res, err := uc.recognizer.RecognizePDF(ctx, input.FilePath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
		}
		rawText, confidence = res.Text, res.Confidence
	case model.FileTypeImage:
		res, err := uc.recognizer.RecognizeImage(ctx, input.FilePath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRecognitionFailed, err)
		}
		rawText, confidence = res.Text, res.Confidence
	default:
		return queue.ErrUnsupportedKind
	}
	if strings.TrimSpace(rawText) == "" {
		return fmt.Errorf("%w: no text recognized", ErrRecognitionFailed)
	}
	job.ReportProgress(60)

	extracted := service.ParseResumeText(rawText)
	payload, err := extracted.ToJSON()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	job.ReportProgress(80)

	if err := uc.store.MarkCompleted(ctx, job.ID, rawText, confidence, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}
	job.ReportProgress(100)
	return nil
}

// disposeInput deletes the transient upload. Cleanup failures are logged and
// never become the job's failure reason.
func (uc *OCRUsecase) disposeInput(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[OCR Pipeline] failed to remove input file %s: %v", path, err)
	}
}

// GetResultDetail is the ownership-scoped read of one durable record.
func (uc *OCRUsecase) GetResultDetail(ctx context.Context, resultID, ownerID string) (*model.OCRResult, error) {
	return uc.store.FindByIDForUser(ctx, resultID, ownerID)
}

// ListResults pages through the owner's durable records.
func (uc *OCRUsecase) ListResults(ctx context.Context, ownerID, status string, page, limit int) ([]model.OCRResult, *response.Pagination, error) {
	return uc.store.ListByUser(ctx, ownerID, status, page, limit)
}

// ApplyManualCorrection merges caller-supplied category values into the
// stored extraction result and flags it as manually corrected. The pipeline
// is not re-run.
func (uc *OCRUsecase) ApplyManualCorrection(ctx context.Context, resultID, ownerID, correctedJSON string) (*model.OCRResult, error) {
	rec, err := uc.store.FindByIDForUser(ctx, resultID, ownerID)
	if err != nil {
		return nil, err
	}

	data, err := model.ExtractedDataFromJSON(rec.ExtractedData)
	if err != nil {
		data = model.NewExtractedData()
	}
	mergeCorrections(data, correctedJSON)
	now := time.Now()
	data.ManuallyCorrected = true
	data.CorrectedAt = &now
	data.CorrectedBy = ownerID

	payload, err := data.ToJSON()
	if err != nil {
		return nil, err
	}
	if err := uc.store.UpdateExtractedData(ctx, resultID, ownerID, payload); err != nil {
		return nil, err
	}

	rec.ExtractedData = payload
	rec.Status = model.StatusCompleted
	return rec, nil
}

// mergeCorrections overwrites only the categories present in the supplied
// JSON document; everything else keeps its extracted value.
func mergeCorrections(data *model.ExtractedData, correctedJSON string) {
	setList := func(field *[]string, key string) {
		v := gjson.Get(correctedJSON, key)
		if !v.IsArray() {
			return
		}
		out := []string{}
		for _, e := range v.Array() {
			out = append(out, e.String())
		}
		*field = out
	}
	setList(&data.Emails, "emails")
	setList(&data.Phones, "phones")
	setList(&data.Dates, "dates")
	setList(&data.Names, "names")
	setList(&data.Skills, "skills")
	setList(&data.Education, "education")
	setList(&data.Experience, "experience")
	setList(&data.Keywords, "keywords")
	if v := gjson.Get(correctedJSON, "summary"); v.Exists() {
		data.Summary = v.String()
	}
}

// DeleteResult removes the owner's record.
func (uc *OCRUsecase) DeleteResult(ctx context.Context, resultID, ownerID string) (bool, error) {
	return uc.store.Delete(ctx, resultID, ownerID)
}

// GetStatistics aggregates result counts for the owner (or everyone when
// ownerID is empty).
func (uc *OCRUsecase) GetStatistics(ctx context.Context, ownerID string) (*repository.Statistics, error) {
	return uc.store.Statistics(ctx, ownerID)
}

// ExportCSV renders the owner's results as CSV, mirroring the columns of
// the results table plus the extracted contact fields.
func (uc *OCRUsecase) ExportCSV(ctx context.Context, ownerID string) (string, error) {
	rows, _, err := uc.store.ListByUser(ctx, ownerID, "", 1, 1000)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{
		"ID", "File Name", "File Type", "Status", "Confidence",
		"Emails", "Phones", "Dates", "Names", "Skills Count",
		"Created At", "Processed At",
	})
	for _, rec := range rows {
		data, err := model.ExtractedDataFromJSON(rec.ExtractedData)
		if err != nil {
			data = model.NewExtractedData()
		}
		processedAt := ""
		if rec.ProcessingCompletedAt != nil {
			processedAt = rec.ProcessingCompletedAt.Format(time.RFC3339)
		}
		_ = w.Write([]string{
			rec.ID.String(),
			rec.FileName,
			rec.FileType,
			rec.Status,
			strconv.Itoa(rec.Confidence),
			strings.Join(data.Emails, "; "),
			strings.Join(data.Phones, "; "),
			strings.Join(data.Dates, "; "),
			strings.Join(data.Names, "; "),
			strconv.Itoa(len(data.Skills)),
			rec.CreatedAt.Format(time.RFC3339),
			processedAt,
		})
	}
	w.Flush()
	return b.String(), w.Error()
}
