package repository

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/markbunyevacz/HR-AI-website/internal/model"
	"github.com/markbunyevacz/HR-AI-website/internal/response"
	"gorm.io/gorm"
)

type OCRResultRepository struct {
	db *gorm.DB
}

func NewOCRResultRepository(db *gorm.DB) *OCRResultRepository {
	return &OCRResultRepository{db}
}

var terminalStatuses = []string{model.StatusCompleted, model.StatusFailed}

// CreatePending inserts the durable record before the job id is handed back
// to the caller.
func (r *OCRResultRepository) CreatePending(ctx context.Context, jobID, userID, fileName string, fileSize int64, kind string) (*model.OCRResult, error) {
	rec := &model.OCRResult{
		JobID:    jobID,
		UserID:   userID,
		FileName: fileName,
		FileSize: fileSize,
		FileType: kind,
		Status:   model.StatusPending,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkProcessing flips a non-terminal record to processing. Idempotent: the
// started-at timestamp is set only on the first transition, and terminal
// records are never touched.
func (r *OCRResultRepository) MarkProcessing(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Model(&model.OCRResult{}).
		Where("job_id = ? AND status NOT IN ?", jobID, terminalStatuses).
		Updates(map[string]any{
			"status":                model.StatusProcessing,
			"processing_started_at": gorm.Expr("COALESCE(processing_started_at, ?)", time.Now()),
		}).Error
}

// MarkCompleted writes the result payload and the completed status in one
// UPDATE so a reader never observes a half-written terminal record. A record
// already terminal keeps its first outcome.
func (r *OCRResultRepository) MarkCompleted(ctx context.Context, jobID, rawText string, confidence int, extractedJSON string) error {
	return r.db.WithContext(ctx).Model(&model.OCRResult{}).
		Where("job_id = ? AND status NOT IN ?", jobID, terminalStatuses).
		Updates(map[string]any{
			"status":                  model.StatusCompleted,
			"raw_text":                rawText,
			"confidence":              confidence,
			"extracted_data":          extractedJSON,
			"error_message":           "",
			"processing_completed_at": time.Now(),
		}).Error
}

// MarkFailed writes the failure payload and the failed status atomically.
func (r *OCRResultRepository) MarkFailed(ctx context.Context, jobID, message string) error {
	return r.db.WithContext(ctx).Model(&model.OCRResult{}).
		Where("job_id = ? AND status NOT IN ?", jobID, terminalStatuses).
		Updates(map[string]any{
			"status":                  model.StatusFailed,
			"error_message":           message,
			"processing_completed_at": time.Now(),
		}).Error
}

func (r *OCRResultRepository) FindByJobID(ctx context.Context, jobID string) (*model.OCRResult, error) {
	var rec model.OCRResult
	err := r.db.WithContext(ctx).First(&rec, "job_id = ?", jobID).Error
	return &rec, err
}

// FindByIDForUser is the ownership-scoped read used by the result endpoints.
func (r *OCRResultRepository) FindByIDForUser(ctx context.Context, id, userID string) (*model.OCRResult, error) {
	var rec model.OCRResult
	err := r.db.WithContext(ctx).First(&rec, "id = ? AND user_id = ?", id, userID).Error
	return &rec, err
}

// ListByUser returns the owner's records newest first, optionally filtered
// by status, with pagination metadata.
func (r *OCRResultRepository) ListByUser(ctx context.Context, userID, status string, page, limit int) ([]model.OCRResult, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.OCRResult{}).Where("user_id = ?", userID)
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var rows []model.OCRResult
	if err := base().Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	return rows, response.NewPagination(page, limit, total, len(rows)), nil
}

// UpdateExtractedData stores a corrected extraction payload for the owner's
// record and marks the record completed.
func (r *OCRResultRepository) UpdateExtractedData(ctx context.Context, id, userID, extractedJSON string) error {
	tx := r.db.WithContext(ctx).Model(&model.OCRResult{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"extracted_data": extractedJSON,
			"status":         model.StatusCompleted,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the owner's record; reports whether a row was deleted.
func (r *OCRResultRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	tx := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.OCRResult{})
	return tx.RowsAffected > 0, tx.Error
}

// Statistics aggregates result counts, success rate, and mean confidence,
// plus the ten most recent uploads. Empty userID aggregates over everyone.
type Statistics struct {
	TotalResults      int64             `json:"total_results"`
	CompletedResults  int64             `json:"completed_results"`
	FailedResults     int64             `json:"failed_results"`
	SuccessRate       int               `json:"success_rate"`
	AverageConfidence float64           `json:"average_confidence"`
	RecentUploads     []model.OCRResult `json:"recent_uploads"`
}

// round2 keeps the reported average at two decimals.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func (r *OCRResultRepository) Statistics(ctx context.Context, userID string) (*Statistics, error) {
	stats := &Statistics{}
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.OCRResult{})
		if userID != "" {
			q = q.Where("user_id = ?", userID)
		}
		return q
	}

	if err := base().Count(&stats.TotalResults).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", model.StatusCompleted).Count(&stats.CompletedResults).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", model.StatusFailed).Count(&stats.FailedResults).Error; err != nil {
		return nil, err
	}
	if stats.TotalResults > 0 {
		stats.SuccessRate = int(stats.CompletedResults * 100 / stats.TotalResults)
	}

	var avg sql.NullFloat64
	if err := base().Where("status = ?", model.StatusCompleted).
		Select("AVG(confidence)").Row().Scan(&avg); err != nil {
		return nil, err
	}
	if avg.Valid {
		stats.AverageConfidence = round2(avg.Float64)
	}

	if err := base().Order("created_at DESC").Limit(10).
		Select("id", "file_name", "file_type", "status", "confidence", "created_at").
		Find(&stats.RecentUploads).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
