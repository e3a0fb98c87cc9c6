package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	FileTypePDF   = "pdf"
	FileTypeImage = "image"
)

// OCRResult is the durable record for one uploaded document. It is the
// source of truth for anything a caller can observe after a restart; the
// queue only tracks the transient in-flight state.
type OCRResult struct {
	ID                    uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID                 string     `gorm:"type:varchar(64);uniqueIndex" json:"job_id"`
	UserID                string     `gorm:"type:varchar(64);index" json:"user_id"`
	FileName              string     `gorm:"type:varchar(255)" json:"file_name"`
	FileSize              int64      `json:"file_size"`
	FileType              string     `gorm:"type:varchar(10)" json:"file_type"` // "pdf" | "image"
	Status                string     `gorm:"type:varchar(50)" json:"status"`    // pending | processing | completed | failed
	RawText               string     `gorm:"type:text" json:"raw_text"`
	Confidence            int        `json:"confidence"` // 0-100, pages-averaged
	ExtractedData         string     `gorm:"type:jsonb" json:"extracted_data"`
	ErrorMessage          string     `gorm:"type:text" json:"error_message"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (r *OCRResult) TableName() string {
	return "ocr_results"
}

// IsTerminal reports whether the record reached completed or failed.
func (r *OCRResult) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}
