package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobSnapshotDTO is the polling view of one job: current status, progress,
// and the result or error once terminal.
type JobSnapshotDTO struct {
	JobID                 string     `json:"job_id"`
	Status                string     `json:"status"` // pending | processing | completed | failed
	Progress              int        `json:"progress"`
	FileName              string     `json:"file_name"`
	Confidence            int        `json:"confidence,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	SubmittedAt           time.Time  `json:"submitted_at"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
	ResultID              *uuid.UUID `json:"result_id,omitempty"`
}

type OCRResultDTO struct {
	ID                    uuid.UUID       `json:"id"`
	JobID                 string          `json:"job_id"`
	FileName              string          `json:"file_name"`
	FileSize              int64           `json:"file_size"`
	FileType              string          `json:"file_type"`
	Status                string          `json:"status"`
	RawText               string          `json:"raw_text,omitempty"`
	Confidence            int             `json:"confidence"`
	ExtractedData         json.RawMessage `json:"extracted_data,omitempty"`
	ErrorMessage          string          `json:"error_message,omitempty"`
	ProcessingStartedAt   *time.Time      `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time      `json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// CorrectionRequestDTO carries manually corrected extraction categories.
// Only the fields present are merged into the stored result.
type CorrectionRequestDTO struct {
	Emails     []string `json:"emails,omitempty"`
	Phones     []string `json:"phones,omitempty"`
	Dates      []string `json:"dates,omitempty"`
	Names      []string `json:"names,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Education  []string `json:"education,omitempty"`
	Experience []string `json:"experience,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Summary    *string  `json:"summary,omitempty"`
}
