package handler

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/markbunyevacz/HR-AI-website/internal/dto"
	"github.com/markbunyevacz/HR-AI-website/internal/middleware"
	"github.com/markbunyevacz/HR-AI-website/internal/model"
	"github.com/markbunyevacz/HR-AI-website/internal/queue"
	"github.com/markbunyevacz/HR-AI-website/internal/usecase"
	"github.com/markbunyevacz/HR-AI-website/internal/util"
	"gorm.io/gorm"
)

const maxUploadBytes = 5 * 1024 * 1024

type OCRHandler struct {
	uc        *usecase.OCRUsecase
	uploadDir string
}

func NewOCRHandler(uc *usecase.OCRUsecase, uploadDir string) *OCRHandler {
	if uploadDir == "" {
		uploadDir = "./uploads/ocr"
	}
	return &OCRHandler{uc: uc, uploadDir: uploadDir}
}

func (h *OCRHandler) RegisterRoutes(app *fiber.App) {
	app.Post("/ocr/upload", middleware.RateLimiter(10, 1*time.Minute), h.Upload)
	app.Get("/ocr/jobs", h.ListJobs)
	app.Get("/ocr/jobs/:id/status", h.JobStatus)
	app.Delete("/ocr/jobs/:id", h.CancelJob)
	app.Get("/ocr/queue/stats", h.QueueStats)
	app.Get("/ocr/results", h.ListResults)
	app.Get("/ocr/results/:id", h.ResultDetail)
	app.Put("/ocr/results/:id", h.CorrectResult)
	app.Delete("/ocr/results/:id", h.DeleteResult)
	app.Get("/ocr/statistics", h.Statistics)
	app.Get("/ocr/export", h.Export)
}

// ownerID resolves the acting user. Authentication itself lives outside this
// service; callers pass the already-authenticated user id.
func ownerID(c *fiber.Ctx) string {
	if id := c.Get("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user_id")
}

func (h *OCRHandler) Upload(c *fiber.Ctx) error {
	userID := ownerID(c)
	if userID == "" {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "user id is required",
		})
	}

	file, err := c.FormFile("document")
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "document file is required",
		}, err)
	}
	if file.Size > maxUploadBytes {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "document file size is too large (max 5MB)",
		})
	}

	// Reject unsupported kinds before anything touches disk or the store.
	if _, err := queue.KindForFile(file.Filename); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "unsupported document file type",
		}, err)
	}

	savePath := filepath.Join(h.uploadDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, savePath); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "cannot save document file",
		}, err)
	}

	jobID, err := h.uc.EnqueueDocument(c.Context(), savePath, file.Filename, file.Size, userID)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to enqueue document",
		}, err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusAccepted,
		Message: "Document queued for processing",
		Data:    fiber.Map{"job_id": jobID, "status": model.StatusPending},
	})
}

func (h *OCRHandler) JobStatus(c *fiber.Ctx) error {
	snap, err := h.uc.GetJobStatus(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusNotFound,
				Message: "job not found",
			})
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to get job status",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get job status",
		Data:    snapshotDTO(snap),
	})
}

func (h *OCRHandler) ListJobs(c *fiber.Ctx) error {
	userID := ownerID(c)
	snaps, err := h.uc.ListJobsForOwner(c.Context(), userID)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to list jobs",
		}, err)
	}
	out := make([]dto.JobSnapshotDTO, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, snapshotDTO(s))
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success list jobs",
		Data:    out,
	})
}

func (h *OCRHandler) CancelJob(c *fiber.Ctx) error {
	cancelled := h.uc.CancelJob(c.Context(), c.Params("id"))
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success cancel job",
		Data:    fiber.Map{"cancelled": cancelled},
	})
}

func (h *OCRHandler) QueueStats(c *fiber.Ctx) error {
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get queue stats",
		Data:    h.uc.GetQueueStats(),
	})
}

func (h *OCRHandler) ListResults(c *fiber.Ctx) error {
	userID := ownerID(c)
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	status := c.Query("status")

	rows, pagination, err := h.uc.ListResults(c.Context(), userID, status, page, limit)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to list results",
		}, err)
	}
	out := make([]dto.OCRResultDTO, 0, len(rows))
	for i := range rows {
		out = append(out, resultDTO(&rows[i], false))
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message:    "Success list results",
		Data:       out,
		Pagination: pagination,
	})
}

func (h *OCRHandler) ResultDetail(c *fiber.Ctx) error {
	rec, err := h.uc.GetResultDetail(c.Context(), c.Params("id"), ownerID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusNotFound,
				Message: "result not found",
			})
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to get result",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get result",
		Data:    resultDTO(rec, true),
	})
}

func (h *OCRHandler) CorrectResult(c *fiber.Ctx) error {
	var req dto.CorrectionRequestDTO
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid correction payload",
		}, err)
	}

	rec, err := h.uc.ApplyManualCorrection(c.Context(), c.Params("id"), ownerID(c), string(c.Body()))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusNotFound,
				Message: "result not found",
			})
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to apply corrections",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success apply corrections",
		Data:    resultDTO(rec, true),
	})
}

func (h *OCRHandler) DeleteResult(c *fiber.Ctx) error {
	deleted, err := h.uc.DeleteResult(c.Context(), c.Params("id"), ownerID(c))
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to delete result",
		}, err)
	}
	if !deleted {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusNotFound,
			Message: "result not found",
		})
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success delete result",
	})
}

func (h *OCRHandler) Statistics(c *fiber.Ctx) error {
	stats, err := h.uc.GetStatistics(c.Context(), ownerID(c))
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to get statistics",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get statistics",
		Data:    stats,
	})
}

func (h *OCRHandler) Export(c *fiber.Ctx) error {
	data, err := h.uc.ExportCSV(c.Context(), ownerID(c))
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to export results",
		}, err)
	}
	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", `attachment; filename="ocr-results.csv"`)
	return c.SendString(data)
}

func snapshotDTO(s *queue.Snapshot) dto.JobSnapshotDTO {
	out := dto.JobSnapshotDTO{
		JobID:    s.JobID,
		Status:   s.Status,
		Progress: s.Progress,
	}
	if rec := s.Record; rec != nil {
		out.FileName = rec.FileName
		out.SubmittedAt = rec.CreatedAt
		out.ProcessingStartedAt = rec.ProcessingStartedAt
		out.ProcessingCompletedAt = rec.ProcessingCompletedAt
		out.ErrorMessage = rec.ErrorMessage
		if rec.Status == model.StatusCompleted {
			out.Confidence = rec.Confidence
			id := rec.ID
			out.ResultID = &id
		}
	}
	return out
}

// resultDTO shapes a record for responses; the raw text and extraction
// payload are only included on detail reads.
func resultDTO(rec *model.OCRResult, detail bool) dto.OCRResultDTO {
	out := dto.OCRResultDTO{
		ID:                    rec.ID,
		JobID:                 rec.JobID,
		FileName:              rec.FileName,
		FileSize:              rec.FileSize,
		FileType:              rec.FileType,
		Status:                rec.Status,
		Confidence:            rec.Confidence,
		ErrorMessage:          rec.ErrorMessage,
		ProcessingStartedAt:   rec.ProcessingStartedAt,
		ProcessingCompletedAt: rec.ProcessingCompletedAt,
		CreatedAt:             rec.CreatedAt,
	}
	if detail {
		out.RawText = rec.RawText
		if rec.ExtractedData != "" {
			out.ExtractedData = json.RawMessage(rec.ExtractedData)
		}
	}
	return out
}
