package service

import (
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/markbunyevacz/HR-AI-website/internal/queue"
)

// NotifyService POSTs terminal job events to a configured webhook. It is an
// observation hook: delivery failures are logged and swallowed, never fed
// back into the job.
type NotifyService struct {
	client     *resty.Client
	webhookURL string
}

func NewNotifyService(webhookURL string) *NotifyService {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2)
	return &NotifyService{client: client, webhookURL: webhookURL}
}

// Listener adapts the service to the queue's event hook. Only terminal
// transitions are delivered; stall and start events stay log-only.
func (s *NotifyService) Listener() queue.Listener {
	return func(ev queue.Event) {
		if ev.Type != queue.EventCompleted && ev.Type != queue.EventFailed {
			return
		}
		go s.send(ev)
	}
}

func (s *NotifyService) send(ev queue.Event) {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"job_id":  ev.JobID,
			"user_id": ev.UserID,
			"event":   string(ev.Type),
			"error":   ev.Error,
		}).
		Post(s.webhookURL)
	if err != nil {
		log.Printf("[Notify] webhook delivery failed for job %s: %v", ev.JobID, err)
		return
	}
	if resp.IsError() {
		log.Printf("[Notify] webhook returned %d for job %s", resp.StatusCode(), ev.JobID)
	}
}
