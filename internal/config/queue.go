package config

import (
	"sync"
	"time"
)

type QueueConfig struct {
	Concurrency   int           // worker pool width
	MaxAttempts   int           // total attempts per job
	BackoffBase   time.Duration // first retry delay, doubles each attempt
	KeepCompleted int           // tracked completed jobs before pruning
	KeepFailed    int           // tracked failed jobs before pruning
	StallTimeout  time.Duration // inactivity window before a stall event
}

var (
	queueConfig *QueueConfig
	queueOnce   sync.Once
)

func LoadQueueConfig() *QueueConfig {
	queueOnce.Do(func() {
		queueConfig = &QueueConfig{
			Concurrency:   envIntOrDefault("QUEUE_CONCURRENCY", 2),
			MaxAttempts:   envIntOrDefault("QUEUE_MAX_ATTEMPTS", 3),
			BackoffBase:   time.Duration(envIntOrDefault("QUEUE_BACKOFF_MS", 2000)) * time.Millisecond,
			KeepCompleted: envIntOrDefault("QUEUE_KEEP_COMPLETED", 50),
			KeepFailed:    envIntOrDefault("QUEUE_KEEP_FAILED", 20),
			StallTimeout:  time.Duration(envIntOrDefault("QUEUE_STALL_TIMEOUT_MS", 30000)) * time.Millisecond,
		}
	})
	return queueConfig
}
