package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds the tunable parameters for the job queue.
type QueueConfig struct {
	MaxWorkers int           // concurrent workers (default: 5)
	MaxRetries int           // retry attempts per job (default: 10)
	JobTimeout time.Duration // per-job deadline (default: 1 minute)
}

// DefaultQueueConfig returns defaults sized for order finalization, which
// is quick database work.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers: 5,
		MaxRetries: 10,
		JobTimeout: time.Minute,
	}
}

// RiverQueueConfig converts the config to River's queue map.
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {MaxWorkers: c.MaxWorkers},
	}
}
