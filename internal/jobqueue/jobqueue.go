// Package jobqueue runs post-order fulfillment work on a River job queue:
// once an order is placed, a background job finalizes it and clears the
// shopper's persisted cart.
package jobqueue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/internal/store"
)

// OrderProcessArgs identifies one placed order to finalize.
type OrderProcessArgs struct {
	OrderID int64  `json:"order_id"`
	UserID  string `json:"user_id"`
}

// Kind returns the job kind for River.
func (OrderProcessArgs) Kind() string { return "order_process" }

// OrderProcessWorker finalizes placed orders.
type OrderProcessWorker struct {
	river.WorkerDefaults[OrderProcessArgs]
	store *store.Store
}

// Work marks the order completed and clears the shopper's persisted cart so
// the next session starts empty.
func (w *OrderProcessWorker) Work(ctx context.Context, job *river.Job[OrderProcessArgs]) error {
	args := job.Args

	if err := w.store.CompleteOrder(ctx, args.OrderID); err != nil {
		return fmt.Errorf("finalizing order %d: %w", args.OrderID, err)
	}
	if err := w.store.ClearCart(ctx, args.UserID); err != nil {
		return fmt.Errorf("clearing cart for user %s: %w", args.UserID, err)
	}

	log.Info().
		Int64("order_id", args.OrderID).
		Str("user_id", args.UserID).
		Msg("order processed")
	return nil
}

// JobQueue manages the River client and its workers.
type JobQueue struct {
	client *river.Client[pgx.Tx]
}

// NewJobQueue builds a queue over the shared connection pool.
func NewJobQueue(pool *pgxpool.Pool, st *store.Store, cfg *QueueConfig) (*JobQueue, error) {
	if cfg == nil {
		cfg = DefaultQueueConfig()
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &OrderProcessWorker{store: st})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  cfg.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}
	return &JobQueue{client: client}, nil
}

// Start launches the workers.
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop drains and stops the workers.
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// EnqueueOrderProcess schedules finalization for a placed order.
func (jq *JobQueue) EnqueueOrderProcess(ctx context.Context, orderID int64, userID string) error {
	_, err := jq.client.Insert(ctx, OrderProcessArgs{OrderID: orderID, UserID: userID}, nil)
	if err != nil {
		return fmt.Errorf("queueing order process job: %w", err)
	}
	return nil
}
