package cron

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"voicecab/config"
	"voicecab/services/dispatch"
	"voicecab/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeDispatchAssign = "dispatch:assign"

// assignPayload is the queued assignment request.
type assignPayload struct {
	BookingID string `json:"bookingId"`
}

// DispatchQueue enqueues assignment work for the dispatch worker. It is the
// dialogue engine's dispatch trigger: booking creation only drops a task on
// the queue, the worker does the claiming.
type DispatchQueue struct {
	client     *asynq.Client
	retryDelay time.Duration
}

// NewDispatchQueue creates the queue client against the dispatch Redis DB.
func NewDispatchQueue() *DispatchQueue {
	client := asynq.NewClient(dispatchRedisOpt())
	return &DispatchQueue{
		client:     client,
		retryDelay: time.Duration(config.AppConfig.DispatchRetryDelaySec) * time.Second,
	}
}

func dispatchRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDispatchDB,
	}
}

// TriggerAssign implements dialogue.DispatchTrigger.
func (q *DispatchQueue) TriggerAssign(bookingID string) {
	q.enqueue(bookingID, 0)
}

func (q *DispatchQueue) enqueue(bookingID string, delay time.Duration) {
	logger := utils.GetLogger()

	b, err := json.Marshal(assignPayload{BookingID: bookingID})
	if err != nil {
		logger.Error("failed to encode assignment task", zap.String("bookingId", bookingID), zap.Error(err))
		return
	}

	task := asynq.NewTask(TypeDispatchAssign, b)
	opts := []asynq.Option{}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	if _, err := q.client.Enqueue(task, opts...); err != nil {
		logger.Error("failed to enqueue assignment task", zap.String("bookingId", bookingID), zap.Error(err))
		return
	}
	logger.Info("assignment task enqueued",
		zap.String("bookingId", bookingID), zap.Duration("delay", delay))
}

// Close releases the queue client.
func (q *DispatchQueue) Close() error {
	return q.client.Close()
}

// InitDispatchWorker runs the async dispatch worker in background.
func InitDispatchWorker(coordinator *dispatch.Coordinator, queue *DispatchQueue) {
	logger := utils.GetLogger()

	srv := asynq.NewServer(
		dispatchRedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDispatchAssign, handleAssignTask(coordinator, queue))

	go func() {
		logger.Info("starting dispatch worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Error("dispatch worker failed to start",
					zap.Int("attempt", attempts), zap.Error(err))
				if attempts == maxAttempts {
					logger.Fatal("dispatch worker exhausted start attempts")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

// handleAssignTask runs one assignment attempt. No eligible driver is not a
// task failure: the task succeeds and a fresh attempt is queued after the
// retry delay, so asynq's own retry/backoff never compounds with ours.
func handleAssignTask(coordinator *dispatch.Coordinator, queue *DispatchQueue) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		logger := utils.GetLogger()

		var p assignPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid assignment payload", zap.Error(err))
			return err
		}

		err := coordinator.Assign(p.BookingID)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, dispatch.ErrNoEligibleDriver):
			queue.enqueue(p.BookingID, queue.retryDelay)
			return nil
		case errors.Is(err, dispatch.ErrAlreadyAssigned), errors.Is(err, dispatch.ErrNotAssignable):
			// Assigned by another path or cancelled meanwhile; drop the task.
			logger.Info("assignment task skipped",
				zap.String("bookingId", p.BookingID), zap.Error(err))
			return nil
		default:
			logger.Error("assignment attempt failed",
				zap.String("bookingId", p.BookingID), zap.Error(err))
			return err
		}
	}
}
