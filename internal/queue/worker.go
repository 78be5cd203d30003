package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"github.com/StoneRaptor5870/image-processor/internal/config"
	"github.com/StoneRaptor5870/image-processor/internal/orchestrator"
)

type BatchRunner interface {
	Run(ctx context.Context, requestID string) error
}

// Worker consumes ProcessJob messages from a Redis Stream consumer group and
// hands them to the batch orchestrator. Redelivery after a crash is safe
// because orchestrator runs are idempotent.
type Worker struct {
	rc     redis.UniversalClient
	cfg    config.BatchWorkerConfig
	runner BatchRunner
}

func Init(ctx context.Context, rc redis.UniversalClient, cfg config.BatchWorkerConfig, runner BatchRunner) *Producer {
	producer := NewProducer(rc, cfg.Stream, cfg.MaxLen)
	worker := NewWorker(rc, cfg, runner)

	go func() {
		if err := worker.Start(ctx); err != nil {
			log.Printf("[batch-worker] stopped: %v", err)
		}
	}()

	return producer
}

func NewWorker(rc redis.UniversalClient, cfg config.BatchWorkerConfig, runner BatchRunner) *Worker {
	return &Worker{
		rc:     rc,
		cfg:    cfg,
		runner: runner,
	}
}

func (w *Worker) EnsureGroup(ctx context.Context) error {
	// Without MkStream, Redis would error out if you try to create a group before any messages exist in the stream.
	err := w.rc.XGroupCreateMkStream(ctx, w.cfg.Stream, w.cfg.Group, "0").Err()
	// Redis returns BUSYGROUP if the group already exists therefore we check for other errors
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (w *Worker) Start(ctx context.Context) error {
	if err := w.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("failed to ensure Redis group: %w", err)
	}

	log.Printf("[batch-worker] starting consumer group=%s stream=%s workers=%d",
		w.cfg.Group, w.cfg.Stream, w.cfg.Workers,
	)

	// Adopt orphaned pending messages
	w.autoClaim(ctx)

	errCh := make(chan error, w.cfg.Workers)
	for i := 0; i < w.cfg.Workers; i++ {
		id := i
		go func() {
			log.Printf("[batch-worker] worker #%d started", id)
			err := w.loop(ctx)
			if err != nil {
				log.Printf("[batch-worker] worker #%d stopped with error: %v", id, err)
			} else {
				log.Printf("[batch-worker] worker #%d stopped gracefully", id)
			}
			errCh <- err
		}()
	}

	select {
	case <-ctx.Done():
		log.Printf("[batch-worker] context canceled, stopping all workers")
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker loop exited with error: %w", err)
		}
		return nil
	}
}

// autoClaim scans the consumer group for messages that were delivered to
// another consumer but never acknowledged, which happens when a worker dies
// between picking up a request and finishing its batch. Claiming them here
// means an interrupted batch run is re-triggered after restart; the
// orchestrator's short-circuit and attempted-product checks make the replay
// cheap.
func (w *Worker) autoClaim(ctx context.Context) {
	next := "0-0"

	// A batch run can legitimately take a while, so never reclaim messages
	// that have been idle for less than the floor below.
	minIdle := 30 * time.Second
	if w.cfg.BlockTimeout > 0 {
		t := w.cfg.BlockTimeout * 6
		if t > minIdle {
			minIdle = t
		}
	}

	for {
		msgs, start, err := w.rc.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   w.cfg.Stream,
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			MinIdle:  minIdle,
			Start:    next,
			Count:    100,
		}).Result()
		if err != nil || len(msgs) == 0 {
			return
		}
		next = start
	}
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		// XREADGROUP marks returned messages pending for this consumer until
		// the XACK at the end of handle(). A crash before the ack leaves the
		// message in the group PEL for autoClaim to adopt on restart.
		streams, err := w.rc.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.cfg.Stream, ">"},
			Count:    1,
			Block:    w.cfg.BlockTimeout,
		}).Result()
		if err != nil && err != redis.Nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				_ = w.handle(ctx, m)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, m redis.XMessage) error {
	defer w.rc.XAck(ctx, w.cfg.Stream, w.cfg.Group, m.ID).Err()

	raw, ok := m.Values["payload"].(string)
	if !ok {
		sentry.CaptureMessage(fmt.Sprintf("batch-worker: message %s has no payload", m.ID))
		return nil
	}
	var job ProcessJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		sentry.CaptureException(fmt.Errorf("batch-worker: unmarshal message %s: %w", m.ID, err))
		return nil
	}
	attempt := toInt(m.Values["attempt"])

	if err := w.runner.Run(ctx, job.RequestID); err != nil {
		// A request with no products will never succeed; retrying it would
		// just churn the stream.
		if errors.Is(err, orchestrator.ErrNoProducts) {
			sentry.CaptureException(err)
			return nil
		}

		if attempt+1 >= w.cfg.MaxAttempts {
			sentry.CaptureException(fmt.Errorf("batch-worker: giving up on request %s after %d attempts: %w",
				job.RequestID, attempt+1, err))
			return nil
		}
		// simple exponential backoff requeue
		backoff := w.cfg.BackoffBase << attempt
		time.AfterFunc(backoff, func() {
			_ = w.rc.XAdd(context.Background(), &redis.XAddArgs{
				Stream: w.cfg.Stream,
				MaxLen: w.cfg.MaxLen,
				Values: map[string]any{
					"payload": raw,
					"attempt": attempt + 1,
				},
			}).Err()
		})
		return err
	}
	return nil
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		var x int
		fmt.Sscanf(t, "%d", &x)
		return x
	default:
		return 0
	}
}
