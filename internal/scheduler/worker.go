package scheduler

import (
	"context"
	"fmt"
	"time"

	"nordflytt_backend/platform/config"
	"nordflytt_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// QuoteExpirer is the slice of the quotes service the worker needs.
type QuoteExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// Worker runs the asynq server and the periodic quote expiry sweep.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	quotes    QuoteExpirer
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, quotes QuoteExpirer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	scheduler := asynq.NewScheduler(opt, nil)
	sweepTask, err := NewQuoteExpirySweepTask(QuoteExpirySweepPayload{})
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register("@every 10m", sweepTask, asynq.Queue(queue)); err != nil {
		return nil, err
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: scheduler,
		mux:       mux,
		quotes:    quotes,
		log:       log,
	}

	mux.HandleFunc(TaskQuoteExpirySweep, w.handleQuoteExpirySweep)

	return w, nil
}

func (w *Worker) handleQuoteExpirySweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseQuoteExpirySweepPayload(task)
	if err != nil {
		return err
	}

	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	expired, err := w.quotes.ExpireDue(ctx, asOf)
	if err != nil {
		return err
	}
	if expired > 0 {
		w.log.Info("quote expiry sweep completed", "expired", expired, "as_of", asOf)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.log.Error("scheduler stopped", "error", err)
		}
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
