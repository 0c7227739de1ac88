package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"referral_network_backend/platform/config"
	"referral_network_backend/platform/logger"
)

// LeadExpirer is the slice of the lead lifecycle the worker drives.
type LeadExpirer interface {
	ExpireLead(ctx context.Context, leadID uuid.UUID) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	leads  LeadExpirer
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, leads LeadExpirer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
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

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		leads:  leads,
		log:    log,
	}

	mux.HandleFunc(TaskLeadExpiration, w.handleLeadExpiration)

	return w, nil
}

// handleLeadExpiration fires at a lead's auto-decline deadline. Leads that
// were accepted, or already expired by the sweeper, make this a no-op.
func (w *Worker) handleLeadExpiration(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadExpirationPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	return w.leads.ExpireLead(ctx, leadID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
