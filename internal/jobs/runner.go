package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/analyzer"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/engine"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/infrastructure"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

var ErrQueueFull = errors.New("job queue full")

// BarSource loads historical bars for a set of symbols.
type BarSource interface {
	LoadAll(ctx context.Context, symbols []string, start, end time.Time) (map[string][]model.Bar, error)
}

// Runner executes queued backtest jobs on a fixed pool of workers and
// publishes a lifecycle event to JetStream on every status change.
type Runner struct {
	queue       chan string
	workerCount int
	store       *Store
	bars        BarSource
	js          nats.JetStreamContext
	logger      *zap.Logger
}

func NewRunner(workerCount, queueLen int, store *Store, bars BarSource, js nats.JetStreamContext, logger *zap.Logger) *Runner {
	return &Runner{
		queue:       make(chan string, queueLen),
		workerCount: workerCount,
		store:       store,
		bars:        bars,
		js:          js,
		logger:      logger,
	}
}

func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workerCount; i++ {
		go r.worker(ctx, i)
	}
	r.logger.Info("started job runner", zap.Int("workers", r.workerCount))
}

// Submit enqueues a pending job for execution.
func (r *Runner) Submit(jobID string) error {
	select {
	case r.queue <- jobID:
		infrastructure.JobsSubmitted.Inc()
		return nil
	default:
		r.logger.Warn("job queue full, rejecting job", zap.String("job_id", jobID))
		return ErrQueueFull
	}
}

func (r *Runner) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-r.queue:
			if !ok {
				return
			}
			r.run(ctx, id, jobID)
		}
	}
}

func (r *Runner) run(ctx context.Context, workerID int, jobID string) {
	job, err := r.store.Get(jobID)
	if err != nil {
		r.logger.Error("queued job missing from store", zap.String("job_id", jobID))
		return
	}
	log := r.logger.With(zap.String("job_id", jobID), zap.Int("worker_id", workerID))

	r.store.setRunning(jobID)
	r.publish(jobID, StatusRunning, "")
	log.Info("backtest job started")

	started := time.Now()
	report, err := r.execute(ctx, &job)
	infrastructure.SimulationDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		r.store.setFailed(jobID, err.Error())
		r.publish(jobID, StatusFailed, err.Error())
		infrastructure.JobsCompleted.WithLabelValues(string(StatusFailed)).Inc()
		log.Error("backtest job failed", zap.Error(err))
		return
	}

	r.publish(jobID, StatusCompleted, "")
	infrastructure.JobsCompleted.WithLabelValues(string(StatusCompleted)).Inc()
	log.Info("backtest job completed",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("trades", report.Trades.Total),
	)
}

func (r *Runner) execute(ctx context.Context, job *Job) (*analyzer.Report, error) {
	data, err := r.bars.LoadAll(ctx, job.Config.Markets, job.Start, job.End)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}

	sim := engine.NewSimulator(&job.Config, r.logger.With(zap.String("job_id", job.ID)))
	result, err := sim.Run(ctx, data)
	if err != nil {
		return nil, err
	}

	report := analyzer.Analyze(result, job.Config.RiskFreeRateAnnual)
	r.store.setCompleted(job.ID, result, &report)
	return &report, nil
}

type jobEvent struct {
	JobID        string `json:"job_id"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (r *Runner) publish(jobID string, status Status, errMsg string) {
	if r.js == nil {
		return
	}
	payload, _ := json.Marshal(jobEvent{JobID: jobID, Status: status, ErrorMessage: errMsg})
	subject := fmt.Sprintf("backtest.job.%s.%s", jobID, status)
	if _, err := r.js.Publish(subject, payload); err != nil {
		r.logger.Error("failed to publish job event", zap.String("subject", subject), zap.Error(err))
	}
}
