// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"carehub/internal/common/config"
	"carehub/internal/common/metrics"
	"carehub/internal/common/observability"
)

// HandlerFunc is the signature every task handler's Handle method has.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// Job outcomes as seen by the instrumentation wrapper.
const (
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"
	OutcomeErrorThrown = "error_thrown"
	OutcomeUnknown     = "unknown"
)

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job worker for taskType with the instrumented handler.
func NewWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler HandlerFunc,
	obs *observability.Observability,
	logger *zap.Logger,
) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(Instrument(taskType, handler, obs))).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   logger,
		taskType: taskType,
	}
}

func (w *CamundaWorker) TaskType() string { return w.taskType }

// Stop closes the job worker and waits for in-flight jobs. The shared
// zbc.Client is closed by its owner.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))

	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker stop timed out", zap.String("taskType", w.taskType))
	}
}

// Instrument wraps handler with a span, the active-jobs gauge and outcome
// metrics. The outcome is taken from whichever job command the handler opens.
func Instrument(taskType string, handler HandlerFunc, obs *observability.Observability) HandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		started := time.Now()
		ctx, span := obs.StartSpan(context.Background(), "job "+taskType,
			attribute.String("task_type", taskType),
			attribute.Int64("job_key", job.Key),
			attribute.Int64("process_instance_key", job.ProcessInstanceKey),
		)
		defer span.End()

		gauge := metrics.WorkerJobsActive.WithLabelValues(taskType)
		gauge.Inc()
		defer gauge.Dec()

		tracked := &outcomeClient{JobClient: client}
		handler(tracked, job)

		outcome := tracked.Outcome()
		span.SetAttributes(attribute.String("outcome", outcome))
		metrics.ObserveJob(taskType, outcome, started)
		obs.RecordJobProcessed(ctx, taskType, outcome)
		obs.RecordJobDuration(ctx, taskType, time.Since(started), outcome)
	}
}

// outcomeClient records which terminal command a handler issued.
type outcomeClient struct {
	worker.JobClient

	mu      sync.Mutex
	outcome string
}

func (c *outcomeClient) set(outcome string) {
	c.mu.Lock()
	c.outcome = outcome
	c.mu.Unlock()
}

func (c *outcomeClient) Outcome() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == "" {
		return OutcomeUnknown
	}
	return c.outcome
}

func (c *outcomeClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	c.set(OutcomeCompleted)
	return c.JobClient.NewCompleteJobCommand()
}

func (c *outcomeClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	c.set(OutcomeFailed)
	return c.JobClient.NewFailJobCommand()
}

func (c *outcomeClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	c.set(OutcomeErrorThrown)
	return c.JobClient.NewThrowErrorCommand()
}
