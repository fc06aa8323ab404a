// Package worker contains the background warm-up loop that pre-creates each
// subject's daily assignment, and optionally tomorrow's preview, so the first
// quiz taker of the day does not pay for selection.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"dailyquiz/internal/config"
	"dailyquiz/internal/observability"
	"dailyquiz/internal/services"
	contextutils "dailyquiz/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// Status represents the current state of the worker
type Status struct {
	IsRunning       bool      `json:"is_running"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	LastRunStart    time.Time `json:"last_run_start"`
	LastRunFinish   time.Time `json:"last_run_finish"`
	LastRunError    string    `json:"last_run_error,omitempty"`
	NextRun         time.Time `json:"next_run"`
}

// RunRecord tracks individual worker runs
type RunRecord struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"` // Success, Failure
	Details   string        `json:"details"`
}

// Worker warms the assignment store on a fixed interval
type Worker struct {
	quizService   services.DailyQuizServiceInterface
	instance      string
	interval      time.Duration
	warmPreview   bool
	status        Status
	history       []RunRecord
	mu            sync.RWMutex
	manualTrigger chan bool
	logger        *observability.Logger

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
}

// NewWorker creates a worker for every subject the quiz service supports
func NewWorker(quizService services.DailyQuizServiceInterface, instance string, cfg *config.Config, logger *observability.Logger) *Worker {
	interval := cfg.Quiz.WarmupInterval
	if interval <= 0 {
		interval = config.DefaultWarmupInterval
	}
	return &Worker{
		quizService:   quizService,
		instance:      instance,
		interval:      interval,
		warmPreview:   cfg.Quiz.WarmTomorrowPreview,
		manualTrigger: make(chan bool, 1),
		logger:        logger,
		timeNow:       time.Now,
	}
}

// Start runs once immediately and then on every tick until ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.mu.Lock()
	w.status.IsRunning = true
	w.mu.Unlock()

	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance":     w.instance,
		"interval":     w.interval.String(),
		"warm_preview": w.warmPreview,
	})

	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Worker shutting down", map[string]interface{}{
				"instance": w.instance,
			})
			w.mu.Lock()
			w.status.IsRunning = false
			w.status.CurrentActivity = ""
			w.mu.Unlock()
			return

		case <-ticker.C:
			w.run(ctx)

		case <-w.manualTrigger:
			w.logger.Info(ctx, "Worker triggered manually", map[string]interface{}{
				"instance": w.instance,
			})
			w.run(ctx)
		}
	}
}

// run executes a single warm-up cycle. Failures are logged and retried on the next tick.
func (w *Worker) run(ctx context.Context) {
	ctx, span := observability.TraceWorkerFunction(ctx, "run",
		attribute.String("worker.instance", w.instance),
	)
	defer observability.FinishSpan(span, nil)

	start := w.timeNow()
	w.mu.Lock()
	w.status.LastRunStart = start
	w.mu.Unlock()

	details, err := w.warm(ctx)

	finish := w.timeNow()
	w.mu.Lock()
	w.status.LastRunFinish = finish
	w.status.NextRun = finish.Add(w.interval)
	w.status.CurrentActivity = ""
	if err != nil {
		w.status.LastRunError = err.Error()
	} else {
		w.status.LastRunError = ""
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error(ctx, "Worker run failed", err, map[string]interface{}{
			"instance": w.instance,
			"details":  details,
		})
	} else {
		w.logger.Info(ctx, "Worker run completed", map[string]interface{}{
			"instance":    w.instance,
			"details":     details,
			"duration_ms": finish.Sub(start).Milliseconds(),
		})
	}
	w.recordRunHistory(start, finish, details, err)
}

// warm touches today's assignment, and tomorrow's when enabled, for each subject.
// Every subject is attempted even after a failure.
func (w *Worker) warm(ctx context.Context) (string, error) {
	var actions, failures []string

	for _, subject := range w.quizService.Subjects() {
		if ctx.Err() != nil {
			failures = append(failures, "cancelled")
			break
		}

		w.updateActivity(fmt.Sprintf("Warming %s", subject))
		a, err := w.quizService.GetOrCreate(ctx, subject)
		if err != nil {
			w.logger.Error(ctx, "Failed to warm today's assignment", err, map[string]interface{}{
				"instance": w.instance,
				"subject":  subject,
			})
			failures = append(failures, fmt.Sprintf("%s today: %s", subject, contextutils.GetErrorCode(err)))
			continue
		}
		actions = append(actions, fmt.Sprintf("%s today v%d (%d questions)", subject, a.QuizVersion, len(a.QuestionIDs)))

		if !w.warmPreview {
			continue
		}
		preview, err := w.quizService.GenerateTomorrowPreview(ctx, subject)
		if err != nil {
			w.logger.Error(ctx, "Failed to warm tomorrow's preview", err, map[string]interface{}{
				"instance": w.instance,
				"subject":  subject,
			})
			failures = append(failures, fmt.Sprintf("%s tomorrow: %s", subject, contextutils.GetErrorCode(err)))
			continue
		}
		actions = append(actions, fmt.Sprintf("%s tomorrow (%d questions)", subject, len(preview.Questions)))
	}

	details := strings.Join(actions, "; ")
	if len(failures) > 0 {
		return details, contextutils.ErrorWithContextf("warm-up failed for %d item(s): %s", len(failures), strings.Join(failures, "; "))
	}
	return details, nil
}

func (w *Worker) updateActivity(activity string) {
	w.mu.Lock()
	w.status.CurrentActivity = activity
	w.mu.Unlock()
}

// recordRunHistory records the run in history and trims the slice
func (w *Worker) recordRunHistory(start, finish time.Time, details string, err error) {
	record := RunRecord{
		StartTime: start,
		EndTime:   finish,
		Duration:  finish.Sub(start),
		Details:   details,
		Status:    "Success",
	}
	if err != nil {
		record.Status = "Failure"
		record.Details = err.Error()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, record)
	if len(w.history) > config.WorkerMaxHistory {
		w.history = w.history[len(w.history)-config.WorkerMaxHistory:]
	}
}

// GetStatus returns the current worker status
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetHistory returns a copy of the worker's run history
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	history := make([]RunRecord, len(w.history))
	copy(history, w.history)
	return history
}

// GetInstance returns the worker instance name
func (w *Worker) GetInstance() string {
	return w.instance
}

// TriggerManualRun queues a run unless one is already pending
func (w *Worker) TriggerManualRun() {
	ctx := context.Background()
	select {
	case w.manualTrigger <- true:
		w.logger.Info(ctx, "Manual trigger sent to worker", map[string]interface{}{
			"instance": w.instance,
		})
	default:
		w.logger.Info(ctx, "Manual trigger already pending for worker", map[string]interface{}{
			"instance": w.instance,
		})
	}
}
