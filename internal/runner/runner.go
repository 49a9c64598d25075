// Package runner fans evaluation work out over resume files and models and
// funnels parsed results into CSV files. One task covers one (file, model)
// pair and runs a configured number of iterations; iteration failures are
// recorded but never abort the surrounding run.
package runner

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hiring-bias-lab/resume-eval/internal/ai"
	"github.com/hiring-bias-lab/resume-eval/internal/prompt"
	"github.com/hiring-bias-lab/resume-eval/internal/survey"
)

// Task is one (resume file, evaluator) pair.
type Task struct {
	File      string
	Evaluator ai.Evaluator
}

// Config controls the execution of a run.
type Config struct {
	RunID      string
	Iterations int
	Workers    int
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Tasks          int
	CompletedTasks int64
	FailedTasks    int64
	Rows           int64
	ParseFailures  int64
}

// Runner executes evaluation tasks with bounded concurrency.
type Runner struct {
	cfg    Config
	sink   *CSVSink
	logger *zap.Logger

	// now is a seam for tests.
	now func() time.Time
}

// New creates a runner writing results through the given sink.
func New(cfg Config, sink *CSVSink, logger *zap.Logger) *Runner {
	if cfg.Iterations < 1 {
		cfg.Iterations = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes all tasks and returns a summary. The returned error is non-nil
// only when the context is cancelled; individual task failures are reported
// through the summary and the log.
func (r *Runner) Run(ctx context.Context, tasks []Task) (Summary, error) {
	summary := Summary{Tasks: len(tasks)}
	if len(tasks) == 0 {
		r.logger.Warn("no tasks to process")
		return summary, nil
	}

	r.logger.Info("starting run",
		zap.String("run_id", r.cfg.RunID),
		zap.Int("tasks", len(tasks)),
		zap.Int("iterations_per_task", r.cfg.Iterations),
		zap.Int("workers", r.cfg.Workers),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	var done int64

	for _, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			taskLogger := r.logger.With(
				zap.String("file", task.File),
				zap.String("provider", task.Evaluator.Provider()),
				zap.String("model", task.Evaluator.Model()),
			)

			if err := r.processTask(ctx, task, taskLogger, &summary); err != nil {
				atomic.AddInt64(&summary.FailedTasks, 1)
				taskLogger.Error("task failed", zap.Error(err))
			} else {
				atomic.AddInt64(&summary.CompletedTasks, 1)
			}

			taskLogger.Info("progress",
				zap.Int64("tasks_done", atomic.AddInt64(&done, 1)),
				zap.Int("tasks_total", len(tasks)),
			)

			return nil
		})
	}

	err := g.Wait()

	r.logger.Info("run finished",
		zap.String("run_id", r.cfg.RunID),
		zap.Int64("completed_tasks", atomic.LoadInt64(&summary.CompletedTasks)),
		zap.Int64("failed_tasks", atomic.LoadInt64(&summary.FailedTasks)),
		zap.Int64("rows_written", atomic.LoadInt64(&summary.Rows)),
		zap.Int64("parse_failures", atomic.LoadInt64(&summary.ParseFailures)),
	)

	return summary, err
}

func (r *Runner) processTask(ctx context.Context, task Task, logger *zap.Logger, summary *Summary) error {
	resume, err := os.ReadFile(task.File)
	if err != nil {
		return fmt.Errorf("read resume file: %w", err)
	}

	userPrompt := prompt.Build(string(resume))

	for iteration := 1; iteration <= r.cfg.Iterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.runIteration(ctx, task, userPrompt, iteration); err != nil {
			atomic.AddInt64(&summary.ParseFailures, 1)
			logger.Warn("iteration failed",
				zap.Int("iteration", iteration),
				zap.Error(err),
			)
			continue
		}

		atomic.AddInt64(&summary.Rows, 1)
	}

	return nil
}

func (r *Runner) runIteration(ctx context.Context, task Task, userPrompt string, iteration int) error {
	raw, err := task.Evaluator.Evaluate(ctx, userPrompt)
	if err != nil {
		return err
	}

	if err := survey.CheckSchema(raw); err != nil {
		// Not fatal: the lenient parser below handles free-form answers.
		r.logger.Debug("response failed schema validation",
			zap.String("model", task.Evaluator.Model()),
			zap.Error(err),
		)
	}

	eval, err := survey.ParseEvaluation(raw)
	if err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return r.sink.Append(Row{
		RunID:             r.cfg.RunID,
		File:              task.File,
		Provider:          task.Evaluator.Provider(),
		Model:             task.Evaluator.Model(),
		Iteration:         iteration,
		Scores:            eval.Scores,
		ManipulationCheck: eval.ManipulationCheck,
		ThoughtProcess:    eval.ThoughtProcess,
		Timestamp:         r.now(),
	})
}
