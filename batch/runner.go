package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/kinfolk/workflow"
)

// Answerer runs one question through the pipeline.
// *workflow.Engine satisfies it.
type Answerer interface {
	Run(ctx context.Context, query string) (*workflow.Response, error)
}

var _ Answerer = (*workflow.Engine)(nil)

// Result is the outcome of one question. Index is the question's position
// in the input.
type Result struct {
	Index    int
	Question string
	Response *workflow.Response
	Err      error
	Elapsed  time.Duration
}

// Runner answers questions concurrently.
type Runner struct {
	answerer Answerer
	pool     *ants.Pool
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner) error

// WithPoolSize sets the number of questions answered at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(r *Runner) error {
		if size < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidPoolSize, size)
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if r.pool != nil {
			r.pool.Release()
		}
		r.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRunner creates a runner. Call Release when done.
func NewRunner(answerer Answerer, opts ...Option) (*Runner, error) {
	if answerer == nil {
		return nil, ErrAnswererRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		answerer: answerer,
		pool:     pool,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.Release()
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "batch")
	return r, nil
}

// Run answers every question and returns the results in input order.
// Questions not started before ctx is done get ctx's error.
func (r *Runner) Run(ctx context.Context, questions []string) []Result {
	results := make([]Result, len(questions))
	var wg sync.WaitGroup

	for i, question := range questions {
		results[i] = Result{Index: i, Question: question}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}
			start := time.Now()
			results[i].Response, results[i].Err = r.answerer.Run(ctx, question)
			results[i].Elapsed = time.Since(start)
			if results[i].Err != nil {
				r.logger.Warn("question failed", "index", i, "err", results[i].Err)
			}
		})
		if err != nil {
			wg.Done()
			results[i].Err = fmt.Errorf("failed to schedule question: %w", err)
		}
	}

	wg.Wait()
	r.logger.Debug("batch complete", "questions", len(questions))
	return results
}

// Release frees the worker pool.
func (r *Runner) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
