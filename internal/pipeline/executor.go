package pipeline

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Executor schedules the units of work of a generation run: one unit per class during
// synthesis and one per sheet or file during post-processing. Results never depend on the
// executor, only timing does.
type Executor interface {
	// Run calls fn for every i in [0, n) and returns the first error
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
	// Yield marks a stage boundary where other work may be scheduled
	Yield(ctx context.Context) error
}

// SyncExecutor runs every unit in order on the calling goroutine
type SyncExecutor struct{}

// Run calls fn sequentially
func (SyncExecutor) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// Yield only reports cancellation
func (SyncExecutor) Yield(ctx context.Context) error {
	return ctx.Err()
}

// PoolExecutor runs units on a bounded pool of goroutines and yields the processor at every
// stage boundary
type PoolExecutor struct {
	numWorkers int
	logger     *zap.Logger
}

// NewPoolExecutor creates a pool with numWorkers goroutines (at least one)
func NewPoolExecutor(numWorkers int, logger *zap.Logger) *PoolExecutor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolExecutor{numWorkers: numWorkers, logger: logger}
}

// Workers returns the pool size
func (p *PoolExecutor) Workers() int {
	return p.numWorkers
}

// Run schedules the units on the pool. The first failing unit cancels the rest.
func (p *PoolExecutor) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.numWorkers)

	for i := 0; i < n; i++ {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Debug("unit failed", zap.Int("units", n), zap.Error(err))
		return err
	}
	return ctx.Err()
}

// Yield lets other goroutines run before the next stage
func (p *PoolExecutor) Yield(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}

// NewExecutor returns the synchronous executor for workers == 0, a pool otherwise
func NewExecutor(workers int, logger *zap.Logger) Executor {
	if workers <= 0 {
		return SyncExecutor{}
	}
	return NewPoolExecutor(workers, logger)
}
