package watch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/pipeline"
)

// Generator produces templates for a request
type Generator interface {
	Generate(ctx context.Context, req pipeline.TemplateRequest) (*pipeline.Result, error)
}

// Report is delivered after every generation triggered by the regenerator
type Report struct {
	Changed []string
	Result  *pipeline.Result
	Err     error
}

// Regenerator runs a generation once and again whenever its inputs change.
// Generations never overlap.
type Regenerator struct {
	generator Generator
	request   pipeline.TemplateRequest
	debounce  time.Duration
	logger    *zap.Logger
	onReport  func(Report)

	mu sync.Mutex
}

// NewRegenerator creates a regenerator for req. onReport may be nil.
func NewRegenerator(generator Generator, req pipeline.TemplateRequest, debounce time.Duration, onReport func(Report), logger *zap.Logger) *Regenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onReport == nil {
		onReport = func(Report) {}
	}
	return &Regenerator{
		generator: generator,
		request:   req,
		debounce:  debounce,
		logger:    logger,
		onReport:  onReport,
	}
}

// Run generates once, then watches until ctx is done. Only a failure to set up the watcher
// ends Run early; failed generations are reported and watching continues.
func (r *Regenerator) Run(ctx context.Context) error {
	r.generate(ctx, nil)

	fw, err := NewFileWatcher(Targets{
		Subset:         r.request.SubsetPath,
		ModelDirectory: r.request.ModelDirectory,
	}, r.debounce, func(files []string) error {
		r.generate(ctx, files)
		return nil
	}, r.logger)
	if err != nil {
		return err
	}
	if err := fw.Start(); err != nil {
		fw.Stop()
		return err
	}

	<-ctx.Done()
	return fw.Stop()
}

func (r *Regenerator) generate(ctx context.Context, changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if len(changed) > 0 {
		r.logger.Info("inputs changed, regenerating", zap.Strings("files", changed))
	}
	result, err := r.generator.Generate(ctx, r.request)
	if err != nil {
		r.logger.Error("generation failed", zap.String("subset", r.request.SubsetPath), zap.Error(err))
	}
	r.onReport(Report{Changed: changed, Result: result, Err: err})
}
