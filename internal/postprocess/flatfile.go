package postprocess

import (
	"context"

	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/tabular"
)

// Unit is one staged CSV file and where its template goes
type Unit struct {
	Staged   string
	Dest     string
	Resolver AttributeResolver
}

// FlatFile applies the shared enrichments to staged CSV files
type FlatFile struct {
	opts   Options
	logger *zap.Logger
}

// NewFlatFile creates a CSV post-processor. Choice lists do not apply to CSV.
func NewFlatFile(opts Options, logger *zap.Logger) *FlatFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.ChoiceLists = false
	return &FlatFile{opts: opts, logger: logger}
}

// Process rewrites every unit, one unit of work per file
func (p *FlatFile) Process(ctx context.Context, runner Runner, units []Unit) error {
	return runner.Run(ctx, len(units), func(ctx context.Context, i int) error {
		return p.processUnit(units[i])
	})
}

func (p *FlatFile) processUnit(u Unit) error {
	records, err := tabular.ReadCSVFile(u.Staged)
	if err != nil {
		return err
	}
	layout := BuildLayout(tabular.FromRecords(records), u.Resolver, p.opts, p.logger)
	if err := tabular.WriteCSVFile(u.Dest, layout.Records()); err != nil {
		return err
	}
	p.logger.Debug("csv written",
		zap.String("path", u.Dest),
		zap.Int("columns", len(layout.Header)),
		zap.Int("rows", len(layout.Rows)))
	return nil
}
