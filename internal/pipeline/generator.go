package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/model"
	"github.com/otl-tools/otltemplate/internal/postprocess"
	"github.com/otl-tools/otltemplate/internal/synth"
	"github.com/otl-tools/otltemplate/internal/tabular"
)

// Result describes a finished run
type Result struct {
	RunID       string
	Seed        int64
	Format      Format
	Classes     []string
	Outputs     []string
	ChoiceLists int
}

// Generator runs template generations
type Generator struct {
	executor    Executor
	logger      *zap.Logger
	stagingRoot string
}

// NewGenerator creates a generator. A nil executor runs synchronously.
func NewGenerator(executor Executor, logger *zap.Logger) *Generator {
	if executor == nil {
		executor = SyncExecutor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{executor: executor, logger: logger}
}

// WithStagingRoot sets the directory that receives run directories
func (g *Generator) WithStagingRoot(root string) *Generator {
	g.stagingRoot = root
	return g
}

// Generate loads the subset of req and produces its templates
func (g *Generator) Generate(ctx context.Context, req TemplateRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cat, err := catalog.Load(ctx, req.SubsetPath, g.logger)
	if err != nil {
		return nil, err
	}
	if err := g.executor.Yield(ctx); err != nil {
		return nil, err
	}
	return g.GenerateFromCatalog(ctx, cat, req)
}

// GenerateFromCatalog produces the templates of req from an already loaded catalog
func (g *Generator) GenerateFromCatalog(ctx context.Context, cat *catalog.Catalog, req TemplateRequest) (*Result, error) {
	format, err := FormatOf(req.Destination)
	if err != nil {
		return nil, err
	}
	if req.DummyRows < 0 {
		return nil, fmt.Errorf("dummy rows must be >= 0, got %d", req.DummyRows)
	}

	var directory *model.Directory
	if req.ModelDirectory != "" {
		if directory, err = model.LoadDirectory(req.ModelDirectory); err != nil {
			return nil, err
		}
	}
	resolver := model.NewResolver(cat, directory, g.logger)

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	result := &Result{Seed: seed, Format: format}

	instances, err := synth.New(cat, resolver, g.logger).Synthesize(ctx, g.executor, synth.Options{
		IgnoreRelations:  req.IgnoreRelations,
		FilterAttributes: req.FilterAttributes,
		ClassFilter:      req.ClassURIs,
		Rows:             req.DummyRows,
		Geometry:         req.AddGeometry,
		Seed:             seed,
	})
	if err != nil {
		return nil, err
	}
	if err := g.executor.Yield(ctx); err != nil {
		return nil, err
	}

	tables := tabular.Group(instances)
	if len(tables) == 0 {
		g.logger.Warn("no classes in scope, nothing written", zap.String("subset", cat.Source()))
		return result, nil
	}
	for _, t := range tables {
		result.Classes = append(result.Classes, t.TypeURI)
	}

	stage, err := NewStage(g.stagingRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := stage.Cleanup(); err != nil {
			g.logger.Warn("failed to remove staging directory", zap.String("dir", stage.Dir), zap.Error(err))
		}
	}()
	result.RunID = stage.RunID

	opts := postprocess.Options{
		Rows:          req.DummyRows,
		Geometry:      req.AddGeometry,
		AttributeInfo: req.AttributeInfo,
		TagDeprecated: req.TagDeprecated,
		ChoiceLists:   req.ChoiceLists,
	}

	var commits []commit
	switch format {
	case FormatXLSX:
		commits, err = g.spreadsheet(ctx, stage, tables, resolver, opts, req, result)
	case FormatCSV:
		commits, err = g.flatFiles(ctx, stage, tables, resolver, opts, req)
	}
	if err != nil {
		return nil, err
	}

	for _, c := range commits {
		if err := stage.Commit(c.staged, c.dest); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, c.dest)
	}

	g.logger.Info("templates generated",
		zap.String("run", result.RunID),
		zap.Int("classes", len(result.Classes)),
		zap.Strings("outputs", result.Outputs))
	return result, nil
}

type commit struct {
	staged string
	dest   string
}

// spreadsheet writes one workbook with a sheet per type, whatever the split flag says
func (g *Generator) spreadsheet(ctx context.Context, stage *Stage, tables []*tabular.Table, resolver *model.Resolver,
	opts postprocess.Options, req TemplateRequest, result *Result) ([]commit, error) {
	staged := stage.Path("staged.xlsx")
	if err := tabular.WriteWorkbook(staged, tables); err != nil {
		return nil, err
	}
	if err := g.executor.Yield(ctx); err != nil {
		return nil, err
	}

	out := stage.Path("template.xlsx")
	registry, err := postprocess.NewSpreadsheet(opts, resolver.Type, g.logger).Process(ctx, g.executor, staged, out)
	if err != nil {
		return nil, err
	}
	result.ChoiceLists = registry.Len()
	return []commit{{staged: out, dest: req.Destination}}, nil
}

// flatFiles writes one CSV per type when splitting, one interleaved CSV otherwise
func (g *Generator) flatFiles(ctx context.Context, stage *Stage, tables []*tabular.Table, resolver *model.Resolver,
	opts postprocess.Options, req TemplateRequest) ([]commit, error) {
	var units []postprocess.Unit
	var commits []commit

	if req.SplitPerType {
		for i, t := range tables {
			typ, err := resolver.Type(t.TypeURI)
			if err != nil {
				return nil, err
			}
			units = append(units, postprocess.Unit{
				Staged:   stage.Path(fmt.Sprintf("staged-%d.csv", i)),
				Dest:     stage.Path(fmt.Sprintf("template-%d.csv", i)),
				Resolver: typ,
			})
			commits = append(commits, commit{
				staged: units[i].Dest,
				dest:   tabular.SplitPath(req.Destination, t.TypeURI),
			})
			if err := tabular.WriteCSVFile(units[i].Staged, t.Records()); err != nil {
				return nil, err
			}
			if err := g.executor.Yield(ctx); err != nil {
				return nil, err
			}
		}
	} else {
		composite := make(postprocess.CompositeResolver, 0, len(tables))
		for _, t := range tables {
			typ, err := resolver.Type(t.TypeURI)
			if err != nil {
				return nil, err
			}
			composite = append(composite, typ)
		}
		unit := postprocess.Unit{
			Staged:   stage.Path("staged.csv"),
			Dest:     stage.Path("template.csv"),
			Resolver: composite,
		}
		if err := tabular.WriteCSVFile(unit.Staged, tabular.Merge(tables).Records()); err != nil {
			return nil, err
		}
		units = append(units, unit)
		commits = append(commits, commit{staged: unit.Dest, dest: req.Destination})
	}

	if err := postprocess.NewFlatFile(opts, g.logger).Process(ctx, g.executor, units); err != nil {
		return nil, err
	}
	return commits, nil
}
