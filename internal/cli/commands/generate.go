package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/cli/config"
	"github.com/otl-tools/otltemplate/internal/cli/ui"
	"github.com/otl-tools/otltemplate/internal/model"
	"github.com/otl-tools/otltemplate/internal/pipeline"
)

// generateFlags are the template options shared by generate and watch
type generateFlags struct {
	classes          []string
	noClasses        bool
	rows             int
	geometry         bool
	attributeInfo    bool
	tagDeprecated    bool
	choiceList       bool
	split            bool
	ignoreRelations  bool
	filterAttributes bool
	modelDir         string
	workers          int
	seed             int64
}

func (f *generateFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringArrayVar(&f.classes, "class", nil, "Class URI to include (repeatable, default all classes)")
	fs.BoolVar(&f.noClasses, "no-classes", false, "Include no classes at all")
	fs.IntVar(&f.rows, "dummy-rows", 1, "Number of example rows per class")
	fs.BoolVar(&f.geometry, "geometry", true, "Add a geometry column to classes that have one")
	fs.BoolVar(&f.attributeInfo, "attribute-info", false, "Add a row with attribute descriptions")
	fs.BoolVar(&f.tagDeprecated, "tag-deprecated", false, "Add a row marking deprecated attributes")
	fs.BoolVar(&f.choiceList, "choice-list", true, "Add drop-down choice lists (workbooks only)")
	fs.BoolVar(&f.split, "split", true, "Write one CSV file per class")
	fs.BoolVar(&f.ignoreRelations, "ignore-relations", true, "Leave relation classes out")
	fs.BoolVar(&f.filterAttributes, "filter-attributes", true, "Only use attributes the subset declares")
	fs.StringVar(&f.modelDir, "model-dir", "", "Directory with YAML class definitions that override the subset")
	fs.IntVar(&f.workers, "workers", 0, "Worker goroutines (0 runs synchronously)")
	fs.Int64Var(&f.seed, "seed", 0, "Seed for placeholder values (0 picks one)")
}

// request applies the flags that were set explicitly on top of the configuration
func (f *generateFlags) request(cmd *cobra.Command, cfg *config.Config, subset, dest string) (pipeline.TemplateRequest, int) {
	req := cfg.Request(subset, dest)
	workers := cfg.Workers
	changed := cmd.Flags().Changed

	if changed("class") {
		req.ClassURIs = append([]string{}, f.classes...)
	}
	if f.noClasses {
		req.ClassURIs = []string{}
	}
	if changed("dummy-rows") {
		req.DummyRows = f.rows
	}
	if changed("geometry") {
		req.AddGeometry = f.geometry
	}
	if changed("attribute-info") {
		req.AttributeInfo = f.attributeInfo
	}
	if changed("tag-deprecated") {
		req.TagDeprecated = f.tagDeprecated
	}
	if changed("choice-list") {
		req.ChoiceLists = f.choiceList
	}
	if changed("split") {
		req.SplitPerType = f.split
	}
	if changed("ignore-relations") {
		req.IgnoreRelations = f.ignoreRelations
	}
	if changed("filter-attributes") {
		req.FilterAttributes = f.filterAttributes
	}
	if changed("model-dir") {
		req.ModelDirectory = f.modelDir
	}
	if changed("workers") {
		workers = f.workers
	}
	if changed("seed") {
		req.Seed = f.seed
	}
	return req, workers
}

// NewGenerateCommand creates the generate command
func NewGenerateCommand(opts *globalOptions) *cobra.Command {
	flags := &generateFlags{}
	var interactive bool

	cmd := &cobra.Command{
		Use:     "generate SUBSET DEST",
		Aliases: []string{"g"},
		Short:   "Generate a template for a subset",
		Long: `Generate a data-entry template for the classes of an OTL subset.

The destination extension selects the output: .xlsx writes one workbook with a
sheet per class, .csv writes one file per class (or a single file with --split=false).

Examples:
  otltemplate generate subset.db template.xlsx
  otltemplate generate subset.db template.csv --dummy-rows 0 --attribute-info
  otltemplate generate subset.db template.xlsx --class https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#Camera
  otltemplate generate subset.db template.xlsx --interactive`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.settings()
			if err != nil {
				return err
			}
			defer logger.Sync()

			req, workers := flags.request(cmd, cfg, args[0], args[1])
			if err := req.Validate(); err != nil {
				return err
			}

			ctx, stop := runContext(cmd)
			defer stop()

			cat, err := catalog.Load(ctx, req.SubsetPath, logger)
			if err != nil {
				return err
			}

			if interactive {
				if req.ClassURIs, err = pickClasses(cat, req); err != nil {
					return err
				}
			}
			warnUnknownClasses(cmd.ErrOrStderr(), cat, req)

			generator := pipeline.NewGenerator(pipeline.NewExecutor(workers, logger), logger)
			var result *pipeline.Result
			quiet := opts.quiet || color.NoColor
			err = ui.WithSpinner(cmd.ErrOrStderr(), "Generating templates", color.NoColor, quiet, func() error {
				result, err = generator.GenerateFromCatalog(ctx, cat, req)
				return err
			})
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), result, opts.quiet)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Pick the classes interactively")
	return cmd
}

// pickClasses asks which concrete classes to include, preselecting the current filter
func pickClasses(cat *catalog.Catalog, req pipeline.TemplateRequest) ([]string, error) {
	uris, err := pipeline.Selectable(cat, req)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(uris))
	offered := make(map[string]bool, len(uris))
	for i, uri := range uris {
		labels[i] = model.ShortURI(uri)
		offered[uri] = true
	}

	var defaults []string
	for _, cl := range cat.ConcreteClasses(req.ClassURIs) {
		if offered[cl.URI] {
			defaults = append(defaults, model.ShortURI(cl.URI))
		}
	}

	var picked []int
	prompt := &survey.MultiSelect{
		Message:  "Classes to include:",
		Options:  labels,
		Default:  defaults,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &picked); err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(picked))
	for _, i := range picked {
		selected = append(selected, uris[i])
	}
	return selected, nil
}

// warnUnknownClasses reports filter URIs that name no class of the subset
func warnUnknownClasses(w io.Writer, cat *catalog.Catalog, req pipeline.TemplateRequest) {
	for _, uri := range req.ClassURIs {
		if _, ok := cat.Class(uri); ok {
			continue
		}
		fmt.Fprint(w, ui.UnknownClassWarning(uri, req.SubsetPath, ui.SimilarClasses(uri, cat.URIs(), nil), color.NoColor))
	}
}

func printResult(w io.Writer, result *pipeline.Result, quiet bool) {
	if quiet {
		for _, out := range result.Outputs {
			fmt.Fprintln(w, out)
		}
		return
	}

	if len(result.Outputs) == 0 {
		fmt.Fprint(w, ui.Warning("No classes in scope, nothing was written.", nil, color.NoColor))
		return
	}
	for _, out := range result.Outputs {
		ui.WriteSuccess(w, out, color.NoColor)
	}

	summary := new(ui.Summary).
		Add("Run", result.RunID).
		Add("Seed", strconv.FormatInt(result.Seed, 10)).
		Add("Classes", strconv.Itoa(len(result.Classes)))
	if result.Format == pipeline.FormatXLSX {
		summary.Add("Choice lists", strconv.Itoa(result.ChoiceLists))
	}
	summary.Write(w, color.NoColor)
}

// runContext returns a context cancelled on interrupt
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func logFields(req pipeline.TemplateRequest) []zap.Field {
	return []zap.Field{
		zap.String("subset", req.SubsetPath),
		zap.String("destination", req.Destination),
	}
}
