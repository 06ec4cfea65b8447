package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/cli/ui"
	"github.com/otl-tools/otltemplate/internal/pipeline"
	"github.com/otl-tools/otltemplate/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand(opts *globalOptions) *cobra.Command {
	flags := &generateFlags{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch SUBSET DEST",
		Short: "Regenerate a template whenever the subset changes",
		Long: `Generate a template, then keep watching the subset (and the --model-dir
directory, if any) and regenerate it on every change. Stop with Ctrl+C.

Examples:
  otltemplate watch subset.db template.xlsx
  otltemplate watch subset.db template.csv --model-dir model/ --debounce 1s`,
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
			if cmd.Flags().Changed("debounce") {
				if debounce < 0 {
					return fmt.Errorf("debounce must be >= 0, got %s", debounce)
				}
				cfg.Watch.Debounce = debounce
			}

			ctx, stop := runContext(cmd)
			defer stop()

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			report := func(r watch.Report) {
				if r.Err != nil {
					fmt.Fprint(errOut, describeError(r.Err, color.NoColor))
					return
				}
				printResult(out, r.Result, opts.quiet)
			}

			logger.Info("watching subset", append(logFields(req), zap.Duration("debounce", cfg.Watch.Debounce))...)
			if !opts.quiet {
				fmt.Fprint(errOut, ui.Info(fmt.Sprintf("Watching %s, press Ctrl+C to stop", req.SubsetPath), color.NoColor))
			}

			generator := pipeline.NewGenerator(pipeline.NewExecutor(workers, logger), logger)
			regen := watch.NewRegenerator(generator, req, cfg.Watch.Debounce, report, logger)
			return regen.Run(ctx)
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before regenerating")
	return cmd
}
