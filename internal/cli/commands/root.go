package commands

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/cli/config"
	"github.com/otl-tools/otltemplate/internal/cli/ui"
	"github.com/otl-tools/otltemplate/internal/pipeline"
	"github.com/otl-tools/otltemplate/internal/synth"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configFile string
	verbose    bool
	noColor    bool
	quiet      bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "otltemplate",
		Short: "Generate OTL data-entry templates from a subset",
		Long: color.CyanString(`otltemplate - OTL subset template generator

Reads an OTL subset (SQLite database or YAML) and writes data-entry templates
for its classes: an Excel workbook with one sheet per class, or CSV files.

Templates can carry:
  • Example rows with placeholder values
  • Attribute descriptions and deprecation markers
  • Drop-down choice lists for enumerated attributes`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Configuration file (default ./otltemplate.yaml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Show debug logging")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print produced paths")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewGenerateCommand(opts))
	rootCmd.AddCommand(NewClassesCommand(opts))
	rootCmd.AddCommand(NewWatchCommand(opts))
	rootCmd.AddCommand(NewServeCommand(opts))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the otltemplate version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			new(ui.Summary).
				Add("otltemplate version", Version).
				Add("Git commit", GitCommit).
				Add("Build date", BuildDate).
				Add("Go version", goVer).
				Write(cmd.OutOrStdout(), color.NoColor)
		},
	}
}

// settings loads the configuration and builds the logger for a command
func (o *globalOptions) settings() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, &configError{err: err}
	}
	logger, err := newLogger(cfg.Log.Level, o.verbose)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newLogger returns a development logger when verbose, otherwise a console logger on
// stderr at level
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	return cfg.Build()
}

// configError marks failures to load the configuration
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// describeError renders err the way the CLI shows failures
func describeError(err error, noColor bool) string {
	var cfgErr *configError
	var loadErr *catalog.LoadError
	var genErr *synth.GenerationError
	switch {
	case errors.As(err, &cfgErr):
		return ui.ConfigError(cfgErr.Error(), noColor)
	case errors.As(err, &loadErr), errors.As(err, &genErr), errors.Is(err, pipeline.ErrUnsupportedFormat):
		return ui.GenerationError(err, noColor)
	}

	errorColor := color.New(color.FgRed, color.Bold)
	if noColor {
		errorColor.DisableColor()
	}
	return errorColor.Sprintf("Error: %v\n", err)
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		noColor, _ := rootCmd.PersistentFlags().GetBool("no-color")
		fmt.Fprint(rootCmd.ErrOrStderr(), describeError(err, noColor || color.NoColor))
		return err
	}
	return nil
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}

// Main runs the CLI and exits with a status derived from the error
func Main() {
	os.Exit(exitCode(Execute()))
}
