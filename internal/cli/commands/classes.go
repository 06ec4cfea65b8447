package commands

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/cli/ui"
	"github.com/otl-tools/otltemplate/internal/model"
	"github.com/otl-tools/otltemplate/internal/pipeline"
)

// NewClassesCommand creates the classes command
func NewClassesCommand(opts *globalOptions) *cobra.Command {
	var (
		all    bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "classes SUBSET",
		Short: "List the classes of a subset",
		Long: `List the concrete classes of an OTL subset together with their attribute
counts. Use the printed URIs with --class to restrict a template.

Examples:
  otltemplate classes subset.db
  otltemplate classes subset.db --all --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := opts.settings()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := runContext(cmd)
			defer stop()

			cat, err := catalog.Load(ctx, args[0], logger)
			if err != nil {
				return err
			}
			classes := pipeline.ListClasses(cat, all)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(classes)
			}
			if opts.quiet {
				for _, cl := range classes {
					fmt.Fprintln(out, cl.URI)
				}
				return nil
			}

			rows := make([]ui.ClassRow, len(classes))
			for i, cl := range classes {
				rows[i] = ui.ClassRow{
					Class:      model.ShortURI(cl.URI),
					Attributes: cl.Attributes,
					Kind:       classKind(cl),
					Deprecated: cl.Deprecated,
				}
			}
			ui.WriteClasses(out, rows, color.NoColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include abstract classes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the classes as JSON")
	return cmd
}

func classKind(cl pipeline.ClassInfo) string {
	switch {
	case cl.Abstract:
		return "abstract"
	case cl.Relation:
		return "relation"
	default:
		return "class"
	}
}
