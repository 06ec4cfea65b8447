package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/pipeline"
	"github.com/otl-tools/otltemplate/internal/synth"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized message with suggestions and help commands
//
// Example output:
//
//	⚠️ CLASS NOT IN SUBSET: onderdeel#Camra
//	   The class is skipped.
//
//	   Did you mean: onderdeel#Camera?
//
//	   → List classes: otltemplate classes subset.db
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string

	switch opts.Level {
	case ErrorLevelError:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "❌"
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "ℹ️"
	}

	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if opts.Consequence != "" {
		b.WriteString("\n")
		bodyColor.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow := color.New(color.FgYellow)
		if opts.NoColor {
			yellow.DisableColor()
		}
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// UnknownClassWarning reports a filter URI that names no class of the subset
func UnknownClassWarning(uri, subset string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelWarning,
		Context:     "CLASS NOT IN SUBSET",
		Problem:     uri,
		Consequence: "The class is skipped.",
		Suggestions: suggestions,
		HelpCommands: []string{
			"List classes: otltemplate classes " + subset,
		},
		NoColor: noColor,
	})
}

// GenerationError renders a failed run, with hints chosen by the kind of failure
func GenerationError(err error, noColor bool) string {
	opts := ErrorOptions{
		Level:   ErrorLevelError,
		Context: "GENERATION FAILED",
		Problem: err.Error(),
		NoColor: noColor,
	}

	var loadErr *catalog.LoadError
	var genErr *synth.GenerationError
	switch {
	case errors.As(err, &loadErr):
		opts.Context = "SUBSET UNREADABLE"
		opts.Consequence = "No template was written."
		opts.HelpCommands = []string{
			"Check the subset: otltemplate classes " + loadErr.Source,
		}
	case errors.As(err, &genErr):
		opts.Consequence = "Placeholder identifiers kept colliding; try another --seed."
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		opts.Context = "UNSUPPORTED FORMAT"
		opts.Suggestions = []string{".xlsx", ".csv"}
	}
	opts.HelpCommands = append(opts.HelpCommands, "Get help: otltemplate generate --help")
	return FormatError(opts)
}

// ConfigError creates a standardized configuration error
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "CONFIGURATION ERROR",
		Problem: message,
		HelpCommands: []string{
			"View config: cat otltemplate.yaml",
			"Get help: otltemplate --help",
		},
		NoColor: noColor,
	})
}

// Warning creates a standardized warning message
func Warning(message string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelWarning,
		Problem:     message,
		Suggestions: suggestions,
		NoColor:     noColor,
	})
}

// Info creates a standardized info message
func Info(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelInfo,
		Problem: message,
		NoColor: noColor,
	})
}
