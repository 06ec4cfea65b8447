package ui

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/pipeline"
	"github.com/otl-tools/otltemplate/internal/synth"
)

func TestFormatError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		opts     ErrorOptions
		contains []string
	}{
		{
			name: "basic error",
			opts: ErrorOptions{
				Level:   ErrorLevelError,
				Context: "subset unreadable",
				Problem: "no such file",
			},
			contains: []string{"❌", "SUBSET UNREADABLE: no such file"},
		},
		{
			name: "suggestions",
			opts: ErrorOptions{
				Level:       ErrorLevelWarning,
				Problem:     "onderdeel#Camra",
				Suggestions: []string{"onderdeel#Camera"},
			},
			contains: []string{"⚠️", "Did you mean: onderdeel#Camera?"},
		},
		{
			name: "help commands",
			opts: ErrorOptions{
				Level:        ErrorLevelInfo,
				Problem:      "nothing to do",
				HelpCommands: []string{"List classes: otltemplate classes subset.db"},
			},
			contains: []string{"ℹ️", "→ List classes: otltemplate classes subset.db"},
		},
		{
			name: "consequence",
			opts: ErrorOptions{
				Level:       ErrorLevelError,
				Problem:     "boom",
				Consequence: "No template was written.",
			},
			contains: []string{"   No template was written."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.NoColor = true
			result := FormatError(tt.opts)
			for _, expected := range tt.contains {
				if !strings.Contains(result, expected) {
					t.Errorf("Expected output to contain %q, got:\n%s", expected, result)
				}
			}
		})
	}
}

func TestUnknownClassWarning(t *testing.T) {
	result := UnknownClassWarning("https://x/onderdeel#Camra", "subset.db", []string{"onderdeel#Camera"}, true)

	for _, want := range []string{
		"CLASS NOT IN SUBSET: https://x/onderdeel#Camra",
		"The class is skipped.",
		"Did you mean: onderdeel#Camera?",
		"otltemplate classes subset.db",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("Expected %q in:\n%s", want, result)
		}
	}
}

func TestGenerationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "load error",
			err:  fmt.Errorf("run: %w", &catalog.LoadError{Source: "subset.db", Err: errors.New("not a database")}),
			want: []string{"SUBSET UNREADABLE", "No template was written.", "otltemplate classes subset.db"},
		},
		{
			name: "identifier collisions",
			err:  &synth.GenerationError{Attempts: 5, Duplicate: "abc"},
			want: []string{"GENERATION FAILED", "--seed"},
		},
		{
			name: "unsupported format",
			err:  fmt.Errorf("%w: %q", pipeline.ErrUnsupportedFormat, ".json"),
			want: []string{"UNSUPPORTED FORMAT", "Did you mean: .xlsx, .csv?"},
		},
		{
			name: "anything else",
			err:  errors.New("disk full"),
			want: []string{"GENERATION FAILED: disk full", "otltemplate generate --help"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerationError(tt.err, true)
			for _, want := range tt.want {
				if !strings.Contains(result, want) {
					t.Errorf("Expected %q in:\n%s", want, result)
				}
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, ErrorOptions{Level: ErrorLevelError, Problem: "boom", NoColor: true})

	if !strings.Contains(buf.String(), "❌ boom") {
		t.Errorf("Expected written error, got: %q", buf.String())
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "template.xlsx", true)

	if buf.String() != "✓ template.xlsx\n" {
		t.Errorf("Expected success line, got: %q", buf.String())
	}
}

func TestConfigError(t *testing.T) {
	result := ConfigError("workers must be >= 0", true)
	if !strings.Contains(result, "CONFIGURATION ERROR: workers must be >= 0") {
		t.Errorf("Expected config error header, got:\n%s", result)
	}
	if !strings.Contains(result, "cat otltemplate.yaml") {
		t.Errorf("Expected config help command, got:\n%s", result)
	}
}

func TestWarningAndInfo(t *testing.T) {
	if got := Warning("zero classes in scope", nil, true); !strings.Contains(got, "⚠️ zero classes in scope") {
		t.Errorf("unexpected warning: %q", got)
	}
	if got := Info("regenerating", true); !strings.Contains(got, "ℹ️ regenerating") {
		t.Errorf("unexpected info: %q", got)
	}
}
