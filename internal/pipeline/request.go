// Package pipeline runs a template generation: load the subset, synthesize placeholder
// instances, stage the flattened tables, post-process them and commit the outputs.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for destinations that are neither workbooks nor CSV
var ErrUnsupportedFormat = errors.New("unsupported template format")

// Format is the output branch selected by the destination extension
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// FormatOf returns the format for a destination path
func FormatOf(dest string) (Format, error) {
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(dest))
	}
}

// TemplateRequest configures one generation run
type TemplateRequest struct {
	SubsetPath  string
	Destination string

	IgnoreRelations  bool
	FilterAttributes bool
	// ClassURIs restricts the classes; nil means all, empty means none
	ClassURIs      []string
	DummyRows      int
	AddGeometry    bool
	AttributeInfo  bool
	TagDeprecated  bool
	ChoiceLists    bool
	SplitPerType   bool
	ModelDirectory string
	// Seed makes placeholder values reproducible; zero picks a time based seed
	Seed int64
}

// DefaultRequest returns a request with every option at its default
func DefaultRequest(subset, dest string) TemplateRequest {
	return TemplateRequest{
		SubsetPath:       subset,
		Destination:      dest,
		IgnoreRelations:  true,
		FilterAttributes: true,
		DummyRows:        1,
		AddGeometry:      true,
		ChoiceLists:      true,
		SplitPerType:     true,
	}
}

// Validate checks the request before anything is read or written
func (r TemplateRequest) Validate() error {
	if r.SubsetPath == "" {
		return errors.New("subset path is required")
	}
	if r.Destination == "" {
		return errors.New("destination is required")
	}
	if r.DummyRows < 0 {
		return fmt.Errorf("dummy rows must be >= 0, got %d", r.DummyRows)
	}
	_, err := FormatOf(r.Destination)
	return err
}
