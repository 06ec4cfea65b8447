// Package postprocess turns staged tables into the final templates: optional description and
// deprecation rows, geometry removal, example trimming and, for workbooks, dropdown validation
// backed by a shared choice list sheet.
package postprocess

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/model"
	"github.com/otl-tools/otltemplate/internal/tabular"
)

// DeprecatedMarker is written in the deprecation row under deprecated columns
const DeprecatedMarker = "DEPRECATED"

// Options select the enrichments
type Options struct {
	// Rows is the requested example row count; zero drops every data row
	Rows          int
	Geometry      bool
	AttributeInfo bool
	TagDeprecated bool
	ChoiceLists   bool
}

// Runner schedules n independent units of work
type Runner interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

// AttributeResolver resolves column paths to attribute descriptors
type AttributeResolver interface {
	Lookup(path string) (*catalog.AttributeDescriptor, error)
}

// CompositeResolver resolves a path against the first resolver that knows it. It serves
// tables mixing several types.
type CompositeResolver []AttributeResolver

// Lookup returns the first successful resolution, or the first error
func (c CompositeResolver) Lookup(path string) (*catalog.AttributeDescriptor, error) {
	var firstErr error
	for _, r := range c {
		attr, err := r.Lookup(path)
		if err == nil {
			return attr, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = &model.AttributeResolutionError{Path: path}
	}
	return nil, firstErr
}

// Layout is one output unit with its rows stacked top to bottom: description row,
// deprecation row, header, data rows. The optional rows are nil when absent.
type Layout struct {
	TypeURI     string
	Header      []string
	Attributes  []*catalog.AttributeDescriptor
	Description []string
	Deprecation []string
	Rows        [][]string
}

// HeaderRow returns the 1-based row number of the header
func (l *Layout) HeaderRow() int {
	row := 1
	if l.Description != nil {
		row++
	}
	if l.Deprecation != nil {
		row++
	}
	return row
}

// FirstDataRow returns the 1-based row number of the first data row
func (l *Layout) FirstDataRow() int {
	return l.HeaderRow() + 1
}

// Records returns every row in output order
func (l *Layout) Records() [][]string {
	var out [][]string
	if l.Description != nil {
		out = append(out, l.Description)
	}
	if l.Deprecation != nil {
		out = append(out, l.Deprecation)
	}
	out = append(out, l.Header)
	return append(out, l.Rows...)
}

// BuildLayout applies the shared enrichments to a staged table. Columns that do not resolve
// get an empty description and are never tagged. With TagDeprecated every sheet gets the
// deprecation row, blank when no column is deprecated, so the header sits on the same row
// in all sheets.
func BuildLayout(t *tabular.Table, resolver AttributeResolver, opts Options, logger *zap.Logger) *Layout {
	if logger == nil {
		logger = zap.NewNop()
	}

	keep := make([]int, 0, len(t.Header))
	for i, h := range t.Header {
		if !opts.Geometry && h == model.GeometryPath {
			continue
		}
		keep = append(keep, i)
	}

	l := &Layout{TypeURI: t.TypeURI}
	l.Header = pick(t.Header, keep)
	if opts.Rows > 0 {
		for _, r := range t.Rows {
			l.Rows = append(l.Rows, pick(r, keep))
		}
	}

	enrich := opts.AttributeInfo || opts.TagDeprecated || opts.ChoiceLists
	l.Attributes = make([]*catalog.AttributeDescriptor, len(l.Header))
	for i, h := range l.Header {
		attr, err := resolver.Lookup(h)
		if err != nil {
			if enrich {
				logger.Warn("column does not resolve, leaving it unenriched",
					zap.String("class", t.TypeURI),
					zap.String("path", h),
					zap.Error(err))
			}
			continue
		}
		l.Attributes[i] = attr
	}

	if opts.AttributeInfo {
		l.Description = make([]string, len(l.Header))
		for i, attr := range l.Attributes {
			if attr != nil {
				l.Description[i] = attr.Definition
			}
		}
	}

	if opts.TagDeprecated {
		l.Deprecation = make([]string, len(l.Header))
		for i, h := range l.Header {
			if deprecatedPath(resolver, h) {
				l.Deprecation[i] = DeprecatedMarker
			}
		}
	}
	return l
}

func pick(values []string, keep []int) []string {
	out := make([]string, len(keep))
	for i, idx := range keep {
		if idx < len(values) {
			out[i] = values[idx]
		}
	}
	return out
}

// deprecatedPath reports whether the attribute at path, or any attribute containing it, is
// deprecated
func deprecatedPath(resolver AttributeResolver, path string) bool {
	segs := strings.Split(path, model.PathSeparator)
	for i := range segs {
		attr, err := resolver.Lookup(strings.Join(segs[:i+1], model.PathSeparator))
		if err != nil {
			return false
		}
		if attr.Deprecated() {
			return true
		}
	}
	return false
}
