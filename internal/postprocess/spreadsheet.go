package postprocess

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/model"
	"github.com/otl-tools/otltemplate/internal/tabular"
)

const (
	// ValidationLastRow bounds the rows covered by dropdown validation
	ValidationLastRow = 1000
	// ColumnWidth is applied to every column
	ColumnWidth = 25
	// DescriptionFill shades the description row
	DescriptionFill = "808080"
)

// booleanChoices is the tri-state dropdown of boolean columns
var booleanChoices = []string{"TRUE", "FALSE", ""}

// TypeResolver returns the object type of a class URI
type TypeResolver func(uri string) (*model.Type, error)

// Spreadsheet rebuilds a staged workbook into the final template
type Spreadsheet struct {
	opts   Options
	types  TypeResolver
	logger *zap.Logger
}

// NewSpreadsheet creates a spreadsheet post-processor
func NewSpreadsheet(opts Options, types TypeResolver, logger *zap.Logger) *Spreadsheet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spreadsheet{opts: opts, types: types, logger: logger}
}

type sheetLayout struct {
	title  string
	typ    *model.Type
	layout *Layout
}

// Process reads the workbook at staged and writes the template to dest. Sheet layouts are
// built as separate units on runner; sheets are then rendered in staged order so choice
// list columns are assigned deterministically. It returns the choice list registry used.
func (p *Spreadsheet) Process(ctx context.Context, runner Runner, staged, dest string) (*ChoiceListRegistry, error) {
	sheets, err := tabular.ReadWorkbook(staged)
	if err != nil {
		return nil, err
	}

	layouts := make([]sheetLayout, len(sheets))
	err = runner.Run(ctx, len(sheets), func(ctx context.Context, i int) error {
		s := sheets[i]
		typ, err := p.types(s.Table.TypeURI)
		if err != nil {
			return fmt.Errorf("failed to resolve sheet %s: %w", s.Title, err)
		}
		layouts[i] = sheetLayout{title: s.Title, typ: typ, layout: BuildLayout(s.Table, typ, p.opts, p.logger)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	registry := NewChoiceListRegistry()
	for i, sl := range layouts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := tabular.AddSheet(f, i, sl.title); err != nil {
			return nil, err
		}
		if err := p.render(f, sl, registry); err != nil {
			return nil, err
		}
	}

	if p.opts.ChoiceLists {
		if err := writeChoiceLists(f, registry); err != nil {
			return nil, err
		}
	}

	if err := f.SaveAs(dest); err != nil {
		return nil, fmt.Errorf("failed to save workbook %s: %w", dest, err)
	}
	p.logger.Debug("workbook written",
		zap.String("path", dest),
		zap.Int("sheets", len(layouts)),
		zap.Int("choice_lists", registry.Len()))
	return registry, nil
}

func (p *Spreadsheet) render(f *excelize.File, sl sheetLayout, registry *ChoiceListRegistry) error {
	l := sl.layout
	sheet := sl.title

	row := 1
	if l.Description != nil {
		if err := tabular.WriteRecords(f, sheet, row, l.Description); err != nil {
			return err
		}
		if err := p.shadeDescription(f, sheet, len(l.Header)); err != nil {
			return err
		}
		row++
	}
	if l.Deprecation != nil {
		if err := tabular.WriteRecords(f, sheet, row, l.Deprecation); err != nil {
			return err
		}
		row++
	}
	if err := tabular.WriteRecords(f, sheet, row, l.Header); err != nil {
		return err
	}
	row++

	typed := &tabular.Table{TypeURI: l.TypeURI, Type: sl.typ, Header: l.Header}
	for _, r := range l.Rows {
		if err := tabular.WriteRow(f, sheet, row, typed, r); err != nil {
			return err
		}
		row++
	}

	if len(l.Header) > 0 {
		last, err := excelize.ColumnNumberToName(len(l.Header))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, "A", last, ColumnWidth); err != nil {
			return fmt.Errorf("failed to set column width on %s: %w", sheet, err)
		}
	}

	return p.validate(f, sheet, l, registry)
}

func (p *Spreadsheet) shadeDescription(f *excelize.File, sheet string, columns int) error {
	if columns == 0 {
		return nil
	}
	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{DescriptionFill}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("failed to create description style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

// validate adds the dropdowns. They cover the data rows below the header up to
// ValidationLastRow. Repeated columns get none.
func (p *Spreadsheet) validate(f *excelize.File, sheet string, l *Layout, registry *ChoiceListRegistry) error {
	first := l.FirstDataRow()
	for i, h := range l.Header {
		column, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		sqref := fmt.Sprintf("%s%d:%s%d", column, first, column, ValidationLastRow)

		if h == model.TypeURIPath {
			if err := addDropList(f, sheet, sqref, []string{l.TypeURI}); err != nil {
				return err
			}
			continue
		}
		if !p.opts.ChoiceLists {
			continue
		}

		// a repeated cell holds several values joined by the value separator, which no
		// single-value dropdown accepts
		attr := l.Attributes[i]
		if attr == nil || attr.Kind.Repeated || strings.Contains(h, model.RepeatedMark) {
			continue
		}
		switch attr.Kind.Kind {
		case catalog.KindBoolean:
			if err := addDropList(f, sheet, sqref, booleanChoices); err != nil {
				return err
			}
		case catalog.KindEnumerated:
			if err := p.addChoiceList(f, sheet, sqref, attr, registry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Spreadsheet) addChoiceList(f *excelize.File, sheet, sqref string, attr *catalog.AttributeDescriptor, registry *ChoiceListRegistry) error {
	options := attr.ActiveOptions()
	values := make([]string, len(options))
	for i, o := range options {
		values[i] = o.Value
	}

	name := attr.Enumeration
	if name == "" {
		name = attr.Name
	}
	list, err := registry.Resolve(name, values)
	if err != nil {
		return err
	}
	if len(list.Values) == 0 {
		return nil
	}

	dv := excelize.NewDataValidation(true)
	dv.Sqref = sqref
	dv.SetSqrefDropList(list.Range())
	if err := f.AddDataValidation(sheet, dv); err != nil {
		return fmt.Errorf("failed to add choice list %s on %s: %w", name, sheet, err)
	}
	return nil
}

func addDropList(f *excelize.File, sheet, sqref string, values []string) error {
	dv := excelize.NewDataValidation(true)
	dv.Sqref = sqref
	if err := dv.SetDropList(values); err != nil {
		return fmt.Errorf("failed to build dropdown for %s: %w", sheet, err)
	}
	if err := f.AddDataValidation(sheet, dv); err != nil {
		return fmt.Errorf("failed to add dropdown on %s: %w", sheet, err)
	}
	return nil
}

func writeChoiceLists(f *excelize.File, registry *ChoiceListRegistry) error {
	if _, err := f.NewSheet(tabular.ChoiceListSheet); err != nil {
		return fmt.Errorf("failed to create %s: %w", tabular.ChoiceListSheet, err)
	}
	for _, list := range registry.List() {
		if err := f.SetCellValue(tabular.ChoiceListSheet, list.Column+"1", list.Name); err != nil {
			return err
		}
		for i, v := range list.Values {
			if err := f.SetCellValue(tabular.ChoiceListSheet, fmt.Sprintf("%s%d", list.Column, i+2), v); err != nil {
				return err
			}
		}
	}
	return nil
}
