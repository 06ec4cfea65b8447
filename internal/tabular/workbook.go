package tabular

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/otl-tools/otltemplate/internal/catalog"
)

// Sheet is one table with its sheet title
type Sheet struct {
	Title string
	Table *Table
}

// Sheets pairs tables with distinct titles derived from their type URIs
func Sheets(tables []*Table) []Sheet {
	uris := make([]string, len(tables))
	for i, t := range tables {
		uris[i] = t.TypeURI
	}
	titles := SheetTitles(uris)
	out := make([]Sheet, len(tables))
	for i, t := range tables {
		out[i] = Sheet{Title: titles[i], Table: t}
	}
	return out
}

// WriteWorkbook writes one sheet per table to path
func WriteWorkbook(path string, tables []*Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range Sheets(tables) {
		if err := AddSheet(f, i, s.Title); err != nil {
			return err
		}
		if err := WriteRecords(f, s.Title, 1, s.Table.Header); err != nil {
			return err
		}
		for r, row := range s.Table.Rows {
			if err := WriteRow(f, s.Title, r+2, s.Table, row); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// AddSheet creates sheet number i, reusing the default sheet for the first one
func AddSheet(f *excelize.File, i int, title string) error {
	if i == 0 {
		if err := f.SetSheetName(f.GetSheetName(0), title); err != nil {
			return fmt.Errorf("failed to name sheet %s: %w", title, err)
		}
		return nil
	}
	if _, err := f.NewSheet(title); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", title, err)
	}
	return nil
}

// WriteRecords writes plain text cells starting at column A of row
func WriteRecords(f *excelize.File, sheet string, row int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

// WriteRow writes a data row. Boolean columns of a typed table are written as boolean cells.
func WriteRow(f *excelize.File, sheet string, row int, t *Table, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
		if v == "" || t.Type == nil || i >= len(t.Header) {
			continue
		}
		attr, err := t.Type.Lookup(t.Header[i])
		if err != nil || attr.Kind != (catalog.FieldKind{Kind: catalog.KindBoolean}) {
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			cells[i] = b
		}
	}
	if len(cells) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

// ReadWorkbook reads every sheet of the workbook at path as a table (first row is the
// header). The type URI comes from the typeURI column or, failing that, the sheet title.
func ReadWorkbook(path string) ([]Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, title := range f.GetSheetList() {
		rows, err := f.GetRows(title)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", title, err)
		}
		t := FromRecords(rows)
		if t.TypeURI == "" {
			t.TypeURI, _ = TypeURIFromTitle(title)
		}
		sheets = append(sheets, Sheet{Title: title, Table: t})
	}
	return sheets, nil
}
