// Package tabular flattens placeholder instances into tables of dot-notation columns and reads
// and writes those tables as CSV files and workbooks.
package tabular

import (
	"sort"
	"strings"

	"github.com/otl-tools/otltemplate/internal/model"
)

// Table holds the rows of one output unit. Type is nil for tables mixing several types.
type Table struct {
	TypeURI string
	Type    *model.Type
	Header  []string
	Rows    [][]string
}

// Records returns the header followed by the rows
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Header)
	return append(out, t.Rows...)
}

// Column returns the index of a header, or -1
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Row returns row i as a map keyed by header
func (t *Table) Row(i int) map[string]string {
	m := make(map[string]string, len(t.Header))
	for j, h := range t.Header {
		if j < len(t.Rows[i]) {
			m[h] = t.Rows[i][j]
		}
	}
	return m
}

// SortHeader orders columns: typeURI, then assetId paths, then the rest byte-wise
func SortHeader(cols []string) []string {
	out := append([]string(nil), cols...)
	rank := func(c string) int {
		switch {
		case c == model.TypeURIPath:
			return 0
		case strings.HasPrefix(c, model.AssetIDPath+model.PathSeparator):
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

// Group flattens instances into one table per type, in order of first appearance. Each
// header is the union of the paths present in that type's rows.
func Group(instances []*model.Instance) []*Table {
	var tables []*Table
	rowsByType := map[string][]map[string]string{}
	for _, inst := range instances {
		uri := inst.TypeURI()
		if _, ok := rowsByType[uri]; !ok {
			tables = append(tables, &Table{TypeURI: uri, Type: inst.Type})
		}
		rowsByType[uri] = append(rowsByType[uri], Flatten(inst))
	}

	for _, t := range tables {
		fill(t, rowsByType[t.TypeURI])
	}
	return tables
}

func fill(t *Table, rows []map[string]string) {
	cols := map[string]struct{}{}
	for _, r := range rows {
		for c := range r {
			cols[c] = struct{}{}
		}
	}
	header := make([]string, 0, len(cols))
	for c := range cols {
		header = append(header, c)
	}
	t.Header = SortHeader(header)

	t.Rows = make([][]string, len(rows))
	for i, r := range rows {
		line := make([]string, len(t.Header))
		for j, c := range t.Header {
			line[j] = r[c]
		}
		t.Rows[i] = line
	}
}

// Merge combines tables into one with the union header. Rows stay grouped by table, and
// cells of columns a row's type does not have are blank.
func Merge(tables []*Table) *Table {
	if len(tables) == 1 {
		return tables[0]
	}
	var rows []map[string]string
	for _, t := range tables {
		for i := range t.Rows {
			rows = append(rows, t.Row(i))
		}
	}
	merged := &Table{}
	fill(merged, rows)
	return merged
}

// FromRecords builds a table from a header and rows as read from a file. Short rows are
// padded to the header length.
func FromRecords(records [][]string) *Table {
	if len(records) == 0 {
		return &Table{}
	}
	t := &Table{Header: append([]string(nil), records[0]...)}
	for _, rec := range records[1:] {
		line := make([]string, len(t.Header))
		copy(line, rec)
		t.Rows = append(t.Rows, line)
	}
	if col := t.Column(model.TypeURIPath); col >= 0 && len(t.Rows) > 0 {
		t.TypeURI = t.Rows[0][col]
		for _, r := range t.Rows[1:] {
			if r[col] != t.TypeURI {
				t.TypeURI = ""
				break
			}
		}
	}
	return t
}
