package postprocess

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/otl-tools/otltemplate/internal/catalog"
	"github.com/otl-tools/otltemplate/internal/model"
	"github.com/otl-tools/otltemplate/internal/synth"
	"github.com/otl-tools/otltemplate/internal/tabular"
)

const (
	allCasesURI = "https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#AllCasesTestClass"
	anotherURI  = "https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#AnotherTestClass"
)

type sequential struct{}

func (sequential) Run(ctx context.Context, n int, fn func(context.Context, int) error) error {
	for i := 0; i < n; i++ {
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

func fixture(t *testing.T) (*model.Resolver, []*tabular.Table) {
	t.Helper()
	cat, err := catalog.Load(context.Background(), filepath.Join("..", "catalog", "testdata", "allcases.yaml"), nil)
	require.NoError(t, err)
	resolver := model.NewResolver(cat, nil, nil)
	instances, err := synth.New(cat, resolver, nil).Synthesize(context.Background(), sequential{}, synth.Options{
		IgnoreRelations:  true,
		FilterAttributes: true,
		ClassFilter:      []string{allCasesURI, anotherURI},
		Rows:             1,
		Geometry:         true,
		Seed:             3,
	})
	require.NoError(t, err)
	return resolver, tabular.Group(instances)
}

func TestBuildLayout(t *testing.T) {
	resolver, _ := fixture(t)
	typ, err := resolver.Type(anotherURI)
	require.NoError(t, err)

	table := &tabular.Table{
		TypeURI: anotherURI,
		Header:  []string{"typeURI", "assetId.identificator", "deprecatedString", "geometry", "notitie"},
		Rows:    [][]string{{anotherURI, "id-1", "oud", "POINT Z (1 2 0)", "tekst"}},
	}

	t.Run("all enrichments, no examples", func(t *testing.T) {
		l := BuildLayout(table, typ, Options{Rows: 0, AttributeInfo: true, TagDeprecated: true}, nil)

		assert.Equal(t, []string{"typeURI", "assetId.identificator", "deprecatedString", "notitie"}, l.Header)
		require.Len(t, l.Description, len(l.Header))
		assert.Equal(t, model.TypeURIDefinition, l.Description[0])
		assert.Equal(t, "Tekstveld dat niet meer gebruikt wordt", l.Description[2])
		assert.Equal(t, []string{"", "", DeprecatedMarker, ""}, l.Deprecation)
		assert.Empty(t, l.Rows)
		assert.Equal(t, 3, l.HeaderRow())

		records := l.Records()
		require.Len(t, records, 3)
		assert.Equal(t, l.Description, records[0])
		assert.Equal(t, l.Deprecation, records[1])
		assert.Equal(t, l.Header, records[2])
	})

	t.Run("plain", func(t *testing.T) {
		l := BuildLayout(table, typ, Options{Rows: 1, Geometry: true}, nil)
		assert.Equal(t, table.Header, l.Header)
		assert.Nil(t, l.Description)
		assert.Nil(t, l.Deprecation)
		assert.Equal(t, 1, l.HeaderRow())
		assert.Equal(t, table.Rows, l.Rows)
	})
}

func TestBuildLayoutBlankDeprecationRow(t *testing.T) {
	resolver, _ := fixture(t)
	typ, err := resolver.Type(allCasesURI)
	require.NoError(t, err)

	table := &tabular.Table{
		TypeURI: allCasesURI,
		Header:  []string{"typeURI", "notitie", "testBooleanField"},
		Rows:    [][]string{{allCasesURI, "tekst", "true"}},
	}
	l := BuildLayout(table, typ, Options{Rows: 1, TagDeprecated: true}, nil)

	assert.Equal(t, []string{"", "", ""}, l.Deprecation)
	assert.Equal(t, 2, l.HeaderRow(), "header row matches sheets with deprecated columns")
	assert.Equal(t, 3, l.FirstDataRow())
}

func TestBuildLayoutUnresolvedColumn(t *testing.T) {
	resolver, _ := fixture(t)
	typ, _ := resolver.Type(anotherURI)
	core, logs := observer.New(zapcore.WarnLevel)

	table := &tabular.Table{TypeURI: anotherURI, Header: []string{"typeURI", "bestaatNiet"}}
	l := BuildLayout(table, typ, Options{AttributeInfo: true, TagDeprecated: true}, zap.New(core))

	assert.Equal(t, []string{model.TypeURIDefinition, ""}, l.Description)
	assert.Equal(t, []string{"", ""}, l.Deprecation)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "bestaatNiet", logs.All()[0].ContextMap()["path"])
}

func TestDeprecatedParentFlagsChildren(t *testing.T) {
	typ := model.NewType(&catalog.ClassDescriptor{
		URI: "https://example.com/ns/onderdeel#Kast",
		Attributes: []*catalog.AttributeDescriptor{{
			Name:              "oudeMaat",
			Kind:              catalog.FieldKind{Kind: catalog.KindComplex},
			DeprecatedVersion: "2.4.0",
			Children: []*catalog.AttributeDescriptor{
				{Name: "breedte", Kind: catalog.FieldKind{Kind: catalog.KindScalar}},
			},
		}, {
			Name: "hoogte", Kind: catalog.FieldKind{Kind: catalog.KindScalar},
		}},
	}, false)

	table := &tabular.Table{Header: []string{"typeURI", "hoogte", "oudeMaat.breedte"}}
	l := BuildLayout(table, typ, Options{TagDeprecated: true}, nil)
	assert.Equal(t, []string{"", "", DeprecatedMarker}, l.Deprecation)
}

func TestCompositeResolver(t *testing.T) {
	resolver, _ := fixture(t)
	all, _ := resolver.Type(allCasesURI)
	another, _ := resolver.Type(anotherURI)
	c := CompositeResolver{all, another}

	attr, err := c.Lookup("deprecatedString")
	require.NoError(t, err)
	assert.True(t, attr.Deprecated())

	_, err = c.Lookup("nergens")
	var resErr *model.AttributeResolutionError
	assert.ErrorAs(t, err, &resErr)

	_, err = CompositeResolver{}.Lookup("x")
	assert.ErrorAs(t, err, &resErr)
}

func TestChoiceListRegistry(t *testing.T) {
	r := NewChoiceListRegistry()

	first, err := r.Register("KlAIMToestand", []string{"in-gebruik", "in-ontwerp"})
	require.NoError(t, err)
	assert.Equal(t, "A", first.Column)
	assert.Equal(t, "Keuzelijsten!$A$2:$A$3", first.Range())

	_, err = r.Register("KlAIMToestand", []string{"x"})
	assert.True(t, errors.Is(err, ErrDuplicateChoiceList))

	again, err := r.Resolve("KlAIMToestand", []string{"other"})
	require.NoError(t, err)
	assert.Same(t, first, again, "first registration wins")

	second, err := r.Resolve("KlTestKeuzelijst", []string{"waarde-1"})
	require.NoError(t, err)
	assert.Equal(t, "B", second.Column)

	got, ok := r.Get("KlTestKeuzelijst")
	assert.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []*ChoiceList{first, second}, r.List())
}

func stage(t *testing.T, tables []*tabular.Table) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged.xlsx")
	require.NoError(t, tabular.WriteWorkbook(path, tables))
	return path
}

func TestSpreadsheetProcess(t *testing.T) {
	resolver, tables := fixture(t)
	staged := stage(t, tables)
	dest := filepath.Join(t.TempDir(), "template.xlsx")

	p := NewSpreadsheet(Options{Rows: 1, Geometry: true, AttributeInfo: true, TagDeprecated: true, ChoiceLists: true},
		resolver.Type, nil)
	registry, err := p.Process(context.Background(), sequential{}, staged, dest)
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())

	f, err := excelize.OpenFile(dest)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"onderdeel#AllCasesTestClass", "onderdeel#AnotherTestClass", "Keuzelijsten"}, f.GetSheetList())

	rows, err := f.GetRows("onderdeel#AllCasesTestClass")
	require.NoError(t, err)
	require.Len(t, rows, 4, "description, deprecation, header, one data row")
	header := rows[2]
	assert.Equal(t, []string{"typeURI", "assetId.identificator", "assetId.toegekendDoor"}, header[:3])
	assert.Equal(t, model.TypeURIDefinition, rows[0][0])
	assert.Len(t, rows[0], len(header), "one description per column")

	for _, v := range rows[1] {
		assert.Empty(t, v, "AllCasesTestClass has no deprecated columns")
	}

	another, err := f.GetRows("onderdeel#AnotherTestClass")
	require.NoError(t, err)
	col := indexOf(another[2], "deprecatedString")
	require.GreaterOrEqual(t, col, 0)
	assert.Equal(t, DeprecatedMarker, another[1][col])
	for i, v := range another[1] {
		if i != col {
			assert.Empty(t, v)
		}
	}

	choices, err := f.GetRows("Keuzelijsten")
	require.NoError(t, err)
	require.NotEmpty(t, choices)
	assert.Equal(t, []string{"KlTestKeuzelijst", "KlAIMToestand"}, choices[0])
	toestand := make([]string, 0)
	for _, r := range choices[1:] {
		if len(r) > 1 && r[1] != "" {
			toestand = append(toestand, r[1])
		}
	}
	assert.Equal(t, []string{"in-gebruik", "in-ontwerp", "overgedragen", "verwijderd"}, toestand)

	validations, err := f.GetDataValidations("onderdeel#AnotherTestClass")
	require.NoError(t, err)
	var typeURIFound, toestandFound bool
	toestandCol, _ := excelize.ColumnNumberToName(indexOf(another[2], "toestand") + 1)
	for _, dv := range validations {
		if dv.Sqref == "A4:A1000" {
			typeURIFound = true
			assert.Contains(t, dv.Formula1, anotherURI)
		}
		if dv.Sqref == toestandCol+"4:"+toestandCol+"1000" {
			toestandFound = true
			assert.Contains(t, dv.Formula1, "Keuzelijsten!$B$2:$B$5")
		}
	}
	assert.True(t, typeURIFound)
	assert.True(t, toestandFound, "both sheets reuse the one KlAIMToestand list")

	width, err := f.GetColWidth("onderdeel#AnotherTestClass", "A")
	require.NoError(t, err)
	assert.Equal(t, float64(ColumnWidth), width)
}

func TestSpreadsheetSkipsRepeatedColumnValidation(t *testing.T) {
	resolver, tables := fixture(t)
	staged := stage(t, tables)
	dest := filepath.Join(t.TempDir(), "template.xlsx")

	p := NewSpreadsheet(Options{Rows: 1, Geometry: true, ChoiceLists: true}, resolver.Type, nil)
	_, err := p.Process(context.Background(), sequential{}, staged, dest)
	require.NoError(t, err)

	f, err := excelize.OpenFile(dest)
	require.NoError(t, err)
	defer f.Close()

	const sheet = "onderdeel#AllCasesTestClass"
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	header := rows[0]
	validations, err := f.GetDataValidations(sheet)
	require.NoError(t, err)

	validated := func(path string) bool {
		i := indexOf(header, path)
		require.GreaterOrEqual(t, i, 0, path)
		col, err := excelize.ColumnNumberToName(i + 1)
		require.NoError(t, err)
		for _, dv := range validations {
			if dv.Sqref == col+"2:"+col+"1000" {
				return true
			}
		}
		return false
	}

	assert.True(t, validated("testKeuzelijst"))
	assert.True(t, validated("testBooleanField"))
	assert.False(t, validated("testKeuzelijstMetKard[]"))
	assert.False(t, validated("testComplexTypeMetKard[].testBooleanField"))
}

func TestSpreadsheetZeroRowsNoGeometry(t *testing.T) {
	resolver, tables := fixture(t)
	staged := stage(t, tables)
	dest := filepath.Join(t.TempDir(), "template.xlsx")

	p := NewSpreadsheet(Options{Rows: 0, Geometry: false}, resolver.Type, nil)
	registry, err := p.Process(context.Background(), sequential{}, staged, dest)
	require.NoError(t, err)
	assert.Zero(t, registry.Len())

	f, err := excelize.OpenFile(dest)
	require.NoError(t, err)
	defer f.Close()

	assert.NotContains(t, f.GetSheetList(), tabular.ChoiceListSheet)
	rows, err := f.GetRows("onderdeel#AllCasesTestClass")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
	assert.NotContains(t, rows[0], "geometry")
}

func TestFlatFileProcess(t *testing.T) {
	resolver, tables := fixture(t)
	dir := t.TempDir()
	all, _ := resolver.Type(allCasesURI)
	another, _ := resolver.Type(anotherURI)

	merged := tabular.Merge(tables)
	staged := filepath.Join(dir, "staged.csv")
	require.NoError(t, tabular.WriteCSVFile(staged, merged.Records()))

	dest := filepath.Join(dir, "template.csv")
	p := NewFlatFile(Options{Rows: 0, Geometry: false, AttributeInfo: true, TagDeprecated: true, ChoiceLists: true}, nil)
	err := p.Process(context.Background(), sequential{}, []Unit{{
		Staged:   staged,
		Dest:     dest,
		Resolver: CompositeResolver{all, another},
	}})
	require.NoError(t, err)

	records, err := tabular.ReadCSVFile(dest)
	require.NoError(t, err)
	require.Len(t, records, 3, "description, deprecation and header only")

	header := records[2]
	assert.Equal(t, "typeURI", header[0])
	assert.NotContains(t, header, "geometry")
	assert.Len(t, records[0], len(header))
	assert.Equal(t, model.TypeURIDefinition, records[0][0])
	assert.Equal(t, DeprecatedMarker, records[1][indexOf(header, "deprecatedString")])
}

func TestFlatFileKeepsExampleRows(t *testing.T) {
	resolver, tables := fixture(t)
	dir := t.TempDir()
	typ, _ := resolver.Type(anotherURI)

	staged := filepath.Join(dir, "staged.csv")
	require.NoError(t, tabular.WriteCSVFile(staged, tables[1].Records()))
	dest := filepath.Join(dir, "template.csv")

	p := NewFlatFile(Options{Rows: 1, Geometry: true}, nil)
	require.NoError(t, p.Process(context.Background(), sequential{}, []Unit{{Staged: staged, Dest: dest, Resolver: typ}}))

	records, err := tabular.ReadCSVFile(dest)
	require.NoError(t, err)
	assert.Equal(t, tables[1].Records(), records)
}

func indexOf(values []string, v string) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return -1
}
