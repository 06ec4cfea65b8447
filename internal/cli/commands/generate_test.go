package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/otl-tools/otltemplate/internal/pipeline"
	"github.com/otl-tools/otltemplate/internal/tabular"
)

const anotherURI = "https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#AnotherTestClass"

func subsetPath(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "catalog", "testdata", "allcases.yaml"))
	require.NoError(t, err)
	return path
}

func TestGenerateWorkbook(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "template.xlsx")

	stdout, _, err := run(t, "generate", subsetPath(t), dest, "--seed", "7", "-q")
	require.NoError(t, err)
	assert.Equal(t, dest+"\n", stdout)

	wb, err := excelize.OpenFile(dest)
	require.NoError(t, err)
	defer wb.Close()
	assert.Contains(t, wb.GetSheetList(), "onderdeel#AllCasesTestClass")
	assert.Contains(t, wb.GetSheetList(), tabular.ChoiceListSheet)
}

func TestGenerateSummary(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "template.xlsx")

	stdout, _, err := run(t, "generate", subsetPath(t), dest, "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, stdout, dest)
	assert.Contains(t, stdout, "Seed")
	assert.Contains(t, stdout, "7")
	assert.Contains(t, stdout, "Choice lists")
}

func TestGenerateSplitCSV(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "template.csv")

	stdout, _, err := run(t, "generate", subsetPath(t), dest, "-q", "--dummy-rows", "0")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"template_onderdeel_AllCasesTestClass.csv",
		"template_onderdeel_AnotherTestClass.csv",
		"template_onderdeel_DeprecatedTestClass.csv",
	}, names)

	records, err := tabular.ReadCSVFile(filepath.Join(dir, "template_onderdeel_AnotherTestClass.csv"))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGenerateClassFilter(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "template.csv")

	_, _, err := run(t, "generate", subsetPath(t), dest, "-q", "--split=false", "--class", anotherURI)
	require.NoError(t, err)

	records, err := tabular.ReadCSVFile(dest)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, anotherURI, records[1][0])
}

func TestGenerateNoClasses(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "template.xlsx")

	stdout, _, err := run(t, "generate", subsetPath(t), dest, "--no-classes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "nothing was written")
	assert.NoFileExists(t, dest)
}

func TestGenerateWarnsAboutUnknownClasses(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "template.csv")

	_, stderr, err := run(t, "generate", subsetPath(t), dest, "-q",
		"--class", "https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#AnotherTestClas",
		"--class", anotherURI)
	require.NoError(t, err)
	assert.Contains(t, stderr, "CLASS NOT IN SUBSET")
	assert.Contains(t, stderr, "Did you mean: onderdeel#AnotherTestClass?")
}

func TestGenerateErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := run(t, "generate", subsetPath(t), filepath.Join(dir, "template.json"))
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedFormat)

	_, _, err = run(t, "generate", subsetPath(t), filepath.Join(dir, "template.xlsx"), "--dummy-rows", "-1")
	assert.Error(t, err)

	_, _, err = run(t, "generate", filepath.Join(dir, "missing.db"), filepath.Join(dir, "template.xlsx"))
	assert.Error(t, err)

	_, _, err = run(t, "generate", subsetPath(t))
	assert.Error(t, err)
}

func TestGenerateConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "otltemplate.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("dummy_data_rows: 3\nsplit_per_type: false\n"), 0o644))
	dest := filepath.Join(dir, "template.csv")

	count := func(args ...string) int {
		t.Helper()
		base := []string{"generate", subsetPath(t), dest, "-q", "--config", cfgFile}
		_, _, err := run(t, append(base, args...)...)
		require.NoError(t, err)
		records, err := tabular.ReadCSVFile(dest)
		require.NoError(t, err)
		return len(records)
	}

	// one shared header plus the example rows of three classes
	assert.Equal(t, 1+3*3, count())
	assert.Equal(t, 1+3*1, count("--dummy-rows", "1"))

	t.Setenv("OTLTEMPLATE_DUMMY_DATA_ROWS", "2")
	assert.Equal(t, 1+3*2, count())
	assert.Equal(t, 1+3*1, count("--dummy-rows", "1"))
}

func TestGenerateInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "otltemplate.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("workers: -2\n"), 0o644))

	_, _, err := run(t, "generate", subsetPath(t), filepath.Join(dir, "t.xlsx"), "--config", cfgFile)
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}
