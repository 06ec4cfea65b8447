package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteClasses(t *testing.T) {
	var buf bytes.Buffer
	WriteClasses(&buf, []ClassRow{
		{Class: "onderdeel#AllCasesTestClass", Attributes: 21, Kind: "class"},
		{Class: "onderdeel#Bevestiging", Attributes: 3, Kind: "relation"},
		{Class: "onderdeel#DeprecatedTestClass", Attributes: 4, Kind: "class", Deprecated: true},
	}, true)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "CLASS "))
	assert.True(t, strings.HasSuffix(lines[2], "relation"))
	assert.True(t, strings.HasSuffix(lines[3], "class, deprecated"))

	// counts are right aligned under the ATTRIBUTES header
	end := strings.Index(lines[0], "ATTRIBUTES") + len("ATTRIBUTES")
	assert.Equal(t, "21", lines[1][end-2:end])
	assert.Equal(t, " 3", lines[2][end-2:end])
}

func TestWriteClassesEmpty(t *testing.T) {
	var buf bytes.Buffer
	WriteClasses(&buf, nil, true)
	assert.Equal(t, "CLASS  ATTRIBUTES  KIND\n", buf.String())
}

func TestWriteClassesMultiByteNames(t *testing.T) {
	var buf bytes.Buffer
	WriteClasses(&buf, []ClassRow{
		{Class: "onderdeel#Één", Attributes: 1, Kind: "class"},
		{Class: "onderdeel#Eentje", Attributes: 2, Kind: "class"},
	}, true)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, len([]rune(lines[1])), len([]rune(lines[2])))
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	new(Summary).
		Add("Run", "4f1c").
		Add("Choice lists", "2").
		Write(&buf, true)

	assert.Equal(t, "Run:          4f1c\nChoice lists: 2\n", buf.String())
}

func TestSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	new(Summary).Write(&buf, true)
	assert.Empty(t, buf.String())
}
