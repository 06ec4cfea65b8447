package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otl-tools/otltemplate/internal/pipeline"
)

func TestClassesTable(t *testing.T) {
	stdout, _, err := run(t, "classes", subsetPath(t))
	require.NoError(t, err)

	assert.Contains(t, stdout, "CLASS")
	assert.Contains(t, stdout, "onderdeel#AllCasesTestClass")
	assert.Contains(t, stdout, "relation")
	assert.Contains(t, stdout, "class, deprecated")
	assert.NotContains(t, stdout, "AIMObject")
}

func TestClassesQuiet(t *testing.T) {
	stdout, _, err := run(t, "classes", subsetPath(t), "-q")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "https://wegenenverkeer.data.vlaanderen.be/ns/onderdeel#AllCasesTestClass", lines[0])
}

func TestClassesJSON(t *testing.T) {
	stdout, _, err := run(t, "classes", subsetPath(t), "--json", "--all")
	require.NoError(t, err)

	var classes []pipeline.ClassInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &classes))
	require.Len(t, classes, 5)
	assert.True(t, classes[0].Abstract)
}

func TestClassKind(t *testing.T) {
	tests := []struct {
		info pipeline.ClassInfo
		want string
	}{
		{pipeline.ClassInfo{}, "class"},
		{pipeline.ClassInfo{Abstract: true}, "abstract"},
		{pipeline.ClassInfo{Relation: true}, "relation"},
		{pipeline.ClassInfo{Relation: true, Deprecated: true}, "relation"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classKind(tt.info))
	}
}
