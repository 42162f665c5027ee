package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/codegraph/lang"
	"github.com/oxhq/codegraph/parser"
)

func newTestMapper(t *testing.T) (*KeyMapper, *parser.Pool) {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	return NewKeyMapper(NewEngine(reg, nil)), parser.NewPool()
}

func TestMapperValidate(t *testing.T) {
	m, _ := newTestMapper(t)

	ok := m.Validate(Mapping{"deps": "ts-import-sources"}, lang.TypeScript)
	assert.Empty(t, ok)

	invalid := m.Validate(Mapping{
		"deps":    "ts-import-sources",
		"missing": "no-such-query",
		"wrong":   "py-import-sources",
	}, lang.TypeScript)
	require.Len(t, invalid, 2)
}

func TestMapperExecuteUserKeys(t *testing.T) {
	m, pool := newTestMapper(t)
	res := parse(t, pool, `
import { x } from './x';
export function run(): void {}
`, lang.TypeScript)

	out, err := m.Execute(Mapping{
		"myImports": "ts-import-sources",
		"myExports": "ts-export-declarations",
	}, res)
	require.NoError(t, err)
	assert.Len(t, out["myImports"], 1)
	assert.Len(t, out["myExports"], 1)
}

func TestMapperExecuteRejectsInvalidMapping(t *testing.T) {
	m, pool := newTestMapper(t)
	res := parse(t, pool, "const x = 1;", lang.TypeScript)
	_, err := m.Execute(Mapping{"bad": "absent"}, res)
	assert.Error(t, err)
}

func TestMapperExecuteBestEffort(t *testing.T) {
	m, pool := newTestMapper(t)
	res := parse(t, pool, `import { x } from './x';`, lang.TypeScript)

	out, warnings := m.ExecuteBestEffort(Mapping{
		"imports": "ts-import-sources",
		"broken":  "absent",
	}, res)
	assert.Len(t, out["imports"], 1)
	assert.Empty(t, out["broken"])
	assert.Len(t, warnings, 1)
}

func TestPredefinedMappingsValidate(t *testing.T) {
	m, _ := newTestMapper(t)
	for _, l := range []lang.Language{lang.TypeScript, lang.JavaScript, lang.Python, lang.Go, lang.Java} {
		assert.Empty(t, m.Validate(ModuleStructure(l), l), "moduleStructure for %s", l)
		assert.Empty(t, m.Validate(AnalysisMapping(l), l), "analysisMapping for %s", l)
	}
}

func TestClassAnalysisMapping(t *testing.T) {
	m, pool := newTestMapper(t)
	res := parse(t, pool, `
class Admin extends User {
  promote(): void {}
}
`, lang.TypeScript)

	out, err := m.Execute(ClassAnalysis(lang.TypeScript), res)
	require.NoError(t, err)
	assert.NotEmpty(t, out["declarations"])
	require.Len(t, out["relations"], 1)
	assert.Equal(t, "Admin", out["relations"][0].Name)
	assert.Equal(t, "User", out["relations"][0].Target)
}
