package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/codegraph/lang"
)

func TestResolveExternal(t *testing.T) {
	r := NewResolver(t.TempDir())
	tests := []struct {
		specifier string
		language  lang.Language
		want      string
	}{
		{"fs", lang.TypeScript, "fs"},
		{"lodash/merge", lang.TypeScript, "lodash"},
		{"@scope/pkg/deep/mod", lang.TypeScript, "@scope/pkg"},
		{"github.com/spf13/cobra", lang.Go, "github.com/spf13/cobra"},
		{"java.util.List", lang.Java, "java.util.List"},
		{"numpy", lang.Python, "numpy"},
	}
	for _, tt := range tests {
		res := r.Resolve("any.ts", tt.specifier, tt.language)
		assert.False(t, res.Internal, tt.specifier)
		assert.Equal(t, tt.want, res.Path, tt.specifier)
	}
}

func TestResolveInternalWithProbing(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "utils.ts"), []byte("export {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "index.ts"), []byte("export {}"), 0o644))

	r := NewResolver(root)
	importer := filepath.Join(root, "main.ts")

	resolved := r.Resolve(importer, "./utils", lang.TypeScript)
	assert.True(t, resolved.Internal)
	assert.True(t, resolved.Exists)
	assert.Equal(t, filepath.Join(root, "utils.ts"), resolved.Path)

	viaIndex := r.Resolve(importer, "./lib", lang.TypeScript)
	assert.True(t, viaIndex.Exists)
	assert.Equal(t, filepath.Join(root, "lib", "index.ts"), viaIndex.Path)

	missing := r.Resolve(importer, "./nope", lang.TypeScript)
	assert.True(t, missing.Internal)
	assert.False(t, missing.Exists)
	assert.Equal(t, filepath.Join(root, "nope"), missing.Path,
		"unresolved targets keep the raw joined specifier")
}

func TestResolveRootRelative(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "shared.ts"), []byte("export {}"), 0o644))
	r := NewResolver(root)

	res := r.Resolve(filepath.Join(root, "deep", "nested", "mod.ts"), "/shared", lang.TypeScript)
	assert.True(t, res.Internal)
	assert.True(t, res.Exists)
	assert.Equal(t, filepath.Join(root, "shared.ts"), res.Path)
}

func TestResolvePythonRelative(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "utils.py"), []byte(""), 0o644))

	r := NewResolver(root)
	importer := filepath.Join(root, "pkg", "sub", "mod.py")

	res := r.Resolve(importer, "..utils", lang.Python)
	assert.True(t, res.Internal)
	assert.True(t, res.Exists)
	assert.Equal(t, filepath.Join(root, "pkg", "utils.py"), res.Path)
}

func TestPythonRelativePath(t *testing.T) {
	assert.Equal(t, "utils", pythonRelativePath(".utils"))
	assert.Equal(t, "../pkg/mod", pythonRelativePath("..pkg.mod"))
}
