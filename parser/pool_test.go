package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/codegraph/lang"
)

func TestParseTypeScript(t *testing.T) {
	pool := NewPool()
	res, err := pool.Parse(context.Background(), []byte(`const x: number = 1;`), lang.TypeScript, "x.ts")
	require.NoError(t, err)
	defer res.Close()

	assert.Equal(t, lang.TypeScript, res.Language)
	assert.False(t, res.HasErrors)
	assert.Positive(t, res.NodeCount)
	assert.Positive(t, res.ParseDuration)
}

func TestParseEveryGrammar(t *testing.T) {
	pool := NewPool()
	tests := []struct {
		language lang.Language
		source   string
	}{
		{lang.TypeScript, "export const x = 1;"},
		{lang.JavaScript, "function f() { return 1; }"},
		{lang.Python, "def f():\n    return 1\n"},
		{lang.Go, "package p\n\nfunc F() {}\n"},
		{lang.Java, "class A { void f() {} }"},
	}
	for _, tt := range tests {
		t.Run(string(tt.language), func(t *testing.T) {
			res, err := pool.Parse(context.Background(), []byte(tt.source), tt.language, "test")
			require.NoError(t, err)
			defer res.Close()
			assert.False(t, res.HasErrors)
		})
	}
}

func TestParseUnsupportedLanguage(t *testing.T) {
	pool := NewPool()
	_, err := pool.Parse(context.Background(), []byte("x"), lang.Language("cobol"), "x.cob")
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseMarkdownHasNoGrammar(t *testing.T) {
	pool := NewPool()
	_, err := pool.Parse(context.Background(), []byte("# title"), lang.Markdown, "x.md")
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseSyntaxErrorsAreWarnings(t *testing.T) {
	pool := NewPool()
	res, err := pool.Parse(context.Background(), []byte(`const = = ;;;`), lang.TypeScript, "bad.ts")
	require.NoError(t, err, "a tree with error nodes is a warning, not a failure")
	defer res.Close()
	assert.True(t, res.HasErrors)
}

func TestPoolReusesAndRecreatesParsers(t *testing.T) {
	pool := NewPool(WithMaxSuccessiveUses(3))
	for i := 0; i < 2; i++ {
		res, err := pool.Parse(context.Background(), []byte("const x = 1;"), lang.TypeScript, "x.ts")
		require.NoError(t, err)
		res.Close()
	}
	assert.Equal(t, 2, pool.Uses(lang.TypeScript))

	// Third use hits the bound; the instance is recreated with a zeroed
	// counter.
	res, err := pool.Parse(context.Background(), []byte("const y = 2;"), lang.TypeScript, "y.ts")
	require.NoError(t, err)
	res.Close()
	assert.Equal(t, 0, pool.Uses(lang.TypeScript))
}
