package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/codegraph/lang"
	"github.com/oxhq/codegraph/parser"
)

func newTestEngine(t *testing.T) (*Engine, *parser.Pool) {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	return NewEngine(reg, nil), parser.NewPool()
}

func parse(t *testing.T, pool *parser.Pool, source string, l lang.Language) *parser.Result {
	t.Helper()
	res, err := pool.Parse(context.Background(), []byte(source), l, "test"+l.Extensions()[0])
	require.NoError(t, err)
	t.Cleanup(res.Close)
	return res
}

func TestExecuteTypeScriptImports(t *testing.T) {
	engine, pool := newTestEngine(t)
	res := parse(t, pool, `
import { readFileSync } from 'fs';
import * as lodash from 'lodash';
import { helper } from './utils';
`, lang.TypeScript)

	records, err := engine.Execute("ts-import-sources", res)
	require.NoError(t, err)
	require.Len(t, records, 3)

	specs := make([]string, 0, len(records))
	for _, r := range records {
		assert.Equal(t, ResultImport, r.ResultKey)
		assert.Positive(t, r.Location.StartLine)
		specs = append(specs, r.Specifier)
	}
	assert.ElementsMatch(t, []string{"fs", "lodash", "./utils"}, specs)
}

func TestExecuteTypeScriptDeclarations(t *testing.T) {
	engine, pool := newTestEngine(t)
	res := parse(t, pool, `
export function calculate(a: number): number { return a; }

class User {
  save(): void {}
}

interface Shape { area(): number; }
`, lang.TypeScript)

	records, err := engine.Execute("ts-declarations", res)
	require.NoError(t, err)

	byName := map[string]Record{}
	for _, r := range records {
		byName[r.Name] = r
	}
	require.Contains(t, byName, "calculate")
	assert.Equal(t, "function", byName["calculate"].Symbol)
	require.Contains(t, byName, "User")
	assert.Equal(t, "class", byName["User"].Symbol)
	require.Contains(t, byName, "save")
	assert.Equal(t, "method", byName["save"].Symbol)
	assert.Equal(t, "User", byName["save"].Scope)
	require.Contains(t, byName, "Shape")
	assert.Equal(t, "interface", byName["Shape"].Symbol)
}

func TestExecuteTypeScriptExports(t *testing.T) {
	engine, pool := newTestEngine(t)
	res := parse(t, pool, `
export function calculate(): void {}
export const limit = 10;
const hidden = 1;
export { hidden };
`, lang.TypeScript)

	records, err := engine.Execute("ts-export-declarations", res)
	require.NoError(t, err)

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"calculate", "limit", "hidden"}, names)
}

func TestExecuteGoImportsAndDeclarations(t *testing.T) {
	engine, pool := newTestEngine(t)
	res := parse(t, pool, `package sample

import (
	"fmt"
	"github.com/stretchr/testify/assert"
)

type Greeter interface {
	Greet() string
}

type impl struct{}

func (i impl) Greet() string { return "hi" }

func Run() { fmt.Println(new(impl).Greet()) }
`, lang.Go)

	imports, err := engine.Execute("go-import-sources", res)
	require.NoError(t, err)
	specs := make([]string, 0, len(imports))
	for _, r := range imports {
		specs = append(specs, r.Specifier)
	}
	assert.ElementsMatch(t, []string{"fmt", "github.com/stretchr/testify/assert"}, specs)

	decls, err := engine.Execute("go-declarations", res)
	require.NoError(t, err)
	byName := map[string]Record{}
	for _, r := range decls {
		byName[r.Name] = r
	}
	require.Contains(t, byName, "Greeter")
	assert.Equal(t, "interface", byName["Greeter"].Symbol, "interface pattern outranks the generic type pattern")
	require.Contains(t, byName, "impl")
	assert.Equal(t, "type", byName["impl"].Symbol)
	require.Contains(t, byName, "Run")
	assert.Equal(t, "function", byName["Run"].Symbol)
}

func TestExecutePythonImports(t *testing.T) {
	engine, pool := newTestEngine(t)
	res := parse(t, pool, `
import os
import numpy as np
from collections import OrderedDict
from .utils import helper
`, lang.Python)

	records, err := engine.Execute("py-import-sources", res)
	require.NoError(t, err)
	specs := make([]string, 0, len(records))
	for _, r := range records {
		specs = append(specs, r.Specifier)
	}
	assert.Contains(t, specs, "os")
	assert.Contains(t, specs, "numpy")
	assert.Contains(t, specs, "collections")
}

func TestExecuteJavaDeclarations(t *testing.T) {
	engine, pool := newTestEngine(t)
	res := parse(t, pool, `
package com.example;

import java.util.List;

public class Account extends Base implements Auditable {
    private String owner;

    public Account(String owner) { this.owner = owner; }

    public String owner() { return owner; }
}
`, lang.Java)

	imports, err := engine.Execute("java-import-sources", res)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, "java.util.List", imports[0].Specifier)

	decls, err := engine.Execute("java-declarations", res)
	require.NoError(t, err)
	byName := map[string]Record{}
	for _, r := range decls {
		byName[r.Name] = r
	}
	assert.Contains(t, byName, "Account")
	assert.Contains(t, byName, "owner")

	relations, err := engine.Execute("java-class-relations", res)
	require.NoError(t, err)
	kinds := map[string]string{}
	for _, r := range relations {
		kinds[r.Attrs["relation"]] = r.Target
	}
	assert.Equal(t, "Base", kinds["extends"])
	assert.Equal(t, "Auditable", kinds["implements"])
}

func TestExecuteUnknownQuery(t *testing.T) {
	engine, pool := newTestEngine(t)
	res := parse(t, pool, "const x = 1;", lang.TypeScript)
	_, err := engine.Execute("no-such-query", res)
	assert.ErrorIs(t, err, ErrQueryNotFound)
}

func TestExecuteLanguageMismatch(t *testing.T) {
	engine, pool := newTestEngine(t)
	res := parse(t, pool, "const x = 1;", lang.TypeScript)
	_, err := engine.Execute("py-import-sources", res)
	assert.ErrorIs(t, err, ErrLanguageMismatch)
}

func TestExecuteForLanguageIsBestEffort(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	require.NoError(t, reg.Register(Entry{
		Name:      "ts-panicking",
		Languages: []lang.Language{lang.TypeScript},
		Pattern:   `(import_statement) @import`,
		ResultKey: ResultImport,
		Processor: func(matches []Match, ctx Context) []Record {
			panic("boom")
		},
	}))
	engine := NewEngine(reg, nil)
	pool := parser.NewPool()
	res := parse(t, pool, `import { x } from './y';`, lang.TypeScript)

	results, warnings := engine.ExecuteForLanguage(res)
	assert.NotEmpty(t, warnings, "panicking processor surfaces a warning")
	assert.Empty(t, results["ts-panicking"])
	assert.Len(t, results["ts-import-sources"], 1, "sibling queries still run")
}

func TestProcessorsAreDeterministic(t *testing.T) {
	engine, pool := newTestEngine(t)
	res := parse(t, pool, `import { a } from './a'; import { b } from './b';`, lang.TypeScript)

	first, err := engine.Execute("ts-import-sources", res)
	require.NoError(t, err)
	second, err := engine.Execute("ts-import-sources", res)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
