package query

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/codegraph/lang"
)

// RegisterBuiltins installs the stock query set for every tree-sitter
// language. Markdown is extracted without tree-sitter and has no entries
// here.
func RegisterBuiltins(r *Registry) error {
	groups := [][]Entry{
		typescriptQueries(),
		javascriptQueries(),
		pythonQueries(),
		goQueries(),
		javaQueries(),
	}
	for _, group := range groups {
		for _, e := range group {
			if err := r.Register(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// importsProcessorFn emits one import record per @source capture, with
// quotes stripped from string-literal specifiers.
func importsProcessorFn(matches []Match, ctx Context) []Record {
	var out []Record
	for _, m := range matches {
		src := m.Capture("source")
		if src == nil {
			continue
		}
		spec := strings.Trim(src.Content(ctx.Source), `"'`)
		if spec == "" {
			continue
		}
		loc := m.Capture("import")
		if loc == nil {
			loc = src
		}
		out = append(out, Record{
			ResultKey: ResultImport,
			Specifier: spec,
			Location:  LocationOf(loc),
		})
	}
	return out
}

// declSpecificity breaks dedup ties when one syntax node matches several
// declaration patterns; higher wins.
var declSpecificity = map[string]int{
	"interface":   5,
	"enum":        5,
	"constructor": 5,
	"class":       4,
	"method":      4,
	"function":    3,
	"constant":    2,
	"property":    2,
	"variable":    1,
	"type":        1,
}

// declarationsProcessorFn emits one record per declared symbol. Capture names
// follow the convention "<kind>.name" / "<kind>.def"; methods additionally
// get their enclosing type recorded as Scope.
func declarationsProcessorFn(matches []Match, ctx Context) []Record {
	type keyed struct {
		rec  Record
		rank int
	}
	best := make(map[string]keyed)
	for _, m := range matches {
		for capture, node := range m.Captures {
			kind, ok := strings.CutSuffix(capture, ".name")
			if !ok || node == nil {
				continue
			}
			name := node.Content(ctx.Source)
			if name == "" {
				continue
			}
			def := m.Capture(kind + ".def")
			if def == nil {
				def = node
			}
			rec := Record{
				ResultKey: ResultDeclaration,
				Name:      name,
				Symbol:    kind,
				Location:  LocationOf(def),
			}
			if kind == "method" || kind == "constructor" {
				rec.Scope = enclosingTypeName(node, ctx.Source)
			}
			key := rec.Location.key() + "/" + name
			rank := declSpecificity[kind]
			if prev, ok := best[key]; !ok || rank > prev.rank {
				best[key] = keyed{rec, rank}
			}
		}
	}
	out := make([]Record, 0, len(best))
	for _, k := range best {
		out = append(out, k.rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location.StartLine != out[j].Location.StartLine {
			return out[i].Location.StartLine < out[j].Location.StartLine
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (l Location) key() string {
	return fmt.Sprintf("%d:%d:%d:%d", l.StartLine, l.StartColumn, l.EndLine, l.EndColumn)
}

// enclosingTypeName walks up from a member to the class-like node that owns
// it and returns that node's name.
func enclosingTypeName(n *sitter.Node, source []byte) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "class_declaration", "class_definition", "class_expression",
			"interface_declaration", "enum_declaration", "object_definition":
			if name := p.ChildByFieldName("name"); name != nil {
				return name.Content(source)
			}
		}
	}
	return ""
}

// exportsProcessorFn emits one record per exported symbol name.
func exportsProcessorFn(matches []Match, ctx Context) []Record {
	seen := make(map[string]bool)
	var out []Record
	for _, m := range matches {
		name := m.Capture("name")
		if name == nil {
			continue
		}
		text := name.Content(ctx.Source)
		if text == "" {
			continue
		}
		loc := m.Capture("export")
		if loc == nil {
			loc = name
		}
		key := text + "@" + LocationOf(loc).key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Record{
			ResultKey: ResultExport,
			Name:      text,
			Location:  LocationOf(loc),
		})
	}
	return out
}

// relationsProcessorFn emits extends/implements records: Name is the declaring
// type, Target the referenced type.
func relationsProcessorFn(matches []Match, ctx Context) []Record {
	var out []Record
	for _, m := range matches {
		owner := m.Capture("class.name")
		if owner == nil {
			continue
		}
		for _, relation := range []string{"extends", "implements"} {
			target := m.Capture(relation)
			if target == nil {
				continue
			}
			out = append(out, Record{
				ResultKey: ResultRelation,
				Name:      owner.Content(ctx.Source),
				Target:    target.Content(ctx.Source),
				Location:  LocationOf(target),
				Attrs:     map[string]string{"relation": relation},
			})
		}
	}
	return out
}

// callsProcessorFn emits one record per call site naming the callee.
func callsProcessorFn(matches []Match, ctx Context) []Record {
	var out []Record
	for _, m := range matches {
		callee := m.Capture("callee")
		if callee == nil {
			continue
		}
		loc := m.Capture("call")
		if loc == nil {
			loc = callee
		}
		out = append(out, Record{
			ResultKey: ResultCall,
			Name:      callee.Content(ctx.Source),
			Location:  LocationOf(loc),
		})
	}
	return out
}

func entry(name string, languages []lang.Language, resultKey, pattern string, p Processor) Entry {
	return Entry{
		Name:      name,
		Languages: languages,
		Pattern:   pattern,
		Processor: p,
		ResultKey: resultKey,
	}
}
