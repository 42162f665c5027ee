package analyzer

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/oxhq/codegraph/query"
)

// markdownExtraction is the per-file result of markdown analysis: the
// heading outline plus link references.
type markdownExtraction struct {
	Headings []query.Record
	Links    []query.Record
}

// extractMarkdown parses markdown with goldmark and produces heading and
// link records in the same record shape tree-sitter queries emit, so the
// analyzer persists both through one code path.
func extractMarkdown(source []byte) (*markdownExtraction, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	out := &markdownExtraction{}
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			title := nodeText(node, source)
			if title == "" {
				return ast.WalkContinue, nil
			}
			line := 1
			if node.Lines().Len() > 0 {
				line = lineOf(source, node.Lines().At(0).Start)
			}
			out.Headings = append(out.Headings, query.Record{
				ResultKey: query.ResultHeading,
				Name:      title,
				Location:  query.Location{StartLine: line, EndLine: line},
				Attrs:     map[string]string{"level": strconv.Itoa(node.Level)},
			})
		case *ast.Link:
			dest := string(node.Destination)
			if dest != "" {
				out.Links = append(out.Links, query.Record{
					ResultKey: query.ResultReference,
					Name:      nodeText(node, source),
					Specifier: dest,
				})
			}
		case *ast.AutoLink:
			dest := string(node.URL(source))
			if dest != "" {
				out.Links = append(out.Links, query.Record{
					ResultKey: query.ResultReference,
					Name:      dest,
					Specifier: dest,
				})
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// nodeText concatenates the text segments beneath a node.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// lineOf converts a byte offset into a one-based line number.
func lineOf(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return bytes.Count(source[:offset], []byte{'\n'}) + 1
}

// isExternalLink reports whether a markdown link leaves the project.
func isExternalLink(dest string) bool {
	return strings.HasPrefix(dest, "http://") ||
		strings.HasPrefix(dest, "https://") ||
		strings.HasPrefix(dest, "mailto:")
}
