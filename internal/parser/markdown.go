package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/patgest/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	root := goldmark.New().Parser().Parse(text.NewReader(src))
	b := doctree.NewBuilder(baseTitle(filename, ".md", ".markdown"))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			b.Heading(h.Level, inlineText(h, src))
			continue
		}
		b.Text(inlineText(n, src))
	}
	return b.Tree(), nil
}

// inlineText flattens a node's inline text. Blocks without inline children,
// such as code blocks, contribute their raw lines instead.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok {
			buf.WriteString(inlineText(c, src))
			continue
		}
		buf.Write(t.Value(src))
		if t.SoftLineBreak() || t.HardLineBreak() {
			buf.WriteByte('\n')
		}
	}
	return strings.TrimSpace(buf.String())
}
