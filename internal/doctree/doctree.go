// Package doctree is the heading tree that non-XML sources are parsed into
// before being mapped onto patent sections.
package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Paragraphs separated by blank lines
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Paragraphs splits the node text on blank lines, dropping empty pieces.
func (n *DocNode) Paragraphs() []string {
	var out []string
	for _, p := range strings.Split(n.Text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Walk visits every node depth-first, passing the chain of ancestor titles.
// Returning false from fn skips the node's children.
func (t *DocTree) Walk(fn func(n *DocNode, path []string) bool) {
	var visit func(nodes []*DocNode, path []string)
	visit = func(nodes []*DocNode, path []string) {
		for _, n := range nodes {
			if !fn(n, path) {
				continue
			}
			visit(n.Children, append(path[:len(path):len(path)], n.Title))
		}
	}
	visit(t.Children, nil)
}

type frame struct {
	node  *DocNode
	level int
}

// Builder assembles a tree from a flat stream of headings and text, nesting
// each heading under the nearest preceding heading of a lower level.
type Builder struct {
	title   string
	root    *DocNode
	stack   []frame
	pending strings.Builder
}

func NewBuilder(title string) *Builder {
	root := &DocNode{Title: title}
	return &Builder{title: title, root: root, stack: []frame{{node: root}}}
}

// Heading opens a section at level (1 is outermost) and returns its node.
func (b *Builder) Heading(level int, title string) *DocNode {
	b.flush()
	n := &DocNode{Title: title}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, frame{node: n, level: level})
	return n
}

// Text appends a paragraph to the innermost open section.
func (b *Builder) Text(s string) {
	if s = strings.TrimSpace(s); s == "" {
		return
	}
	if b.pending.Len() > 0 {
		b.pending.WriteString("\n\n")
	}
	b.pending.WriteString(s)
}

// Leaf adds a standalone untitled node under the innermost open section.
func (b *Builder) Leaf(s string, page int) {
	if strings.TrimSpace(s) == "" {
		return
	}
	b.flush()
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, &DocNode{Text: s, Page: page})
}

func (b *Builder) flush() {
	if b.pending.Len() == 0 {
		return
	}
	top := b.stack[len(b.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n"
	}
	top.Text += b.pending.String()
	b.pending.Reset()
}

// Tree finishes the build. Text written before any heading becomes a single
// leading child.
func (b *Builder) Tree() *DocTree {
	b.flush()
	tree := &DocTree{Title: b.title, Children: b.root.Children}
	if b.root.Text != "" {
		tree.Children = append([]*DocNode{{Text: b.root.Text}}, tree.Children...)
	}
	return tree
}
