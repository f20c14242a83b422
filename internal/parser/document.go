package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/patgest/internal/doctree"
	"github.com/dgallion1/patgest/internal/patent"
)

// headingSections maps heading phrases to the section they introduce. Order
// matters: the first phrase contained in a heading wins.
var headingSections = []struct {
	phrase string
	kind   patent.SectionKind
}{
	{"description of the drawings", patent.SectionDrawingsDescription},
	{"description of drawings", patent.SectionDrawingsDescription},
	{"detailed description", patent.SectionDetailedDescription},
	{"summary", patent.SectionBriefSummary},
	{"related application", patent.SectionRelatedApplications},
	{"federally sponsored", patent.SectionGovernmentInterest},
	{"government interest", patent.SectionGovernmentInterest},
	{"abstract", patent.SectionAbstract},
}

// HeadingSection classifies a heading, e.g. "DETAILED DESCRIPTION OF THE
// INVENTION" is DETDESC.
func HeadingSection(title string) (patent.SectionKind, bool) {
	t := strings.ToLower(patent.Normalize(title))
	if t == "" {
		return "", false
	}
	for _, hs := range headingSections {
		if strings.Contains(t, hs.phrase) {
			return hs.kind, true
		}
	}
	return "", false
}

// TreeDocument maps a heading tree onto a patent document. A node belongs to
// the section named by its nearest classified heading; text outside any
// classified heading counts as the detailed description. Sections outside
// the parser's kinds are discarded.
func (p *PatentParser) TreeDocument(tree *doctree.DocTree) patent.Document {
	id := tree.Title
	doc := patent.Document{
		ID:       &id,
		Abstract: []string{},
		Sections: make(map[patent.SectionKind][]string, len(p.kinds)),
	}
	for _, k := range p.kinds {
		doc.Sections[k] = []string{}
	}

	tree.Walk(func(n *doctree.DocNode, path []string) bool {
		k := sectionFor(append(path[:len(path):len(path)], n.Title))
		for _, para := range n.Paragraphs() {
			text := patent.Normalize(para)
			switch {
			case k == patent.SectionAbstract:
				doc.Abstract = append(doc.Abstract, text)
			case p.recognized[k]:
				doc.Sections[k] = append(doc.Sections[k], text)
			}
		}
		return true
	})

	if len(doc.Abstract) > 1 {
		doc.Abstract = []string{strings.Join(doc.Abstract, " ")}
	}
	return doc
}

// sectionFor returns the section of the innermost classified heading in path.
func sectionFor(path []string) patent.SectionKind {
	for i := len(path) - 1; i >= 0; i-- {
		if k, ok := HeadingSection(path[i]); ok {
			return k
		}
	}
	return patent.SectionDetailedDescription
}

// ParseSource parses a single non-XML document with the parser registered
// for its extension.
func (p *PatentParser) ParseSource(r io.Reader, filename string) (patent.Document, error) {
	src, err := ForFile(filename)
	if err != nil {
		return patent.Document{}, err
	}
	if pdf, ok := src.(*PDFParser); ok {
		pdf.FallbackPdftotext = p.PDFFallback
	}
	tree, err := src.Parse(r, filename)
	if err != nil {
		return patent.Document{}, fmt.Errorf("parse %s: %w", filename, err)
	}
	return p.TreeDocument(tree), nil
}
