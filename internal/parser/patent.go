package parser

import (
	"encoding/xml"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/dgallion1/patgest/internal/patent"
)

// PatentParser extracts the abstract, document id and description sections
// from one USPTO grant XML document.
type PatentParser struct {
	kinds      []patent.SectionKind
	recognized map[patent.SectionKind]bool

	// PDFFallback lets ParseSource shell out to pdftotext when a PDF
	// cannot be read natively.
	PDFFallback bool
}

// NewPatentParser returns a parser that fills the given sections, or
// patent.DefaultSections when none are given.
func NewPatentParser(kinds ...patent.SectionKind) *PatentParser {
	if len(kinds) == 0 {
		kinds = patent.DefaultSections
	}
	p := &PatentParser{recognized: make(map[patent.SectionKind]bool, len(kinds)), PDFFallback: true}
	for _, k := range kinds {
		if k == patent.SectionAbstract || p.recognized[k] {
			continue
		}
		p.recognized[k] = true
		p.kinds = append(p.kinds, k)
	}
	return p
}

// Kinds returns the sections this parser fills.
func (p *PatentParser) Kinds() []patent.SectionKind {
	return p.kinds
}

type paragraph struct {
	kind    patent.SectionKind
	depth   int
	hasMath bool
	text    strings.Builder
}

// Parse never fails. Missing elements leave the matching fields empty and a
// token error ends the scan with whatever was collected so far.
func (p *PatentParser) Parse(block string) patent.Document {
	doc := patent.Document{
		Abstract: []string{},
		Sections: make(map[patent.SectionKind][]string, len(p.kinds)),
	}
	for _, k := range p.kinds {
		doc.Sections[k] = []string{}
	}

	dec := xml.NewDecoder(strings.NewReader(block))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var (
		depth                        int
		idDepth, absDepth, descDepth = -1, -1, -1
		idSeen, absSeen, descSeen    bool
		idBuf, absBuf                strings.Builder
		para                         *paragraph
		machine                      = newSectionMachine(p.recognized)
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			name := t.Name.Local
			switch {
			case name == "document-id" && !idSeen:
				idSeen, idDepth = true, depth
			case name == "abstract" && !absSeen:
				absSeen, absDepth = true, depth
			case name == "description" && !descSeen:
				descSeen, descDepth = true, depth
			}
			if descDepth > 0 && depth == descDepth+1 {
				if kind, ok := machine.Target(); ok && isParagraph(name) {
					para = &paragraph{kind: kind, depth: depth}
				}
			} else if para != nil && depth == para.depth+1 && isMath(name) {
				para.hasMath = true
			}

		case xml.EndElement:
			switch depth {
			case idDepth:
				id := idBuf.String()
				doc.ID = &id
				idDepth = -1
			case absDepth:
				if text := patent.Normalize(absBuf.String()); text != "" {
					doc.Abstract = []string{text}
				}
				absDepth = -1
			case descDepth:
				descDepth = -1
			}
			if para != nil && depth == para.depth {
				if text := patent.Normalize(para.text.String()); text != "" && !para.hasMath {
					doc.Sections[para.kind] = append(doc.Sections[para.kind], text)
				}
				para = nil
			}
			depth--

		case xml.CharData:
			if idDepth > 0 {
				idBuf.Write(t)
			}
			if absDepth > 0 {
				absBuf.Write(t)
			}
			if para != nil {
				para.text.Write(t)
			}

		case xml.ProcInst:
			if descDepth > 0 && depth == descDepth {
				machine.Feed(ClassifyInstruction(t.Target, t.Inst))
			}
		}
	}

	for k, paras := range doc.Sections {
		doc.Sections[k] = dropEmpty(paras)
	}
	return doc
}

// isParagraph reports whether a description child can carry section text.
// Headings and every other element are skipped.
func isParagraph(name string) bool {
	return name == "p"
}

func isMath(name string) bool {
	return name == "maths" || name == "math"
}

func dropEmpty(paras []string) []string {
	out := paras[:0]
	for _, s := range paras {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
