// Package patent holds the document model shared by the parser, chunker and
// extraction pipeline.
package patent

import (
	"encoding/json"
	"sort"
	"strings"
)

// SectionKind identifies a region of a patent description.
type SectionKind string

const (
	SectionBriefSummary        SectionKind = "BRFSUM"
	SectionDetailedDescription SectionKind = "DETDESC"
	SectionRelatedApplications SectionKind = "RELAPP"
	SectionGovernmentInterest  SectionKind = "GOVINT"
	SectionDrawingsDescription SectionKind = "brief-description-of-drawings"

	// SectionAbstract selects the abstract field for chunking. It never
	// appears as a processing instruction.
	SectionAbstract SectionKind = "abstract"
)

// DefaultSections is the set of description sections extracted unless
// configured otherwise.
var DefaultSections = []SectionKind{SectionBriefSummary, SectionDetailedDescription}

// ParseSectionKind maps a configured name to a kind. Aliases are accepted for
// the two default sections.
func ParseSectionKind(s string) (SectionKind, bool) {
	switch strings.TrimSpace(s) {
	case "BRFSUM", "brief-summary", "BriefSummary":
		return SectionBriefSummary, true
	case "DETDESC", "detailed-description", "DetailedDescription":
		return SectionDetailedDescription, true
	case "RELAPP":
		return SectionRelatedApplications, true
	case "GOVINT":
		return SectionGovernmentInterest, true
	case "brief-description-of-drawings":
		return SectionDrawingsDescription, true
	case "abstract", "Abstract":
		return SectionAbstract, true
	}
	return "", false
}

// Document is one parsed patent. It is immutable once returned by a parser.
type Document struct {
	ID       *string
	Abstract []string
	Sections map[SectionKind][]string
}

// HasText reports whether the document carries any extractable text.
// Documents without text are not retained in an output corpus.
func (d *Document) HasText() bool {
	if len(d.Abstract) > 0 {
		return true
	}
	for _, paras := range d.Sections {
		if len(paras) > 0 {
			return true
		}
	}
	return false
}

// DocID returns the identifier or "" when absent.
func (d *Document) DocID() string {
	if d.ID == nil {
		return ""
	}
	return *d.ID
}

// Paragraphs returns the text of the given section. SectionAbstract returns
// the abstract field.
func (d *Document) Paragraphs(kind SectionKind) []string {
	if kind == SectionAbstract {
		return d.Abstract
	}
	return d.Sections[kind]
}

// MarshalJSON flattens sections into top-level keys:
// {"doc_id": ..., "abstract": [...], "BRFSUM": [...], "DETDESC": [...]}.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Sections)+2)
	out["doc_id"] = d.ID
	abstract := d.Abstract
	if abstract == nil {
		abstract = []string{}
	}
	out["abstract"] = abstract
	for kind, paras := range d.Sections {
		if paras == nil {
			paras = []string{}
		}
		out[string(kind)] = paras
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON. Any key naming a known section kind is
// read as a section.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document{Sections: make(map[SectionKind][]string)}
	for key, val := range raw {
		switch key {
		case "doc_id":
			var id *string
			if err := json.Unmarshal(val, &id); err != nil {
				return err
			}
			d.ID = id
		case "abstract":
			if err := json.Unmarshal(val, &d.Abstract); err != nil {
				return err
			}
		default:
			kind, ok := ParseSectionKind(key)
			if !ok || kind == SectionAbstract {
				continue
			}
			var paras []string
			if err := json.Unmarshal(val, &paras); err != nil {
				return err
			}
			d.Sections[kind] = paras
		}
	}
	if d.Abstract == nil {
		d.Abstract = []string{}
	}
	return nil
}

// Kinds returns the document's section kinds in a stable order.
func (d *Document) Kinds() []SectionKind {
	kinds := make([]SectionKind, 0, len(d.Sections))
	for k := range d.Sections {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Chunk is a bounded slice of one section's text, ready for extraction.
type Chunk struct {
	Text    string      `json:"text"`
	Section SectionKind `json:"section"`
	Index   int         `json:"index"`
}

// Corpus is the persisted output of a parse run.
type Corpus struct {
	Patents []Document `json:"patents"`
}

// Normalize replaces newlines with spaces, collapses whitespace runs into a
// single space and trims both ends. It is idempotent.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
