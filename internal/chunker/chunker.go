// Package chunker cuts section text into bounded chunks for the extraction
// model and decides which chunks are worth sending.
package chunker

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/patgest/internal/patent"
)

// DefaultMaxChars is the chunk budget used when none is configured.
const DefaultMaxChars = 1300

// Segment joins paragraphs with single spaces and greedily packs the
// resulting words into chunks of at most maxChars runes. Words are never
// split: a word longer than maxChars becomes a chunk on its own. Joining the
// chunk texts with single spaces gives back the normalized paragraph stream.
//
// The sequence is produced in a single forward pass and stops as soon as the
// consumer does.
func Segment(section patent.SectionKind, paragraphs []string, maxChars int) iter.Seq[patent.Chunk] {
	if maxChars < 1 {
		maxChars = 1
	}
	return func(yield func(patent.Chunk) bool) {
		var (
			buf   strings.Builder
			size  int
			index int
		)
		emit := func() bool {
			c := patent.Chunk{Text: buf.String(), Section: section, Index: index}
			buf.Reset()
			size = 0
			index++
			return yield(c)
		}
		for _, para := range paragraphs {
			for _, word := range strings.Fields(para) {
				n := utf8.RuneCountInString(word)
				if size > 0 && size+1+n > maxChars {
					if !emit() {
						return
					}
				}
				if size > 0 {
					buf.WriteByte(' ')
					size++
				}
				buf.WriteString(word)
				size += n
			}
		}
		if size > 0 {
			emit()
		}
	}
}

// SegmentDocument chunks the given section of doc. The abstract is selected
// with patent.SectionAbstract.
func SegmentDocument(doc *patent.Document, section patent.SectionKind, maxChars int) iter.Seq[patent.Chunk] {
	return Segment(section, doc.Paragraphs(section), maxChars)
}
