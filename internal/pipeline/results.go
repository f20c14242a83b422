package pipeline

import (
	"encoding/json"

	"github.com/dgallion1/patgest/internal/extract"
	"github.com/dgallion1/patgest/internal/patent"
)

// ChunkResult is the outcome for one chunk. Skipped chunks were rejected by
// the filter and never sent to the model. Unparsed holds the whole response
// when it had no record list, or the list entries that were not records.
type ChunkResult struct {
	Text             string           `json:"text"`
	Skipped          bool             `json:"skipped"`
	RawRecords       []extract.Record `json:"raw_records"`
	ValidatedRecords []extract.Record `json:"validated_records"`
	Unparsed         json.RawMessage  `json:"unparsed,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// DocumentResult holds every chunk of one document's selected section.
type DocumentResult struct {
	DocID       *string            `json:"doc_id"`
	DataSection patent.SectionKind `json:"data_section"`
	Elements    []ChunkResult      `json:"elements_processed"`
}

// Results is the raw results file.
type Results struct {
	Patents []DocumentResult `json:"patents"`
	Dropped int              `json:"dropped_documents,omitempty"`
}

// ValidChunk is a non-skipped chunk with only its validated records.
type ValidChunk struct {
	Text             string           `json:"text"`
	ValidatedRecords []extract.Record `json:"validated_records"`
}

type ValidDocument struct {
	DocID       *string            `json:"doc_id"`
	DataSection patent.SectionKind `json:"data_section"`
	Elements    []ValidChunk       `json:"elements_processed"`
}

// ValidResults is the validated-only results file.
type ValidResults struct {
	Patents []ValidDocument `json:"patents"`
}

// ValidOnly drops skipped chunks and raw records.
func (r Results) ValidOnly() ValidResults {
	out := ValidResults{Patents: make([]ValidDocument, 0, len(r.Patents))}
	for _, d := range r.Patents {
		vd := ValidDocument{DocID: d.DocID, DataSection: d.DataSection, Elements: []ValidChunk{}}
		for _, c := range d.Elements {
			if c.Skipped {
				continue
			}
			vd.Elements = append(vd.Elements, ValidChunk{Text: c.Text, ValidatedRecords: c.ValidatedRecords})
		}
		out.Patents = append(out.Patents, vd)
	}
	return out
}

// Summary is the end-of-run integrity report.
type Summary struct {
	Documents    int `json:"documents"`
	Dropped      int `json:"dropped"`
	Chunks       int `json:"chunks"`
	Evaluated    int `json:"evaluated"`
	RawRecords   int `json:"raw_records"`
	ValidRecords int `json:"valid_records"`
	Unparsed     int `json:"unparsed"`
	ModelErrors  int `json:"model_errors"`
}

// Summary counts documents, chunks and records across the results.
func (r Results) Summary() Summary {
	s := Summary{Documents: len(r.Patents), Dropped: r.Dropped}
	for _, d := range r.Patents {
		s.Add(d)
	}
	return s
}

// Add folds one document into the summary without touching Documents.
func (s *Summary) Add(d DocumentResult) {
	s.Chunks += len(d.Elements)
	for _, c := range d.Elements {
		if !c.Skipped {
			s.Evaluated++
		}
		s.RawRecords += len(c.RawRecords)
		s.ValidRecords += len(c.ValidatedRecords)
		if c.Unparsed != nil {
			s.Unparsed++
		}
		if c.Error != "" {
			s.ModelErrors++
		}
	}
}
