package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/patgest/internal/extract"
	"github.com/dgallion1/patgest/internal/patent"
	"github.com/dgallion1/patgest/internal/pipeline"
)

func strPtr(s string) *string { return &s }

func sampleResults() pipeline.Results {
	thick := extract.NewRecord("film", "Thickness", "10", "nm")
	width := extract.NewRecord("film", "width", "3", "mm")
	bad := extract.NewRecord("film", "ratio", "5", "N/A")
	return pipeline.Results{
		Dropped: 1,
		Patents: []pipeline.DocumentResult{
			{
				DocID:       strPtr("US|1"),
				DataSection: patent.SectionBriefSummary,
				Elements: []pipeline.ChunkResult{
					{Text: "none", Skipped: true},
					{Text: "a", RawRecords: []extract.Record{thick, bad}, ValidatedRecords: []extract.Record{thick}},
				},
			},
			{
				DocID:       nil,
				DataSection: patent.SectionBriefSummary,
				Elements: []pipeline.ChunkResult{
					{Text: "b", RawRecords: []extract.Record{thick, width}, ValidatedRecords: []extract.Record{thick, width}},
				},
			},
		},
	}
}

func TestTopProperties(t *testing.T) {
	top := TopProperties(sampleResults(), 0)
	assert.Equal(t, []PropertyCount{{"thickness", 2}, {"width", 1}}, top)
	assert.Len(t, TopProperties(sampleResults(), 1), 1)
	assert.Empty(t, TopProperties(pipeline.Results{}, 5))
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleResults(), Options{
		Title:  "Run A",
		Run:    &pipeline.RunInfo{ID: "r1", Filename: "ipg.xml", Section: patent.SectionBriefSummary, Model: "fake"},
		Status: pipeline.StatusCompleted,
	})

	assert.True(t, strings.HasPrefix(md, "# Run A\n"))
	assert.Contains(t, md, "- Run: `r1`")
	assert.Contains(t, md, "- Status: completed")
	assert.Contains(t, md, "| Documents analysed | 2 |")
	assert.Contains(t, md, "| Documents dropped (no text) | 1 |")
	assert.Contains(t, md, "| Chunks produced | 3 |")
	assert.Contains(t, md, "| Chunks evaluated | 2 |")
	assert.Contains(t, md, "| Raw records | 4 |")
	assert.Contains(t, md, "| Validated records | 3 |")
	assert.Contains(t, md, "Validation kept 75.0% of raw records.")
	assert.Contains(t, md, `| US\|1 | BRFSUM | 2 | 1 | 2 | 1 |`)
	assert.Contains(t, md, "| (none) | BRFSUM | 1 | 1 | 2 | 2 |")
	assert.Contains(t, md, "| thickness | 2 |")
}

func TestMarkdown_Empty(t *testing.T) {
	md := Markdown(pipeline.Results{}, Options{})
	assert.Contains(t, md, "# Extraction report")
	assert.Contains(t, md, "| Documents analysed | 0 |")
	assert.NotContains(t, md, "## Documents")
	assert.NotContains(t, md, "Validation kept")
}

func TestMarkdown_MaxDocuments(t *testing.T) {
	md := Markdown(sampleResults(), Options{MaxDocuments: 1})
	assert.Contains(t, md, "1 more documents not shown.")
	assert.NotContains(t, md, "(none)")
}

func TestHTML(t *testing.T) {
	page, err := HTML(sampleResults(), Options{Title: "A <b> run"})
	require.NoError(t, err)
	html := string(page)

	assert.Contains(t, html, "<title>A &lt;b&gt; run</title>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>Validated records</td>")
	assert.Contains(t, html, "<h2>Summary</h2>")
	assert.NotContains(t, html, "<b>")
}
