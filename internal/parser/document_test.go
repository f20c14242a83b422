package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/patgest/internal/patent"
)

func TestHeadingSection(t *testing.T) {
	tests := []struct {
		heading string
		want    patent.SectionKind
		ok      bool
	}{
		{"DETAILED DESCRIPTION OF THE INVENTION", patent.SectionDetailedDescription, true},
		{"Brief Description of the Drawings", patent.SectionDrawingsDescription, true},
		{"SUMMARY", patent.SectionBriefSummary, true},
		{"Cross-Reference to Related Applications", patent.SectionRelatedApplications, true},
		{"Statement Regarding Federally Sponsored Research", patent.SectionGovernmentInterest, true},
		{"Abstract", patent.SectionAbstract, true},
		{"Advantages", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := HeadingSection(tt.heading)
		assert.Equal(t, tt.ok, ok, tt.heading)
		assert.Equal(t, tt.want, got, tt.heading)
	}
}

func TestTreeDocument_Markdown(t *testing.T) {
	doc, err := NewPatentParser().ParseSource(strings.NewReader(draftMarkdown), "draft.md")
	require.NoError(t, err)

	assert.Equal(t, "draft", doc.DocID())
	assert.Equal(t, []string{"A transistor with a 12 nm channel."}, doc.Abstract)
	assert.Equal(t, []string{
		"The channel length is 12 nm.",
		"Leakage drops by 30 %.",
	}, doc.Sections[patent.SectionBriefSummary])
	assert.Equal(t, []string{
		"Prepared for filing.",
		"The gate oxide is 2 nm thick.",
		"step 1: anneal at 400 C",
	}, doc.Sections[patent.SectionDetailedDescription])
}

func TestTreeDocument_PlainText(t *testing.T) {
	doc, err := NewPatentParser().ParseSource(strings.NewReader("Layer one is\n5 nm.\n\nLayer two is 7 nm."), "US1.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"Layer one is 5 nm.", "Layer two is 7 nm."}, doc.Sections[patent.SectionDetailedDescription])
	assert.Empty(t, doc.Sections[patent.SectionBriefSummary])
}

func TestTreeDocument_HTML(t *testing.T) {
	page := `<html><head><title>US 9,999,999 B2</title></head><body>
<nav>skip me</nav>
<h2>Abstract</h2><p>A sensor of 3 mm.</p>
<h2>Brief Description of the Drawings</h2><p>FIG. 1 shows the sensor.</p>
<h2>Detailed Description</h2><p>The sensor is 3 mm wide.</p><script>var x = 1;</script>
</body></html>`
	doc, err := NewPatentParser().ParseSource(strings.NewReader(page), "grant.html")
	require.NoError(t, err)

	assert.Equal(t, "US 9,999,999 B2", doc.DocID())
	assert.Equal(t, []string{"A sensor of 3 mm."}, doc.Abstract)
	assert.Equal(t, []string{"The sensor is 3 mm wide."}, doc.Sections[patent.SectionDetailedDescription])
	assert.NotContains(t, doc.Sections, patent.SectionDrawingsDescription)
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.txt", "a.md", "a.markdown", "a.HTML", "a.pdf", "a.docx"} {
		_, err := ForFile(name)
		assert.NoError(t, err, name)
	}
	_, err := ForFile("a.csv")
	assert.Error(t, err)

	assert.True(t, IsCorpusFile("ipg240102.XML"))
	assert.False(t, IsCorpusFile("a.txt"))
	assert.True(t, IsSupportedExtension("ipg240102.xml"))
}
