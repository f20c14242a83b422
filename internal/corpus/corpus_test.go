package corpus

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/patgest/internal/patent"
)

func grant(id, summary string) string {
	return DefaultMarker + "\n<us-patent-grant><document-id>" + id + "</document-id>" +
		`<description><?BRFSUM description="Brief Summary" end="lead"?><p>` + summary +
		`</p><?BRFSUM description="Brief Summary" end="tail"?></description></us-patent-grant>` + "\n"
}

const emptyGrant = DefaultMarker + "\n<us-patent-grant><document-id>EMPTY</document-id></us-patent-grant>\n"

func TestParseAll_OrderAndRetention(t *testing.T) {
	var blocks []Block
	for i := range 12 {
		blocks = append(blocks, grant(string(rune('A'+i)), "Layer of 5 nm."))
	}
	blocks = slices.Insert(blocks, 3, emptyGrant)

	docs, stats, err := ParseAll(context.Background(), blocks, Options{Concurrency: 3})
	require.NoError(t, err)

	assert.Equal(t, Stats{Blocks: 13, Retained: 12, Empty: 1, Dropped: 1}, stats)
	require.Len(t, docs, 12)
	for i, d := range docs {
		assert.Equal(t, string(rune('A'+i)), d.DocID())
		assert.True(t, d.HasText())
	}
}

func TestParseAll_KeepEmpty(t *testing.T) {
	docs, stats, err := ParseAll(context.Background(), []Block{emptyGrant}, Options{KeepEmpty: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Empty)
	assert.Equal(t, 0, stats.Dropped)
	assert.Equal(t, 1, stats.Retained)
	require.Len(t, docs, 1)
	assert.Equal(t, "EMPTY", docs[0].DocID())
	assert.Equal(t, []string{}, docs[0].Sections[patent.SectionBriefSummary])
}

func TestParseAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := ParseAll(ctx, []Block{grant("A", "x 1")}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseReader_SaveLoad(t *testing.T) {
	raw := "preamble\n" + grant("US1", "Width  is\n3 mm") + emptyGrant + grant("US2", "Depth is 4 mm")

	c, stats, err := ParseReader(context.Background(), strings.NewReader(raw), Options{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Blocks: 3, Retained: 2, Empty: 1, Dropped: 1}, stats)

	path := filepath.Join(t.TempDir(), "out", "parsed.json")
	require.NoError(t, Save(path, c))

	back, err := Load(path)
	require.NoError(t, err)
	require.Len(t, back.Patents, 2)
	assert.Equal(t, "US1", back.Patents[0].DocID())
	assert.Equal(t, []string{"Width is 3 mm"}, back.Patents[0].Sections[patent.SectionBriefSummary])
	assert.Equal(t, []string{}, back.Patents[1].Sections[patent.SectionDetailedDescription])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	var docs []patent.Document
	for i := range 50 {
		id := string(rune('a' + i%26))
		docs = append(docs, patent.Document{ID: &id})
	}

	assert.Len(t, Sample(docs, 0, 7), 50)
	assert.Len(t, Sample(docs, 100, 7), 50)

	a := Sample(docs, 10, 7)
	b := Sample(docs, 10, 7)
	require.Len(t, a, 10)
	assert.Equal(t, a, b, "same seed gives same sample")
}

func TestWriteBlocks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "split")
	blocks := Split(grant("A", "1")+grant("B", "2"), DefaultMarker)

	n, err := WriteBlocks(dir, slices.Values(blocks))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(dir, "patent_1.xml"))
	require.NoError(t, err)
	assert.Equal(t, blocks[1], string(data))
}

func TestParseFile(t *testing.T) {
	ctx := context.Background()

	docs, stats, err := ParseFile(ctx, strings.NewReader(grant("US1", "5 nm")+emptyGrant), "ipg.xml", Options{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, Stats{Blocks: 2, Retained: 1, Empty: 1, Dropped: 1}, stats)

	docs, stats, err = ParseFile(ctx, strings.NewReader("# Summary\n\nA 5 nm film.\n"), "draft.md", Options{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "draft", docs[0].DocID())
	assert.Equal(t, []string{"A 5 nm film."}, docs[0].Paragraphs(patent.SectionBriefSummary))
	assert.Equal(t, Stats{Blocks: 1, Retained: 1}, stats)

	docs, stats, err = ParseFile(ctx, strings.NewReader("   "), "blank.txt", Options{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, Stats{Blocks: 1, Empty: 1, Dropped: 1}, stats)

	_, _, err = ParseFile(ctx, strings.NewReader("a,b"), "data.csv", Options{})
	assert.Error(t, err)
}
