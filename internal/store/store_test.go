package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/patgest/internal/extract"
	"github.com/dgallion1/patgest/internal/patent"
	"github.com/dgallion1/patgest/internal/pipeline"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "patgest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func sampleDocument(id string) pipeline.DocumentResult {
	good := extract.NewRecord("film", "thickness", "10", "nm")
	bad := extract.NewRecord("film", "ratio", "5", "N/A")
	missing := extract.Record{Element: "film", Property: "color"}
	return pipeline.DocumentResult{
		DocID:       strPtr(id),
		DataSection: patent.SectionBriefSummary,
		Elements: []pipeline.ChunkResult{
			{Text: "no digits", Skipped: true, RawRecords: []extract.Record{}, ValidatedRecords: []extract.Record{}},
			{
				Text:             "The film is 10 nm thick.",
				RawRecords:       []extract.Record{good, bad, missing},
				ValidatedRecords: []extract.Record{good},
			},
		},
	}
}

func beginRun(t *testing.T, s *Store, id, hash string) {
	t.Helper()
	require.NoError(t, s.BeginRun(context.Background(), pipeline.RunInfo{
		ID:          id,
		Filename:    "corpus.xml",
		ContentHash: hash,
		Section:     patent.SectionBriefSummary,
		Model:       "fake",
		CreatedAt:   time.Now(),
	}))
}

func TestStore_RunLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	beginRun(t, s, "run-1", "abc")
	run, err := s.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusExtracting, run.Status)
	assert.Nil(t, run.FinishedAt)
	assert.Equal(t, "fake", run.Model)

	summary := pipeline.Summary{Documents: 1, Chunks: 2, Evaluated: 1, RawRecords: 3, ValidRecords: 1}
	require.NoError(t, s.FinishRun(ctx, "run-1", pipeline.StatusCompleted, summary))

	run, err = s.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, run.Status)
	assert.Equal(t, summary, run.Summary)
	require.NotNil(t, run.FinishedAt)
}

func TestStore_RunNotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Run(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, "missing", pipeline.StatusFailed, pipeline.Summary{}), ErrNotFound)
	assert.ErrorIs(t, s.DeleteRun(ctx, "missing"), ErrNotFound)
}

func TestStore_ResultsRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1", "abc")

	d0 := sampleDocument("US1")
	d1 := sampleDocument("US2")
	d1.DocID = nil
	require.NoError(t, s.SaveDocument(ctx, "run-1", 1, d1))
	require.NoError(t, s.SaveDocument(ctx, "run-1", 0, d0))

	res, err := s.Results(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, res.Patents, 2)
	assert.Equal(t, d0, res.Patents[0])
	assert.Nil(t, res.Patents[1].DocID)
	assert.Equal(t, 2, res.Summary().ValidRecords)
}

func TestStore_SaveDocumentReplaces(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1", "abc")

	require.NoError(t, s.SaveDocument(ctx, "run-1", 0, sampleDocument("US1")))
	require.NoError(t, s.SaveDocument(ctx, "run-1", 0, sampleDocument("US1")))

	recs, err := s.Records(ctx, "run-1", false)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
}

func TestStore_Records(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1", "abc")
	require.NoError(t, s.SaveDocument(ctx, "run-1", 0, sampleDocument("US1")))

	all, err := s.Records(ctx, "run-1", false)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, 1, all[0].Chunk)
	assert.False(t, all[0].Valid)
	assert.Nil(t, all[2].Record.Value)
	assert.Nil(t, all[2].Record.Unit)

	valid, err := s.Records(ctx, "run-1", true)
	require.NoError(t, err)
	require.Len(t, valid, 1)
	assert.True(t, valid[0].Valid)
	assert.Equal(t, "US1", *valid[0].DocID)
	assert.Equal(t, extract.NewRecord("film", "thickness", "10", "nm"), valid[0].Record)
}

func TestStore_FindRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	beginRun(t, s, "run-1", "abc")
	_, found, err := s.FindRun(ctx, "abc", patent.SectionBriefSummary)
	require.NoError(t, err)
	assert.False(t, found, "unfinished runs are not reused")

	require.NoError(t, s.FinishRun(ctx, "run-1", pipeline.StatusCompleted, pipeline.Summary{}))
	id, found, err := s.FindRun(ctx, "abc", patent.SectionBriefSummary)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "run-1", id)

	_, found, err = s.FindRun(ctx, "abc", patent.SectionDetailedDescription)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_ListAndDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	beginRun(t, s, "run-1", "a")
	time.Sleep(2 * time.Millisecond)
	beginRun(t, s, "run-2", "b")
	require.NoError(t, s.SaveDocument(ctx, "run-1", 0, sampleDocument("US1")))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)

	require.NoError(t, s.DeleteRun(ctx, "run-1"))
	recs, err := s.Records(ctx, "run-1", false)
	require.NoError(t, err)
	assert.Empty(t, recs)

	runs, err = s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	beginRun(t, s, "run-1", "abc")
	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
