package corpus

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_TwoDocuments(t *testing.T) {
	corpus := DefaultMarker + "DOC1" + DefaultMarker + "DOC2"

	blocks := Split(corpus, DefaultMarker)
	require.Len(t, blocks, 2)
	assert.Equal(t, DefaultMarker+"DOC1", blocks[0])
	assert.Equal(t, DefaultMarker+"DOC2", blocks[1])
}

func TestSplit_Reconcatenates(t *testing.T) {
	tests := []struct {
		name   string
		corpus string
		marker string
	}{
		{"no preamble", "<m>a<m>b<m>c", "<m>"},
		{"preamble dropped", "junk\n<m>a\n<m>b\n", "<m>"},
		{"adjacent markers", "<m><m>x", "<m>"},
		{"trailing marker", "<m>a<m>", "<m>"},
		{"xml", DefaultMarker + "\n<r/>\n" + DefaultMarker + "\n<r>ü</r>\n", DefaultMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := Split(tt.corpus, tt.marker)
			first := strings.Index(tt.corpus, tt.marker)
			assert.Equal(t, tt.corpus[first:], strings.Join(blocks, ""))
			for _, b := range blocks {
				assert.True(t, strings.HasPrefix(b, tt.marker))
			}
		})
	}
}

func TestSplit_NoMarker(t *testing.T) {
	assert.Empty(t, Split("<r>no declaration</r>", DefaultMarker))
	assert.Empty(t, Split("", DefaultMarker))
	assert.Empty(t, Split("anything", ""))
}

func TestBlocks_MatchesSplit(t *testing.T) {
	corpora := []string{
		"",
		"preamble only",
		DefaultMarker + "DOC1" + DefaultMarker + "DOC2",
		"junk" + DefaultMarker + "a" + DefaultMarker + DefaultMarker + "c",
		strings.Repeat(DefaultMarker+"<doc>"+strings.Repeat("x", 5000)+"</doc>\n", 20),
	}
	for _, c := range corpora {
		// OneByteReader forces markers to straddle buffer refills.
		seq, errf := Blocks(iotest.OneByteReader(strings.NewReader(c)), DefaultMarker)
		var got []Block
		for b := range seq {
			got = append(got, b)
		}
		require.NoError(t, errf())

		want := Split(c, DefaultMarker)
		assert.Equal(t, len(want), len(got), "corpus %.40q", c)
		assert.Equal(t, strings.Join(want, ""), strings.Join(got, ""))
	}
}

func TestBlocks_StopEarly(t *testing.T) {
	c := DefaultMarker + "1" + DefaultMarker + "2" + DefaultMarker + "3"
	seq, _ := Blocks(strings.NewReader(c), DefaultMarker)
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestBlocks_ReadError(t *testing.T) {
	boom := errors.New("disk gone")
	seq, errf := Blocks(iotest.ErrReader(boom), DefaultMarker)
	for range seq {
		t.Fatal("no blocks expected")
	}
	assert.ErrorIs(t, errf(), boom)
}
