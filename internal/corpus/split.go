// Package corpus splits concatenated bulk files into per-document blocks and
// turns them into a parsed corpus.
package corpus

import (
	"bufio"
	"bytes"
	"io"
	"iter"
	"strings"
)

// DefaultMarker is the XML declaration that opens every document in a USPTO
// bulk grant file.
const DefaultMarker = `<?xml version="1.0" encoding="UTF-8"?>`

// Block is one document's raw markup, starting with its boundary marker.
type Block = string

// Split cuts corpus on every literal occurrence of marker. Anything before the
// first marker is discarded and the marker is prepended back onto each piece,
// so each block is a complete document. A corpus with no marker (or an empty
// marker) yields no blocks.
func Split(corpus, marker string) []Block {
	if marker == "" {
		return nil
	}
	pieces := strings.Split(corpus, marker)
	if len(pieces) < 2 {
		return nil
	}
	blocks := make([]Block, 0, len(pieces)-1)
	for _, p := range pieces[1:] {
		blocks = append(blocks, marker+p)
	}
	return blocks
}

// Blocks streams the same blocks as Split from r without reading the whole
// corpus into memory. Read errors end the sequence; call the returned error
// func afterwards to inspect them.
func Blocks(r io.Reader, marker string) (iter.Seq[Block], func() error) {
	var scanErr error
	seq := func(yield func(Block) bool) {
		if marker == "" {
			return
		}
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 1024*1024), 256*1024*1024)
		sc.Split(markerSplitter([]byte(marker)))

		first := true
		for sc.Scan() {
			tok := sc.Text()
			if first {
				first = false
				// Preamble before the first marker.
				if !strings.HasPrefix(tok, marker) {
					continue
				}
			}
			if !yield(tok) {
				return
			}
		}
		scanErr = sc.Err()
	}
	return seq, func() error { return scanErr }
}

// markerSplitter returns tokens that each start at a marker occurrence and run
// up to the next one. The first token may be a preamble without a marker.
func markerSplitter(marker []byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		start := 0
		if bytes.HasPrefix(data, marker) {
			start = len(marker)
		} else if len(data) < len(marker) && bytes.HasPrefix(marker, data) && !atEOF {
			return 0, nil, nil
		}
		if i := bytes.Index(data[start:], marker); i >= 0 {
			end := start + i
			return end, data[:end], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}
