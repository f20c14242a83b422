package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/patgest/internal/doctree"
)

// TextParser handles plain text files. Each blank-line separated paragraph
// becomes its own node.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := doctree.NewBuilder(baseTitle(filename, ".txt"))
	var para strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			b.Leaf(para.String(), 0)
			para.Reset()
			continue
		}
		if para.Len() > 0 {
			para.WriteByte('\n')
		}
		para.WriteString(line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	b.Leaf(para.String(), 0)
	return b.Tree(), nil
}
