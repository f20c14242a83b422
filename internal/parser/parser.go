// Package parser turns source files into patent documents. Bulk USPTO XML
// goes through PatentParser; single documents in other formats are parsed
// into a heading tree and mapped onto sections by heading text.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/patgest/internal/doctree"
)

// Source converts one non-XML document into a DocTree.
type Source interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists file extensions accepted for ingestion.
var SupportedExtensions = map[string]bool{
	".xml":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// IsCorpusFile reports whether filename is a concatenated XML corpus that
// must be split before parsing.
func IsCorpusFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".xml")
}

// ForFile returns the source parser for a non-XML filename.
func ForFile(filename string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func baseTitle(filename string, exts ...string) string {
	name := filepath.Base(filename)
	for _, ext := range exts {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
