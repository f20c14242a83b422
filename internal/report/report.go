// Package report renders the end-of-run summary of an extraction run as
// Markdown, and as HTML through goldmark.
package report

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/patgest/internal/pipeline"
)

// Options describes the run a report is about. Every field is optional.
type Options struct {
	Title         string
	Run           *pipeline.RunInfo
	Status        pipeline.JobStatus
	MaxDocuments  int // Rows in the per-document table; 0 lists all.
	TopProperties int // Rows in the property table; 0 means 10.
}

// PropertyCount is how often a property appears among validated records.
type PropertyCount struct {
	Property string
	Count    int
}

// TopProperties counts validated records by case-folded property name,
// most frequent first with ties broken by name.
func TopProperties(res pipeline.Results, n int) []PropertyCount {
	counts := map[string]int{}
	for _, d := range res.Patents {
		for _, c := range d.Elements {
			for _, r := range c.ValidatedRecords {
				p := strings.ToLower(strings.TrimSpace(r.Property))
				if p != "" {
					counts[p]++
				}
			}
		}
	}
	out := make([]PropertyCount, 0, len(counts))
	for p, c := range counts {
		out = append(out, PropertyCount{Property: p, Count: c})
	}
	slices.SortFunc(out, func(a, b PropertyCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Property, b.Property))
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Markdown renders the summary, a per-document table and the most frequent
// validated properties.
func Markdown(res pipeline.Results, opts Options) string {
	title := opts.Title
	if title == "" {
		title = "Extraction report"
	}
	s := res.Summary()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escape(title))
	if r := opts.Run; r != nil {
		fmt.Fprintf(&b, "- Run: `%s`\n", r.ID)
		if r.Filename != "" {
			fmt.Fprintf(&b, "- File: %s\n", escape(r.Filename))
		}
		fmt.Fprintf(&b, "- Section: %s\n", r.Section)
		if r.Model != "" {
			fmt.Fprintf(&b, "- Model: %s\n", escape(r.Model))
		}
	}
	if opts.Status != "" {
		fmt.Fprintf(&b, "- Status: %s\n", opts.Status)
	}
	if opts.Run != nil || opts.Status != "" {
		b.WriteString("\n")
	}

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Count |\n|---|---:|\n")
	rows := []struct {
		label string
		n     int
	}{
		{"Documents analysed", s.Documents},
		{"Documents dropped (no text)", s.Dropped},
		{"Chunks produced", s.Chunks},
		{"Chunks evaluated", s.Evaluated},
		{"Raw records", s.RawRecords},
		{"Validated records", s.ValidRecords},
		{"Unparsed responses", s.Unparsed},
		{"Model errors", s.ModelErrors},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %d |\n", r.label, r.n)
	}
	if s.RawRecords > 0 {
		fmt.Fprintf(&b, "\nValidation kept %.1f%% of raw records.\n", 100*float64(s.ValidRecords)/float64(s.RawRecords))
	}

	if len(res.Patents) > 0 {
		b.WriteString("\n## Documents\n\n")
		b.WriteString("| Document | Section | Chunks | Evaluated | Raw | Valid |\n|---|---|---:|---:|---:|---:|\n")
		docs := res.Patents
		if opts.MaxDocuments > 0 && len(docs) > opts.MaxDocuments {
			docs = docs[:opts.MaxDocuments]
		}
		for _, d := range docs {
			var ds pipeline.Summary
			ds.Add(d)
			id := "(none)"
			if d.DocID != nil {
				id = escape(*d.DocID)
			}
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d |\n", id, d.DataSection, ds.Chunks, ds.Evaluated, ds.RawRecords, ds.ValidRecords)
		}
		if len(docs) < len(res.Patents) {
			fmt.Fprintf(&b, "\n%d more documents not shown.\n", len(res.Patents)-len(docs))
		}
	}

	n := opts.TopProperties
	if n <= 0 {
		n = 10
	}
	if top := TopProperties(res, n); len(top) > 0 {
		b.WriteString("\n## Most frequent properties\n\n")
		b.WriteString("| Property | Validated records |\n|---|---:|\n")
		for _, p := range top {
			fmt.Fprintf(&b, "| %s | %d |\n", escape(p.Property), p.Count)
		}
	}
	return b.String()
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders the Markdown report as a standalone page.
func HTML(res pipeline.Results, opts Options) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(res, opts)), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	title := opts.Title
	if title == "" {
		title = "Extraction report"
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	page.WriteString(htmlEscaper.Replace(title))
	page.WriteString("</title></head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}

var (
	mdEscaper   = strings.NewReplacer("|", `\|`, "\n", " ", "*", `\*`, "_", `\_`, "<", "&lt;", ">", "&gt;")
	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// escape keeps user text from breaking table cells or adding emphasis.
func escape(s string) string {
	return mdEscaper.Replace(s)
}
