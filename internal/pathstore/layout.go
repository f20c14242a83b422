package pathstore

import (
	"strings"
)

// Layout names the keys a run is published under:
//
//	{prefix}/runs/{run}/meta
//	{prefix}/runs/{run}/documents/{doc}/meta
//	{prefix}/runs/{run}/documents/{doc}/records/{id}   manifest entry
//	{prefix}/runs/by_hash/{hash}/{run}
//	{prefix}/measurements/{element}/{property}/{id}
type Layout struct {
	Prefix string
}

func (l Layout) Run(runID string) string {
	return l.Prefix + "/runs/" + Segment(runID)
}

func (l Layout) RunMeta(runID string) string {
	return l.Run(runID) + "/meta"
}

func (l Layout) Documents(runID string) string {
	return l.Run(runID) + "/documents"
}

func (l Layout) Document(runID, docID string) string {
	return l.Documents(runID) + "/" + Segment(docID)
}

func (l Layout) DocumentMeta(runID, docID string) string {
	return l.Document(runID, docID) + "/meta"
}

func (l Layout) Manifest(runID, docID string) string {
	return l.Document(runID, docID) + "/records"
}

func (l Layout) ByHash(hash string) string {
	return l.Prefix + "/runs/by_hash/" + Segment(hash)
}

func (l Layout) Measurement(element, property, id string) string {
	return l.Prefix + "/measurements/" + Segment(element) + "/" + Segment(property) + "/" + id
}

// Segment makes s safe as one key segment. The service reports keys with
// dots as separators, so dots are replaced along with slashes and anything
// outside [A-Za-z0-9_-].
func Segment(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "unknown"
	}
	return out
}

// LastSegment returns the final component of a key in either slash or dot
// form.
func LastSegment(key string) string {
	if i := strings.LastIndexAny(key, "/."); i >= 0 {
		return key[i+1:]
	}
	return key
}
