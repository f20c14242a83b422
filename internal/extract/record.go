package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Record is one candidate measurement proposed by the model. Value and Unit
// are nil when the model left the field out, which is different from an
// empty string.
type Record struct {
	Element  string  `json:"element"`
	Property string  `json:"property"`
	Value    *string `json:"value,omitempty"`
	Unit     *string `json:"unit,omitempty"`
}

// NewRecord builds a record with every field present.
func NewRecord(element, property, value, unit string) Record {
	return Record{Element: element, Property: property, Value: &value, Unit: &unit}
}

// UnmarshalJSON accepts numbers where strings are expected; models sometimes
// emit "value": 10. A null field counts as absent.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{}
	r.Element, _ = scalar(raw["element"])
	r.Property, _ = scalar(raw["property"])
	if v, ok := scalar(raw["value"]); ok {
		r.Value = &v
	}
	if u, ok := scalar(raw["unit"]); ok {
		r.Unit = &u
	}
	return nil
}

func scalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

// Slugify converts a string to a path-safe slug, e.g. for an element name.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlug.ReplaceAllString(s, "-")
	s = dashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	return s
}

var (
	nonSlug = regexp.MustCompile(`[^a-z0-9-]`)
	dashes  = regexp.MustCompile(`-+`)
)
