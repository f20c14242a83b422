package extract

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

// RecordKeys are the response keys that may hold the record list, in order
// of preference.
var RecordKeys = []string{"records", "patent_measurements"}

// Response is the parsed output of one model call.
type Response struct {
	// Records is nil unless Parsed.
	Records []Record
	// Parsed is false when the output held no record list. Such responses
	// are kept for inspection and contribute no records.
	Parsed bool
	// Raw is the model output as JSON; non-JSON text is stored as a string.
	Raw json.RawMessage
	// Undecodable holds list entries that are not record objects, such as
	// bare strings or numbers.
	Undecodable []json.RawMessage
}

// ParseResponse decodes model text. Accepted shapes are an object with one
// of RecordKeys, or a bare array of records. Markdown code fences are
// stripped first.
func ParseResponse(text string) Response {
	body := stripCodeBlock(text)
	resp := Response{Raw: rawJSON(body)}

	var list []json.RawMessage
	var obj map[string]json.RawMessage
	switch {
	case json.Unmarshal([]byte(body), &obj) == nil:
		for _, key := range RecordKeys {
			if v, ok := obj[key]; ok && json.Unmarshal(v, &list) == nil {
				resp.Parsed = true
				break
			}
		}
	case json.Unmarshal([]byte(body), &list) == nil:
		resp.Parsed = true
	}
	if !resp.Parsed {
		return resp
	}

	resp.Records = make([]Record, 0, len(list))
	for _, item := range list {
		var r Record
		if err := json.Unmarshal(item, &r); err != nil {
			resp.Undecodable = append(resp.Undecodable, item)
			continue
		}
		resp.Records = append(resp.Records, r)
	}
	return resp
}

func rawJSON(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// Truncate shortens s to at most n bytes plus an ellipsis, cutting on a rune
// boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
