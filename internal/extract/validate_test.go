package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestValidate_Scenario(t *testing.T) {
	v := NewValidator(nil)
	got := v.Validate([]Record{
		{Value: ptr("10"), Unit: ptr("nm")},
		{Value: ptr("ten"), Unit: ptr("nm")},
		{Value: ptr("5"), Unit: ptr("N/A")},
	})
	assert.Equal(t, []Record{{Value: ptr("10"), Unit: ptr("nm")}}, got)
}

func TestValidator_Valid(t *testing.T) {
	v := NewValidator(nil)
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"valid", NewRecord("film", "thickness", "5", "nm"), true},
		{"range", NewRecord("film", "thickness", "between 20 and 40", "nm"), true},
		{"missing value", Record{Unit: ptr("nm")}, false},
		{"missing unit", Record{Value: ptr("5")}, false},
		{"no digit", NewRecord("film", "thickness", "several", "nm"), false},
		{"empty unit", NewRecord("film", "thickness", "5", ""), false},
		{"unitless", NewRecord("ratio", "", "5", "unitless"), false},
		{"NA", NewRecord("x", "y", "5", "NA"), false},
		{"not specified", NewRecord("x", "y", "5", "not specified"), false},
		{"dash", NewRecord("x", "y", "5", "-"), false},
		{"case sensitive", NewRecord("x", "y", "5", "n/a"), true},
		{"padded unit", NewRecord("x", "y", "5", " N/A"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Valid(tt.rec))
			assert.Equal(t, tt.want, len(v.Validate([]Record{tt.rec})) == 1)
		})
	}
}

func TestValidator_CustomBlacklistAndOrder(t *testing.T) {
	v := NewValidator([]string{"pcs"})
	in := []Record{
		NewRecord("a", "", "1", "mm"),
		NewRecord("b", "", "2", "pcs"),
		NewRecord("c", "", "3", "N/A"),
		NewRecord("d", "", "4", "cm"),
	}
	got := v.Validate(in)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Element)
	assert.Equal(t, "c", got[1].Element)
	assert.Equal(t, "d", got[2].Element)
}

func TestValidator_EmptyInputEncodesAsArray(t *testing.T) {
	got := NewValidator(nil).Validate(nil)
	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestRecord_UnmarshalLenient(t *testing.T) {
	var recs []Record
	require.NoError(t, json.Unmarshal([]byte(`[
		{"element": "film", "property": "thickness", "value": 10, "unit": "nm"},
		{"element": "film", "property": "width", "value": null, "unit": "mm"},
		{"element": "film", "unit": "mm"},
		{"element": "film", "value": "3", "unit": "", "extra": "x"}
	]`), &recs))

	require.Len(t, recs, 4)
	assert.Equal(t, "10", *recs[0].Value)
	assert.Nil(t, recs[1].Value)
	assert.Nil(t, recs[2].Value)
	require.NotNil(t, recs[3].Unit)
	assert.Equal(t, "", *recs[3].Unit)

	data, err := json.Marshal(recs[2])
	require.NoError(t, err)
	assert.JSONEq(t, `{"element": "film", "property": "", "unit": "mm"}`, string(data))
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Styrene resin particles":              "styrene-resin-particles",
		"recycled polyamide 12 (rPA12) powder": "recycled-polyamide-12-rpa12-powder",
		"  --Hello--  ":                        "hello",
		"":                                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}
