package extract

import "strings"

// DefaultUnitBlacklist holds unit strings that mean the model found no unit.
var DefaultUnitBlacklist = []string{"N/A", "unitless", "", "NA", "not specified", "-"}

// Validator accepts candidate records that look like real measurements.
type Validator struct {
	blacklist map[string]bool
}

// NewValidator returns a validator rejecting the given units. A nil
// blacklist means DefaultUnitBlacklist.
func NewValidator(blacklist []string) *Validator {
	if blacklist == nil {
		blacklist = DefaultUnitBlacklist
	}
	v := &Validator{blacklist: make(map[string]bool, len(blacklist))}
	for _, u := range blacklist {
		v.blacklist[u] = true
	}
	return v
}

// Valid reports whether r has both value and unit, the value contains a
// digit and the unit (compared case-sensitively) is not blacklisted.
func (v *Validator) Valid(r Record) bool {
	if r.Value == nil || r.Unit == nil {
		return false
	}
	if !strings.ContainsAny(*r.Value, "0123456789") {
		return false
	}
	return !v.blacklist[*r.Unit]
}

// Validate returns the valid candidates in input order. The result is never
// nil so it encodes as [].
func (v *Validator) Validate(candidates []Record) []Record {
	out := make([]Record, 0, len(candidates))
	for _, r := range candidates {
		if v.Valid(r) {
			out = append(out, r)
		}
	}
	return out
}
