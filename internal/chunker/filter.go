package chunker

import "strings"

// Filter decides whether a chunk goes to the extraction model.
type Filter func(text string) bool

// HasDigit accepts text containing at least one 0-9 character. Quantities
// written only in words ("several microns") are missed.
func HasDigit(text string) bool {
	return strings.ContainsAny(text, "0123456789")
}

// All accepts every chunk.
func All(string) bool { return true }

// MinTokens wraps f, additionally rejecting chunks estimated below n tokens.
func MinTokens(f Filter, n int) Filter {
	return func(text string) bool {
		return EstimateTokens(text) >= n && f(text)
	}
}

// Candidates is the default filter: HasDigit, plus a MinTokens floor when
// minTokens is positive.
func Candidates(minTokens int) Filter {
	if minTokens <= 0 {
		return HasDigit
	}
	return MinTokens(HasDigit, minTokens)
}

// EstimateTokens approximates the model token count of text as four tokens
// per three words.
func EstimateTokens(text string) int {
	return len(strings.Fields(text)) * 4 / 3
}
