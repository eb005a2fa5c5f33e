package app

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	suggestPhoneticThreshold = 0.70
	suggestFuzzyThreshold    = 0.85
)

// suggestIdentity finds the enrolled identity most similar to the requested
// one, for "did you mean" hints on lookups that miss.
//
// Candidates that share a Double Metaphone code with the input are ranked by
// Jaro-Winkler similarity against a lenient threshold; when no phonetic
// candidate exists, a stricter pure Jaro-Winkler pass runs instead. Returns
// the empty string when nothing is close enough.
func suggestIdentity(requested string, enrolled []string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" || len(enrolled) == 0 {
		return ""
	}

	reqPrimary, reqSecondary := matchr.DoubleMetaphone(requested)

	best := ""
	bestScore := 0.0
	bestPhonetic := false

	for _, candidate := range enrolled {
		if candidate == requested {
			continue
		}
		candPrimary, candSecondary := matchr.DoubleMetaphone(candidate)
		phonetic := codesOverlap(reqPrimary, reqSecondary, candPrimary, candSecondary)
		score := matchr.JaroWinkler(requested, candidate, false)

		if phonetic {
			if score >= suggestPhoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = candidate, score, true
			}
		} else if !bestPhonetic && score >= suggestFuzzyThreshold && score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}

// codesOverlap reports whether the two identities share at least one
// non-empty Double Metaphone code.
func codesOverlap(aP, aS, bP, bS string) bool {
	for _, a := range []string{aP, aS} {
		if a == "" {
			continue
		}
		if a == bP || (bS != "" && a == bS) {
			return true
		}
	}
	return false
}
