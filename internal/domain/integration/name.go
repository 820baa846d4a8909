package integration

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns the comparison key of a party or job name: compatibility
// decomposed, diacritics removed, case folded, and every run of punctuation or
// whitespace collapsed to a single space.
func NormalizeName(name string) string {
	// Transformers and Casers carry state; build them per call.
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripMarks, name)
	if err != nil {
		stripped = name
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// NamesMatch reports whether two names are equal after normalization
func NamesMatch(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// JobDisplayName is the remote display name of a project's job
func JobDisplayName(projectNumber, projectName string) string {
	projectNumber = strings.TrimSpace(projectNumber)
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		return projectNumber
	}
	return projectNumber + " " + projectName
}
