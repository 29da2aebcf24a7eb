package books

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var subjectDelimiterRE = regexp.MustCompile(`[\s\-/:().,]`)

// FormatSubject normalises a subject to Title Case, treating whitespace and
// the characters - / : ( ) . , as word boundaries. Delimiters are kept as-is,
// so "HANDBOOK :COMPUTER" becomes "Handbook :Computer".
func FormatSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" || strings.EqualFold(subject, "nan") {
		return ""
	}

	var sb strings.Builder
	last := 0
	for _, loc := range subjectDelimiterRE.FindAllStringIndex(subject, -1) {
		sb.WriteString(capitalizeWord(subject[last:loc[0]]))
		sb.WriteString(subject[loc[0]:loc[1]])
		last = loc[1]
	}
	sb.WriteString(capitalizeWord(subject[last:]))
	return sb.String()
}

// capitalizeWord upper-cases the first letter or digit of word and
// lower-cases everything after it.
func capitalizeWord(word string) string {
	for i, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return word[:i] + string(unicode.ToUpper(r)) + strings.ToLower(word[i+utf8.RuneLen(r):])
		}
	}
	return word
}
