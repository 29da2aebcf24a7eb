package epub

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var isbnValidate = validator.New()

// ParseISBN pulls an ISBN-10 or ISBN-13 out of a dc:identifier value such as
// "urn:isbn:978-0-13-110362-7". The result has no separators.
func ParseISBN(value string) (string, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "URN:")
	value = strings.TrimPrefix(value, "ISBN:")
	value = strings.TrimPrefix(value, "ISBN")

	var b strings.Builder
	for _, r := range value {
		switch {
		case unicode.IsDigit(r) || r == 'X':
			b.WriteRune(r)
		case r == '-' || r == ' ':
		default:
			return "", false
		}
	}

	isbn := b.String()
	if isbnValidate.Var(isbn, "isbn") != nil {
		return "", false
	}
	return isbn, true
}

// StripTags reduces an HTML fragment to its text. Block elements become line
// breaks and blank lines are dropped.
func StripTags(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return collapse(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch a {
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
			case atom.Br:
				b.WriteByte('\n')
			case atom.P, atom.Div, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				if tt == html.EndTagToken {
					b.WriteByte('\n')
				}
			}
		}
	}
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
