package epub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseISBN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"urn:isbn:978-0-13-110362-7", "9780131103627", true},
		{"ISBN 0-13-110362-8", "0131103628", true},
		{"9780131103627", "9780131103627", true},
		{"9780131103620", "", false},
		{"urn:uuid:0b0c1f3c-5a43-4c39-9d4e-1d4f1a0c2b11", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseISBN(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "Just words", "Just words"},
		{"paragraphs", "<p>One</p><p>Two</p>", "One\nTwo"},
		{"line breaks", "a<br>b<br/>c", "a\nb\nc"},
		{"entities", "Tom &amp; Jerry &lt;3", "Tom & Jerry <3"},
		{"whitespace", "<div>  lots   of\tspace </div>", "lots of space"},
		{"script dropped", "<p>kept</p><script>alert(1)</script>", "kept"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StripTags(tt.input))
		})
	}
}

func TestLanguageName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "English", languageName("en"))
	assert.Equal(t, "English", languageName("EN_gb"))
	assert.Equal(t, "Hindi", languageName("hi-IN"))
	assert.Equal(t, "tlh", languageName("tlh"))
	assert.Equal(t, "", languageName(" "))
}
