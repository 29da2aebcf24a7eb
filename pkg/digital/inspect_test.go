package digital

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticnexus/nexus/pkg/errcodes"
)

func TestFormatFromFilename(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		format string
		ok     bool
	}{
		"book.pdf":         {"pdf", true},
		"Book.PDF":         {"pdf", true},
		"novel.epub":       {"epub", true},
		"kindle.mobi":      {"mobi", true},
		"archive.tar.pdf":  {"pdf", true},
		"notes.txt":        {"txt", false},
		"no-extension":     {"", false},
		"sneaky.pdf.exe":   {"exe", false},
		"comic.cbz":        {"cbz", false},
		"audiobook.m4b":    {"m4b", false},
		".epub":            {"epub", true},
		"spaces in it.pdf": {"pdf", true},
	}
	for name, tc := range cases {
		format, ok := formatFromFilename(name)
		assert.Equal(t, tc.ok, ok, name)
		assert.Equal(t, tc.format, format, name)
	}
}

func TestInspectUpload_PDF(t *testing.T) {
	t.Parallel()

	content := bytes.NewReader(minimalPDF(3))
	pages, err := inspectUpload(content, "pdf")
	require.NoError(t, err)
	require.NotNil(t, pages)
	assert.Equal(t, 3, *pages)

	pos, err := content.Seek(0, 1)
	require.NoError(t, err)
	assert.Zero(t, pos, "content is rewound")
}

func TestInspectUpload_CorruptPDF(t *testing.T) {
	t.Parallel()

	_, err := inspectUpload(bytes.NewReader([]byte("%PDF-1.4\nthis is not really a pdf\n")), "pdf")
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))
}

func TestInspectUpload_EPUB(t *testing.T) {
	t.Parallel()

	pages, err := inspectUpload(bytes.NewReader(minimalEPUB(t)), "epub")
	require.NoError(t, err)
	assert.Nil(t, pages)
}

func TestInspectUpload_Mismatch(t *testing.T) {
	t.Parallel()

	_, err := inspectUpload(bytes.NewReader(minimalEPUB(t)), "pdf")
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))

	_, err = inspectUpload(bytes.NewReader(minimalPDF(1)), "epub")
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))
}

func TestInspectUpload_MOBI(t *testing.T) {
	t.Parallel()

	header := make([]byte, 128)
	copy(header[60:], "BOOKMOBI")
	pages, err := inspectUpload(bytes.NewReader(header), "mobi")
	require.NoError(t, err)
	assert.Nil(t, pages)
}
