package digital

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/epub"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

func init() {
	// pdfcpu otherwise writes its default configuration into the user's
	// config directory on first use.
	api.DisableConfigDir()
}

// expectedMimeTypes lists the sniffed types accepted for each format. Many
// MOBI files carry no recognisable signature, so octet-stream is allowed there.
var expectedMimeTypes = map[string][]string{
	models.DigitalFormatPDF:  {"application/pdf"},
	models.DigitalFormatEPUB: {"application/epub+zip", "application/zip"},
	models.DigitalFormatMOBI: {"application/x-mobipocket-ebook", "application/octet-stream"},
}

var contentTypes = map[string]string{
	models.DigitalFormatPDF:  "application/pdf",
	models.DigitalFormatEPUB: "application/epub+zip",
	models.DigitalFormatMOBI: "application/x-mobipocket-ebook",
}

// formatFromFilename returns the lower-cased extension of name when it is an
// accepted digital format.
func formatFromFilename(name string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, ok := expectedMimeTypes[ext]
	return ext, ok
}

// inspectUpload checks that content really is a file of the given format and
// returns its page count when one can be determined. content is rewound
// before returning.
func inspectUpload(content io.ReadSeeker, format string) (*int, error) {
	mtype, err := mimetype.DetectReader(content)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}

	matched := false
	for _, expected := range expectedMimeTypes[format] {
		if mtype.Is(expected) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, errcodes.ValidationError("File content (" + mtype.String() + ") does not match the ." + format + " extension")
	}

	if format != models.DigitalFormatPDF {
		return nil, nil
	}

	pages, err := pdfPageCount(content)
	if err != nil {
		return nil, errcodes.ValidationError("File is not a valid PDF")
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}
	return &pages, nil
}

// pdfPageCount parses and validates a PDF and returns its number of pages.
func pdfPageCount(rs io.ReadSeeker) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(rs, conf)
	return n, errors.WithStack(err)
}

// fillFromEPUB copies the EPUB's own metadata into any field of opts the
// uploader left empty. Unreadable metadata is logged and ignored; content is
// rewound either way.
func fillFromEPUB(ctx context.Context, opts *UploadOptions) {
	log := logger.FromContext(ctx)

	ra, ok := opts.Content.(io.ReaderAt)
	if !ok {
		return
	}
	size, err := opts.Content.Seek(0, io.SeekEnd)
	if err != nil {
		log.Err(err).Warn("failed to size epub upload")
		return
	}
	defer func() {
		if _, err := opts.Content.Seek(0, io.SeekStart); err != nil {
			log.Err(err).Warn("failed to rewind epub upload")
		}
	}()

	md, err := epub.ReadMetadata(ra, size)
	if err != nil {
		log.Warn("epub metadata unavailable", logger.Data{"filename": opts.Filename, "error": err.Error()})
		return
	}

	if opts.Title == "" {
		opts.Title = md.Title
	}
	if opts.Author == "" {
		opts.Author = md.Author()
	}
	if opts.Publisher == nil && md.Publisher != "" {
		opts.Publisher = &md.Publisher
	}
	if opts.Language == nil && md.Language != "" {
		opts.Language = &md.Language
	}
	if opts.Description == nil && md.Description != "" {
		opts.Description = &md.Description
	}
	if opts.ISBN == nil && md.ISBN != "" {
		opts.ISBN = &md.ISBN
	}
	if opts.PublicationYear == nil {
		opts.PublicationYear = md.Year
	}
}
