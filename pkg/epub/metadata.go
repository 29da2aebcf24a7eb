package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Metadata is what an uploaded EPUB says about itself. Empty fields weren't
// present in the package document.
type Metadata struct {
	Title       string
	Authors     []string
	Publisher   string
	Language    string
	Description string
	ISBN        string
	Year        *int
}

// Author joins the book's authors the way the catalog stores them.
func (m *Metadata) Author() string {
	return strings.Join(m.Authors, ", ")
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type packageDocument struct {
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Publisher   string `xml:"publisher"`
		Language    string `xml:"language"`
		Description string `xml:"description"`
		Date        string `xml:"date"`
		Identifier  []struct {
			Text   string `xml:",chardata"`
			Scheme string `xml:"scheme,attr"`
		} `xml:"identifier"`
		Meta []struct {
			Text     string `xml:",chardata"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
}

// ReadMetadata reads the package document of the EPUB in r.
func ReadMetadata(r io.ReaderAt, size int64) (*Metadata, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrap(err, "not a zip archive")
	}

	opfPath, err := rootfilePath(zr)
	if err != nil {
		return nil, err
	}

	b, err := readEntry(zr, opfPath)
	if err != nil {
		return nil, err
	}

	doc := &packageDocument{}
	if err := xml.Unmarshal(b, doc); err != nil {
		return nil, errors.Wrap(err, "invalid package document")
	}

	return doc.metadata(), nil
}

// rootfilePath finds the package document through META-INF/container.xml,
// falling back to the first .opf entry in the archive.
func rootfilePath(zr *zip.Reader) (string, error) {
	if b, err := readEntry(zr, "META-INF/container.xml"); err == nil {
		c := &container{}
		if xml.Unmarshal(b, c) == nil {
			for _, rf := range c.Rootfiles {
				if rf.FullPath != "" {
					return rf.FullPath, nil
				}
			}
		}
	}

	for _, f := range zr.File {
		if path.Ext(f.Name) == ".opf" {
			return f.Name, nil
		}
	}
	return "", errors.New("no opf file found")
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	return b, errors.WithStack(err)
}

func (doc *packageDocument) metadata() *Metadata {
	md := doc.Metadata

	// EPUB 3 refinements, keyed by the refined element's id.
	refines := map[string]map[string]string{}
	for _, m := range md.Meta {
		if m.Refines == "" {
			continue
		}
		id := strings.TrimPrefix(m.Refines, "#")
		if refines[id] == nil {
			refines[id] = map[string]string{}
		}
		refines[id][m.Property] = strings.TrimSpace(m.Text)
	}

	out := &Metadata{
		Publisher:   strings.TrimSpace(md.Publisher),
		Language:    languageName(md.Language),
		Description: StripTags(md.Description),
		Year:        parseYear(md.Date),
	}

	for _, t := range md.Title {
		if out.Title == "" || refines[t.ID]["title-type"] == "main" {
			out.Title = strings.TrimSpace(t.Text)
		}
	}

	for _, c := range md.Creator {
		role := c.Role
		if role == "" {
			role = refines[c.ID]["role"]
		}
		name := strings.TrimSpace(c.Text)
		if name != "" && (role == "aut" || len(md.Creator) == 1) {
			out.Authors = append(out.Authors, name)
		}
	}

	for _, id := range md.Identifier {
		if isbn, ok := ParseISBN(id.Text); ok {
			out.ISBN = isbn
			break
		}
	}

	return out
}

func parseYear(date string) *int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year < 1000 {
		return nil
	}
	return &year
}

var languageNames = map[string]string{
	"bn": "Bengali",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"hi": "Hindi",
	"ur": "Urdu",
}

// languageName turns a BCP 47 tag like "en-US" into the catalog's language
// name. Unknown tags are kept as-is.
func languageName(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	primary := strings.ToLower(strings.SplitN(strings.ReplaceAll(tag, "_", "-"), "-", 2)[0])
	if name, ok := languageNames[primary]; ok {
		return name
	}
	return tag
}
