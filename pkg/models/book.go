package models

import (
	"regexp"
	"time"

	"github.com/uptrace/bun"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID              int       `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	AccessionNumber string    `bun:",nullzero" json:"accession_number"`
	Title           string    `bun:",nullzero" json:"title"`
	Author          string    `bun:",nullzero" json:"author"`
	PublisherInfo   *string   `json:"publisher_info,omitempty"`
	Subject         *string   `json:"subject,omitempty"`
	ClassNumber     *string   `json:"class_number,omitempty"`
	Year            *int      `json:"year,omitempty"`
	ISBN            *string   `bun:"isbn" json:"isbn,omitempty"`
	Language        *string   `json:"language,omitempty"`
	StorageLocation string    `bun:",nullzero" json:"storage_location"`
	// IsIssued mirrors the existence of an open transaction for this book. It
	// is only ever written by circulation, in the same database transaction
	// as the transaction row itself.
	IsIssued bool `json:"is_issued"`

	DigitalLinks []*BookDigitalLink `bun:"rel:has-many,join:id=book_id" json:"digital_links,omitempty"`

	// DigitalBookID is the first linked digital book, filled in by listings.
	DigitalBookID *int `bun:"-" json:"digital_book_id,omitempty"`
}

// StorageLocationRegexp matches shelf locations of the form
// PREFIX-R-<rack>-S-<shelf>.
func StorageLocationRegexp(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-R-\d+-S-\d+$`)
}
