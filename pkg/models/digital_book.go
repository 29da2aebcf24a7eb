package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Digital book file formats.
const (
	DigitalFormatPDF  = "pdf"
	DigitalFormatEPUB = "epub"
	DigitalFormatMOBI = "mobi"
)

// DigitalFormats lists every accepted upload format.
var DigitalFormats = []string{DigitalFormatPDF, DigitalFormatEPUB, DigitalFormatMOBI}

// Link types between a physical and a digital book.
const (
	LinkTypeSameEdition      = "same_edition"
	LinkTypeDifferentEdition = "different_edition"
	LinkTypeRelated          = "related"
)

type DigitalBook struct {
	bun.BaseModel `bun:"table:digital_books,alias:dgb"`

	ID              int       `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Title           string    `bun:",nullzero" json:"title"`
	Author          string    `bun:",nullzero" json:"author"`
	Filename        string    `bun:",nullzero" json:"-"`
	OriginalName    string    `bun:",nullzero" json:"original_name"`
	FileSize        int64     `json:"file_size"`
	FileFormat      string    `bun:",nullzero" json:"file_format"`
	PageCount       *int      `json:"page_count,omitempty"`
	Publisher       *string   `json:"publisher,omitempty"`
	PublicationYear *int      `json:"publication_year,omitempty"`
	ISBN            *string   `bun:"isbn" json:"isbn,omitempty"`
	Subject         *string   `json:"subject,omitempty"`
	Description     *string   `json:"description,omitempty"`
	Language        *string   `json:"language,omitempty"`
	Category        *string   `json:"category,omitempty"`
	Tags            *string   `json:"tags,omitempty"`
	ViewCount       int       `json:"view_count"`
	DownloadCount   int       `json:"download_count"`
	UploadedByID    int       `json:"uploaded_by_id"`
	UploadedBy      *User     `bun:"rel:belongs-to,join:uploaded_by_id=id" json:"uploaded_by,omitempty"`

	PhysicalLinks []*BookDigitalLink `bun:"rel:has-many,join:id=digital_book_id" json:"physical_links,omitempty"`
}

type BookDigitalLink struct {
	bun.BaseModel `bun:"table:book_digital_links,alias:bdl"`

	ID            int          `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	BookID        int          `json:"book_id"`
	Book          *Book        `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
	DigitalBookID int          `json:"digital_book_id"`
	DigitalBook   *DigitalBook `bun:"rel:belongs-to,join:digital_book_id=id" json:"digital_book,omitempty"`
	LinkType      string       `bun:",nullzero" json:"link_type"`
	Notes         *string      `json:"notes,omitempty"`
}
