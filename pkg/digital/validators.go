package digital

import (
	"mime/multipart"

	"github.com/ticnexus/nexus/pkg/models"
)

// UploadPayload is the multipart form of an upload. The file itself is sent
// under the "file" key. Title and author may be left out for EPUBs that carry
// them.
type UploadPayload struct {
	Title           string  `form:"title" validate:"omitempty,max=500" mod:"trim"`
	Author          string  `form:"author" validate:"omitempty,max=300" mod:"trim"`
	Publisher       *string `form:"publisher" validate:"omitempty,max=300" mod:"trim"`
	PublicationYear *int    `form:"publication_year" validate:"omitempty,min=1000,max=2100"`
	ISBN            *string `form:"isbn" validate:"omitempty,isbn" mod:"trim"`
	Subject         *string `form:"subject" validate:"omitempty,max=200" mod:"trim"`
	Description     *string `form:"description" validate:"omitempty,max=5000" mod:"trim"`
	Language        *string `form:"language" validate:"omitempty,max=50" mod:"trim"`
	Category        *string `form:"category" validate:"omitempty,max=100" mod:"trim"`
	Tags            *string `form:"tags" validate:"omitempty,max=500" mod:"trim"`

	FormFiles map[string]*multipart.FileHeader `form:"-" json:"-"`
}

type UpdateDigitalBookPayload struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,min=1,max=500" mod:"trim"`
	Author          *string `json:"author,omitempty" validate:"omitempty,min=1,max=300" mod:"trim"`
	Publisher       *string `json:"publisher,omitempty" validate:"omitempty,max=300" mod:"trim"`
	PublicationYear *int    `json:"publication_year,omitempty" validate:"omitempty,min=1000,max=2100"`
	ISBN            *string `json:"isbn,omitempty" validate:"omitempty,isbn" mod:"trim"`
	Subject         *string `json:"subject,omitempty" validate:"omitempty,max=200" mod:"trim"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=5000" mod:"trim"`
	Language        *string `json:"language,omitempty" validate:"omitempty,max=50" mod:"trim"`
	Category        *string `json:"category,omitempty" validate:"omitempty,max=100" mod:"trim"`
	Tags            *string `json:"tags,omitempty" validate:"omitempty,max=500" mod:"trim"`
}

type ListDigitalBooksQuery struct {
	Limit    int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset   int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search   *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" mod:"trim"`
	Subject  *string `query:"subject" json:"subject,omitempty" validate:"omitempty,max=200"`
	Category *string `query:"category" json:"category,omitempty" validate:"omitempty,max=100"`
	Language *string `query:"language" json:"language,omitempty" validate:"omitempty,max=50"`
	Format   *string `query:"format" json:"format,omitempty" validate:"omitempty,oneof=pdf epub mobi" mod:"lcase"`
}

type CreateLinkPayload struct {
	BookID        int     `json:"book_id" validate:"required,min=1"`
	DigitalBookID int     `json:"digital_book_id" validate:"required,min=1"`
	LinkType      string  `json:"link_type" default:"same_edition" validate:"oneof=same_edition different_edition related"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=1000" mod:"trim"`
}

type ListDigitalBooksResponse struct {
	DigitalBooks []*models.DigitalBook `json:"digital_books"`
	Total        int                   `json:"total"`
}
