package books

import "github.com/ticnexus/nexus/pkg/models"

type ListBooksQuery struct {
	Limit    int     `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=500"`
	Offset   int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search   *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" mod:"trim"`
	Subject  *string `query:"subject" json:"subject,omitempty" validate:"omitempty,max=200"`
	Language *string `query:"language" json:"language,omitempty" validate:"omitempty,max=50"`
	IsIssued *bool   `query:"is_issued" json:"is_issued,omitempty"`
}

type ListAvailableQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Search *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" mod:"trim"`
}

// CreateBookPayload never carries is_issued; availability is owned by
// circulation.
type CreateBookPayload struct {
	AccessionNumber string  `json:"accession_number" validate:"required,max=50" mod:"trim"`
	Title           string  `json:"title" validate:"required,max=500" mod:"trim"`
	Author          string  `json:"author" validate:"required,max=300" mod:"trim"`
	PublisherInfo   *string `json:"publisher_info,omitempty" validate:"omitempty,max=500" mod:"trim"`
	Subject         *string `json:"subject,omitempty" validate:"omitempty,max=200" mod:"trim"`
	ClassNumber     *string `json:"class_number,omitempty" validate:"omitempty,max=50" mod:"trim"`
	Year            *int    `json:"year,omitempty" validate:"omitempty,min=1800,max=2100"`
	ISBN            *string `json:"isbn,omitempty" validate:"omitempty,isbn" mod:"trim"`
	Language        *string `json:"language,omitempty" validate:"omitempty,max=50" mod:"trim"`
	StorageLocation string  `json:"storage_location" validate:"required,storage_location" mod:"trim"`
}

// UpdateBookPayload has no accession number: it's immutable once created.
type UpdateBookPayload struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,min=1,max=500" mod:"trim"`
	Author          *string `json:"author,omitempty" validate:"omitempty,min=1,max=300" mod:"trim"`
	PublisherInfo   *string `json:"publisher_info,omitempty" validate:"omitempty,max=500" mod:"trim"`
	Subject         *string `json:"subject,omitempty" validate:"omitempty,max=200" mod:"trim"`
	ClassNumber     *string `json:"class_number,omitempty" validate:"omitempty,max=50" mod:"trim"`
	Year            *int    `json:"year,omitempty" validate:"omitempty,min=1800,max=2100"`
	ISBN            *string `json:"isbn,omitempty" validate:"omitempty,isbn" mod:"trim"`
	Language        *string `json:"language,omitempty" validate:"omitempty,max=50" mod:"trim"`
	StorageLocation *string `json:"storage_location,omitempty" validate:"omitempty,storage_location" mod:"trim"`
}

type ListBooksResponse struct {
	Books []*models.Book `json:"books"`
	Total int            `json:"total"`
}

// AvailableBook is a catalog entry as shown on the issue screen.
type AvailableBook struct {
	*models.Book
	CanIssue bool `json:"can_issue"`
}
