package magazines

import "mime/multipart"

type CreateVendorPayload struct {
	Name           string  `json:"name" validate:"required,max=200" mod:"trim"`
	ContactDetails *string `json:"contact_details,omitempty" validate:"omitempty,max=1000" mod:"trim"`
}

// CreateMagazinePayload is the multipart form for a new magazine. An optional
// cover image is sent under the "cover_image" key.
type CreateMagazinePayload struct {
	Title     string  `form:"title" validate:"required,max=300" mod:"trim"`
	Language  string  `form:"language" default:"English" validate:"max=50" mod:"trim"`
	Frequency *string `form:"frequency" validate:"omitempty,max=50" mod:"trim"`
	Category  *string `form:"category" validate:"omitempty,max=100" mod:"trim"`

	FormFiles map[string]*multipart.FileHeader `form:"-" json:"-"`
}

type UpdateMagazinePayload struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,min=1,max=300" mod:"trim"`
	Language  *string `json:"language,omitempty" validate:"omitempty,min=1,max=50" mod:"trim"`
	Frequency *string `json:"frequency,omitempty" validate:"omitempty,max=50" mod:"trim"`
	Category  *string `json:"category,omitempty" validate:"omitempty,max=100" mod:"trim"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

type UploadCoverPayload struct {
	FormFiles map[string]*multipart.FileHeader `form:"-" json:"-"`
}

type ListMagazinesQuery struct {
	Search    *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" mod:"trim"`
	Language  *string `query:"language" json:"language,omitempty" validate:"omitempty,max=50"`
	Frequency *string `query:"frequency" json:"frequency,omitempty" validate:"omitempty,max=50"`
	Category  *string `query:"category" json:"category,omitempty" validate:"omitempty,max=100"`
}

type LogIssuePayload struct {
	MagazineID       int    `json:"magazine_id" validate:"required,min=1"`
	VendorID         int    `json:"vendor_id" validate:"required,min=1"`
	IssueDescription string `json:"issue_description" validate:"required,max=100" mod:"trim"`
	// ReceivedDate is a calendar day (YYYY-MM-DD) and defaults to today.
	ReceivedDate *string `json:"received_date,omitempty" validate:"omitempty,date" mod:"trim"`
	Remarks      *string `json:"remarks,omitempty" validate:"omitempty,max=1000" mod:"trim"`
}
