package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Vendor struct {
	bun.BaseModel `bun:"table:vendors,alias:v"`

	ID             int       `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Name           string    `bun:",nullzero" json:"name"`
	ContactDetails *string   `json:"contact_details,omitempty"`
}

type Magazine struct {
	bun.BaseModel `bun:"table:magazines,alias:m"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Title      string    `bun:",nullzero" json:"title"`
	Language   string    `bun:",nullzero" json:"language"`
	Frequency  *string   `json:"frequency,omitempty"`
	Category   *string   `json:"category,omitempty"`
	CoverImage *string   `json:"cover_image,omitempty"`
	IsActive   bool      `json:"is_active"`

	// RecentIssues is filled in by the public listing.
	RecentIssues []*MagazineIssue `bun:"-" json:"recent_issues,omitempty"`
}

type MagazineIssue struct {
	bun.BaseModel `bun:"table:magazine_issues,alias:mi"`

	ID               int       `bun:",pk,nullzero" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	MagazineID       int       `json:"magazine_id"`
	IssueDescription string    `bun:",nullzero" json:"issue_description"`
	ReceivedDate     time.Time `json:"received_date"`
	VendorID         int       `json:"vendor_id"`
	Vendor           *Vendor   `bun:"rel:belongs-to,join:vendor_id=id" json:"vendor,omitempty"`
	Remarks          *string   `json:"remarks,omitempty"`
}
