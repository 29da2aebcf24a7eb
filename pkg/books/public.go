package books

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/uptrace/bun"
)

const publicSearchLimit = 20

// PublicBook is a catalog entry as shown to anonymous visitors. Shelf
// locations and circulation history stay private.
type PublicBook struct {
	ID                int     `json:"id"`
	Title             string  `json:"title"`
	Author            string  `json:"author"`
	AccessionNumber   string  `json:"accession_number"`
	ISBN              *string `json:"isbn,omitempty"`
	Subject           *string `json:"subject,omitempty"`
	Language          *string `json:"language,omitempty"`
	IsIssued          bool    `json:"is_issued"`
	DigitalBookID     *int    `json:"digital_book_id,omitempty"`
	DigitalBookFormat *string `json:"digital_book_format,omitempty"`
}

type PublicStats struct {
	TotalBooks     int `json:"total_books"`
	AvailableBooks int `json:"available_books"`
	DigitalBooks   int `json:"digital_books"`
	Subjects       int `json:"subjects"`
}

type PublicSearchQuery struct {
	Query string `query:"q" json:"q" validate:"required,max=100" mod:"trim"`
}

// PublicSearch matches the title, author, accession number or ISBN and
// returns the first few hits along with their linked digital edition.
func (svc *Service) PublicSearch(ctx context.Context, query string) ([]*PublicBook, error) {
	limit := publicSearchLimit
	books, err := svc.ListBooks(ctx, ListBooksOptions{
		Search: &query,
		Limit:  &limit,
	})
	if err != nil {
		return nil, err
	}

	ids := []int{}
	for _, b := range books {
		if b.DigitalBookID != nil {
			ids = append(ids, *b.DigitalBookID)
		}
	}
	formats := map[int]string{}
	if len(ids) > 0 {
		digitalBooks := []*models.DigitalBook{}
		err := svc.db.NewSelect().
			Model(&digitalBooks).
			Column("id", "file_format").
			Where("dgb.id IN (?)", bun.In(ids)).
			Scan(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, d := range digitalBooks {
			formats[d.ID] = d.FileFormat
		}
	}

	results := make([]*PublicBook, 0, len(books))
	for _, b := range books {
		pb := &PublicBook{
			ID:              b.ID,
			Title:           b.Title,
			Author:          b.Author,
			AccessionNumber: b.AccessionNumber,
			ISBN:            b.ISBN,
			Subject:         b.Subject,
			Language:        b.Language,
			IsIssued:        b.IsIssued,
			DigitalBookID:   b.DigitalBookID,
		}
		if b.DigitalBookID != nil {
			if format, ok := formats[*b.DigitalBookID]; ok {
				pb.DigitalBookFormat = &format
			}
		}
		results = append(results, pb)
	}
	return results, nil
}

// PublicStats summarises the collection for the landing page.
func (svc *Service) PublicStats(ctx context.Context) (*PublicStats, error) {
	stats := &PublicStats{}

	err := svc.db.NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(CASE WHEN is_issued THEN 0 ELSE 1 END), 0)").
		ColumnExpr("COUNT(DISTINCT NULLIF(subject, ''))").
		Scan(ctx, &stats.TotalBooks, &stats.AvailableBooks, &stats.Subjects)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats.DigitalBooks, err = svc.db.NewSelect().
		Model((*models.DigitalBook)(nil)).
		Count(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return stats, nil
}

func (h *handler) publicSearch(c echo.Context) error {
	ctx := c.Request().Context()

	params := PublicSearchQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	results, err := h.bookService.PublicSearch(ctx, params.Query)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, results))
}

func (h *handler) publicStats(c echo.Context) error {
	stats, err := h.bookService.PublicStats(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, stats))
}
