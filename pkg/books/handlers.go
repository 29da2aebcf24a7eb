package books

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

type handler struct {
	bookService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	books, total, err := h.bookService.ListBooksWithTotal(ctx, ListBooksOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		Search:   params.Search,
		Subject:  params.Subject,
		Language: params.Language,
		IsIssued: params.IsIssued,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, ListBooksResponse{books, total}))
}

func (h *handler) listAvailable(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListAvailableQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	books, err := h.bookService.ListBooks(ctx, ListBooksOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Search: params.Search,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := make([]AvailableBook, 0, len(books))
	for _, b := range books {
		resp = append(resp, AvailableBook{Book: b, CanIssue: !b.IsIssued})
	}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book := &models.Book{
		AccessionNumber: params.AccessionNumber,
		Title:           params.Title,
		Author:          params.Author,
		PublisherInfo:   params.PublisherInfo,
		Subject:         params.Subject,
		ClassNumber:     params.ClassNumber,
		Year:            params.Year,
		ISBN:            params.ISBN,
		Language:        params.Language,
		StorageLocation: params.StorageLocation,
	}
	if err := h.bookService.CreateBook(ctx, auth.UserFromContext(c), book); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	params := UpdateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateBookOptions{Columns: []string{}}

	if params.Title != nil && *params.Title != book.Title {
		book.Title = *params.Title
		opts.Columns = append(opts.Columns, "title")
	}
	if params.Author != nil && *params.Author != book.Author {
		book.Author = *params.Author
		opts.Columns = append(opts.Columns, "author")
	}
	if params.PublisherInfo != nil {
		book.PublisherInfo = params.PublisherInfo
		opts.Columns = append(opts.Columns, "publisher_info")
	}
	if params.Subject != nil {
		book.Subject = params.Subject
		opts.Columns = append(opts.Columns, "subject")
	}
	if params.ClassNumber != nil {
		book.ClassNumber = params.ClassNumber
		opts.Columns = append(opts.Columns, "class_number")
	}
	if params.Year != nil {
		book.Year = params.Year
		opts.Columns = append(opts.Columns, "year")
	}
	if params.ISBN != nil {
		book.ISBN = params.ISBN
		opts.Columns = append(opts.Columns, "isbn")
	}
	if params.Language != nil {
		book.Language = params.Language
		opts.Columns = append(opts.Columns, "language")
	}
	if params.StorageLocation != nil && *params.StorageLocation != book.StorageLocation {
		book.StorageLocation = *params.StorageLocation
		opts.Columns = append(opts.Columns, "storage_location")
	}

	if err := h.bookService.UpdateBook(ctx, auth.UserFromContext(c), book, opts); err != nil {
		return errors.WithStack(err)
	}

	book, err = h.bookService.RetrieveBook(ctx, RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	if err := h.bookService.DeleteBook(ctx, auth.UserFromContext(c), id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) subjects(c echo.Context) error {
	subjects, err := h.bookService.ListSubjects(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, subjects))
}

func (h *handler) languages(c echo.Context) error {
	languages, err := h.bookService.ListLanguages(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, languages))
}
