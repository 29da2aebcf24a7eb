package digital

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	mwlogger "github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

type handler struct {
	digitalService *Service
}

func (h *handler) upload(c echo.Context) error {
	ctx := c.Request().Context()

	params := UploadPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	header, ok := params.FormFiles["file"]
	if !ok || header == nil {
		return errcodes.ValidationError(`"file" is required`)
	}
	file, err := header.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer file.Close()

	book, err := h.digitalService.Upload(ctx, auth.UserFromContext(c), UploadOptions{
		Filename:        header.Filename,
		Size:            header.Size,
		Content:         file,
		Title:           params.Title,
		Author:          params.Author,
		Publisher:       params.Publisher,
		PublicationYear: params.PublicationYear,
		ISBN:            params.ISBN,
		Subject:         params.Subject,
		Description:     params.Description,
		Language:        params.Language,
		Category:        params.Category,
		Tags:            params.Tags,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Digital book")
	}

	book, err := h.digitalService.RetrieveDigitalBook(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListDigitalBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	digitalBooks, total, err := h.digitalService.ListDigitalBooksWithTotal(ctx, ListDigitalBooksOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		Search:   params.Search,
		Subject:  params.Subject,
		Category: params.Category,
		Language: params.Language,
		Format:   params.Format,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, ListDigitalBooksResponse{digitalBooks, total}))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Digital book")
	}

	params := UpdateDigitalBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.digitalService.RetrieveDigitalBook(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateDigitalBookOptions{Columns: []string{}}

	if params.Title != nil && *params.Title != book.Title {
		book.Title = *params.Title
		opts.Columns = append(opts.Columns, "title")
	}
	if params.Author != nil && *params.Author != book.Author {
		book.Author = *params.Author
		opts.Columns = append(opts.Columns, "author")
	}
	if params.Publisher != nil {
		book.Publisher = params.Publisher
		opts.Columns = append(opts.Columns, "publisher")
	}
	if params.PublicationYear != nil {
		book.PublicationYear = params.PublicationYear
		opts.Columns = append(opts.Columns, "publication_year")
	}
	if params.ISBN != nil {
		book.ISBN = params.ISBN
		opts.Columns = append(opts.Columns, "isbn")
	}
	if params.Subject != nil {
		book.Subject = params.Subject
		opts.Columns = append(opts.Columns, "subject")
	}
	if params.Description != nil {
		book.Description = params.Description
		opts.Columns = append(opts.Columns, "description")
	}
	if params.Language != nil {
		book.Language = params.Language
		opts.Columns = append(opts.Columns, "language")
	}
	if params.Category != nil {
		book.Category = params.Category
		opts.Columns = append(opts.Columns, "category")
	}
	if params.Tags != nil {
		book.Tags = params.Tags
		opts.Columns = append(opts.Columns, "tags")
	}

	if err := h.digitalService.UpdateDigitalBook(ctx, auth.UserFromContext(c), book, opts); err != nil {
		return errors.WithStack(err)
	}

	book, err = h.digitalService.RetrieveDigitalBook(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Digital book")
	}

	if err := h.digitalService.DeleteDigitalBook(ctx, auth.UserFromContext(c), id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) view(c echo.Context) error {
	return h.serveFile(c, false)
}

func (h *handler) download(c echo.Context) error {
	return h.serveFile(c, true)
}

// serveFile sends the stored file either inline, for the in-browser reader,
// or as an attachment. Views are always counted; downloads are de-duplicated
// per user, or per client address for anonymous readers.
func (h *handler) serveFile(c echo.Context, attachment bool) error {
	ctx := c.Request().Context()
	log := mwlogger.FromEchoContext(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Digital book")
	}

	book, err := h.digitalService.RetrieveDigitalBook(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	path, err := h.digitalService.FilePath(book)
	if err != nil {
		return errors.WithStack(err)
	}

	disposition := "inline"
	if attachment {
		disposition = "attachment"
		if _, err := h.digitalService.RecordDownload(ctx, book.ID, ViewerKey(auth.UserFromContext(c), c.RealIP())); err != nil {
			log.Err(err).Warn("failed to record download", logger.Data{"digital_book_id": book.ID})
		}
	} else if err := h.digitalService.RecordView(ctx, book.ID); err != nil {
		log.Err(err).Warn("failed to record view", logger.Data{"digital_book_id": book.ID})
	}

	c.Response().Header().Set(echo.HeaderContentType, contentTypes[book.FileFormat])
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`%s; filename=%q`, disposition, book.OriginalName))
	return c.File(path)
}

func (h *handler) stats(c echo.Context) error {
	stats, err := h.digitalService.Stats(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, stats))
}

func (h *handler) filters(c echo.Context) error {
	filters, err := h.digitalService.ListFilters(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, filters))
}

func (h *handler) createLink(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateLinkPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	link, err := h.digitalService.CreateLink(ctx, auth.UserFromContext(c), CreateLinkOptions{
		BookID:        params.BookID,
		DigitalBookID: params.DigitalBookID,
		LinkType:      params.LinkType,
		Notes:         params.Notes,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, link))
}

func (h *handler) deleteLink(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Link")
	}

	if err := h.digitalService.DeleteLink(ctx, auth.UserFromContext(c), id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) linksForDigitalBook(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Digital book")
	}

	links, err := h.digitalService.ListLinksForDigitalBook(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, links))
}

func (h *handler) linksForBook(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	links, err := h.digitalService.ListLinksForBook(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	digitalBooks := make([]*models.DigitalBook, 0, len(links))
	for _, l := range links {
		if l.DigitalBook != nil {
			digitalBooks = append(digitalBooks, l.DigitalBook)
		}
	}
	return errors.WithStack(c.JSON(http.StatusOK, digitalBooks))
}
