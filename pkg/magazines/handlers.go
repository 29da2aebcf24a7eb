package magazines

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/errcodes"
)

type handler struct {
	magazineService *Service
}

func (h *handler) createVendor(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateVendorPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	vendor, err := h.magazineService.CreateVendor(ctx, auth.UserFromContext(c), CreateVendorOptions{
		Name:           params.Name,
		ContactDetails: params.ContactDetails,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, vendor))
}

func (h *handler) listVendors(c echo.Context) error {
	vendors, err := h.magazineService.ListVendors(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, vendors))
}

// openCover opens the file sent under key, if any. The caller closes it.
func openCover(files map[string]*multipart.FileHeader, key string) (*CoverUpload, multipart.File, error) {
	header, ok := files[key]
	if !ok || header == nil {
		return nil, nil, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return &CoverUpload{Size: header.Size, Content: file}, file, nil
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateMagazinePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	cover, file, err := openCover(params.FormFiles, "cover_image")
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	magazine, err := h.magazineService.CreateMagazine(ctx, auth.UserFromContext(c), CreateMagazineOptions{
		Title:     params.Title,
		Language:  params.Language,
		Frequency: params.Frequency,
		Category:  params.Category,
		Cover:     cover,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, magazine))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListMagazinesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	magazines, err := h.magazineService.ListMagazines(ctx, ListMagazinesOptions{
		Search:    params.Search,
		Language:  params.Language,
		Frequency: params.Frequency,
		Category:  params.Category,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, magazines))
}

func (h *handler) listPublic(c echo.Context) error {
	magazines, err := h.magazineService.ListPublicMagazines(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, magazines))
}

func (h *handler) filters(c echo.Context) error {
	filters, err := h.magazineService.ListFilters(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, filters))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Magazine")
	}

	magazine, err := h.magazineService.RetrieveMagazine(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, magazine))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Magazine")
	}

	params := UpdateMagazinePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	magazine, err := h.magazineService.RetrieveMagazine(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateMagazineOptions{Columns: []string{}}

	if params.Title != nil && *params.Title != magazine.Title {
		magazine.Title = *params.Title
		opts.Columns = append(opts.Columns, "title")
	}
	if params.Language != nil && *params.Language != magazine.Language {
		magazine.Language = *params.Language
		opts.Columns = append(opts.Columns, "language")
	}
	if params.Frequency != nil {
		magazine.Frequency = params.Frequency
		opts.Columns = append(opts.Columns, "frequency")
	}
	if params.Category != nil {
		magazine.Category = params.Category
		opts.Columns = append(opts.Columns, "category")
	}
	if params.IsActive != nil && *params.IsActive != magazine.IsActive {
		magazine.IsActive = *params.IsActive
		opts.Columns = append(opts.Columns, "is_active")
	}

	if err := h.magazineService.UpdateMagazine(ctx, auth.UserFromContext(c), magazine, opts); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, magazine))
}

func (h *handler) uploadCover(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Magazine")
	}

	params := UploadCoverPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	cover, file, err := openCover(params.FormFiles, "cover_image")
	if err != nil {
		return err
	}
	if file == nil {
		return errcodes.ValidationError(`"cover_image" is required`)
	}
	defer file.Close()

	magazine, err := h.magazineService.SetCover(ctx, auth.UserFromContext(c), id, cover)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, magazine))
}

func (h *handler) cover(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Magazine")
	}

	magazine, err := h.magazineService.RetrieveMagazine(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	path, err := h.magazineService.CoverPath(magazine)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.File(path)
}

func (h *handler) logIssue(c echo.Context) error {
	ctx := c.Request().Context()

	params := LogIssuePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := LogIssueOptions{
		MagazineID:       params.MagazineID,
		VendorID:         params.VendorID,
		IssueDescription: params.IssueDescription,
		Remarks:          params.Remarks,
	}
	if params.ReceivedDate != nil && *params.ReceivedDate != "" {
		day, err := time.Parse(time.DateOnly, *params.ReceivedDate)
		if err != nil {
			return errcodes.ValidationError(`"received_date" should be in the format of YYYY-MM-DD`)
		}
		opts.ReceivedDate = &day
	}

	issue, err := h.magazineService.LogIssue(ctx, auth.UserFromContext(c), opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, issue))
}

func (h *handler) listIssues(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Magazine")
	}

	issues, err := h.magazineService.ListIssues(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, issues))
}
