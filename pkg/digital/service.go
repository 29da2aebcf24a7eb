package digital

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/books"
	"github.com/ticnexus/nexus/pkg/config"
	"github.com/ticnexus/nexus/pkg/database"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

type UploadOptions struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker

	Title           string
	Author          string
	Publisher       *string
	PublicationYear *int
	ISBN            *string
	Subject         *string
	Description     *string
	Language        *string
	Category        *string
	Tags            *string
}

type ListDigitalBooksOptions struct {
	Limit    *int
	Offset   *int
	Search   *string
	Subject  *string
	Category *string
	Language *string
	Format   *string

	includeTotal bool
}

type UpdateDigitalBookOptions struct {
	Columns []string
}

var updatableColumns = map[string]struct{}{
	"title":            {},
	"author":           {},
	"publisher":        {},
	"publication_year": {},
	"isbn":             {},
	"subject":          {},
	"description":      {},
	"language":         {},
	"category":         {},
	"tags":             {},
}

type CreateLinkOptions struct {
	BookID        int
	DigitalBookID int
	LinkType      string
	Notes         *string
}

type Service struct {
	db             *bun.DB
	vault          *Vault
	dedup          Deduper
	dedupWindow    time.Duration
	maxUploadBytes int64
}

func NewService(db *bun.DB, cfg *config.Config, dedup Deduper) *Service {
	return &Service{
		db:             db,
		vault:          NewVault(cfg.VaultDir),
		dedup:          dedup,
		dedupWindow:    cfg.DownloadDedupWindow,
		maxUploadBytes: int64(cfg.MaxUploadSizeMB) * 1024 * 1024,
	}
}

// Upload stores a new digital book. The file is checked against its
// extension and, for PDFs, parsed to count pages before anything is written.
// EPUBs fill in whatever metadata the caller left blank from their package
// document.
func (svc *Service) Upload(ctx context.Context, actor *models.User, opts UploadOptions) (*models.DigitalBook, error) {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "upload digital book"); err != nil {
		return nil, err
	}

	format, ok := formatFromFilename(opts.Filename)
	if !ok {
		return nil, errcodes.ValidationError(fmt.Sprintf("Only %s files are allowed", strings.Join(models.DigitalFormats, ", ")))
	}
	if opts.Size > svc.maxUploadBytes {
		return nil, errcodes.LimitExceeded(
			fmt.Sprintf("File exceeds the maximum upload size of %d MB", svc.maxUploadBytes/1024/1024),
			errcodes.Details{"file_size": opts.Size, "max_upload_size": svc.maxUploadBytes},
		)
	}

	pageCount, err := inspectUpload(opts.Content, format)
	if err != nil {
		return nil, err
	}
	if format == models.DigitalFormatEPUB {
		fillFromEPUB(ctx, &opts)
	}
	if opts.Title == "" {
		return nil, errcodes.ValidationError(`"title" is required`)
	}
	if opts.Author == "" {
		return nil, errcodes.ValidationError(`"author" is required`)
	}

	filename, size, err := svc.vault.Save(opts.Content, format)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	book := &models.DigitalBook{
		CreatedAt:       now,
		UpdatedAt:       now,
		Title:           opts.Title,
		Author:          opts.Author,
		Filename:        filename,
		OriginalName:    opts.Filename,
		FileSize:        size,
		FileFormat:      format,
		PageCount:       pageCount,
		Publisher:       opts.Publisher,
		PublicationYear: opts.PublicationYear,
		ISBN:            opts.ISBN,
		Subject:         opts.Subject,
		Description:     opts.Description,
		Language:        opts.Language,
		Category:        opts.Category,
		Tags:            opts.Tags,
		UploadedByID:    actor.ID,
	}
	normalizeDigitalBook(book)

	_, err = svc.db.NewInsert().
		Model(book).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if rerr := svc.vault.Remove(filename); rerr != nil {
			logger.FromContext(ctx).Err(rerr).Warn("failed to remove orphaned upload", logger.Data{"filename": filename})
		}
		return nil, errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("digital book uploaded", logger.Data{
		"digital_book_id": book.ID,
		"file_format":     book.FileFormat,
		"file_size":       book.FileSize,
		"actor_id":        actor.ID,
	})
	return book, nil
}

func normalizeDigitalBook(book *models.DigitalBook) {
	if book.Subject != nil {
		subject := books.FormatSubject(*book.Subject)
		if subject == "" {
			book.Subject = nil
		} else {
			book.Subject = &subject
		}
	}
	if book.Language == nil || *book.Language == "" {
		lang := books.DefaultLanguage
		book.Language = &lang
	}
}

// RetrieveDigitalBook loads a digital book along with its links to physical
// books.
func (svc *Service) RetrieveDigitalBook(ctx context.Context, id int) (*models.DigitalBook, error) {
	book := &models.DigitalBook{}
	err := svc.db.NewSelect().
		Model(book).
		Relation("UploadedBy").
		Where("dgb.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFoundID("Digital book", id)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	book.PhysicalLinks, err = svc.ListLinksForDigitalBook(ctx, id)
	if err != nil {
		return nil, err
	}
	return book, nil
}

func (svc *Service) ListDigitalBooks(ctx context.Context, opts ListDigitalBooksOptions) ([]*models.DigitalBook, error) {
	b, _, err := svc.listDigitalBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListDigitalBooksWithTotal(ctx context.Context, opts ListDigitalBooksOptions) ([]*models.DigitalBook, int, error) {
	opts.includeTotal = true
	return svc.listDigitalBooksWithTotal(ctx, opts)
}

func (svc *Service) listDigitalBooksWithTotal(ctx context.Context, opts ListDigitalBooksOptions) ([]*models.DigitalBook, int, error) {
	digitalBooks := []*models.DigitalBook{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&digitalBooks).
		Order("dgb.created_at DESC", "dgb.id DESC")

	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + *opts.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("dgb.title LIKE ?", pattern).
				WhereOr("dgb.author LIKE ?", pattern).
				WhereOr("dgb.description LIKE ?", pattern).
				WhereOr("dgb.tags LIKE ?", pattern).
				WhereOr("dgb.isbn LIKE ?", pattern)
		})
	}
	if opts.Subject != nil {
		q = q.Where("dgb.subject = ?", *opts.Subject)
	}
	if opts.Category != nil {
		q = q.Where("dgb.category = ?", *opts.Category)
	}
	if opts.Language != nil {
		q = q.Where("dgb.language = ?", *opts.Language)
	}
	if opts.Format != nil {
		q = q.Where("dgb.file_format = ?", strings.ToLower(*opts.Format))
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return digitalBooks, total, nil
}

func (svc *Service) UpdateDigitalBook(ctx context.Context, actor *models.User, book *models.DigitalBook, opts UpdateDigitalBookOptions) error {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "update digital book"); err != nil {
		return err
	}
	if len(opts.Columns) == 0 {
		return nil
	}
	for _, col := range opts.Columns {
		if _, ok := updatableColumns[col]; !ok {
			return errcodes.ValidationError(fmt.Sprintf("%q can't be changed", col))
		}
	}

	normalizeDigitalBook(book)
	book.UpdatedAt = time.Now().UTC()
	columns := append(opts.Columns, "updated_at")

	res, err := svc.db.NewUpdate().
		Model(book).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFoundID("Digital book", book.ID)
	}
	return nil
}

// DeleteDigitalBook removes the record, its links and the stored file.
func (svc *Service) DeleteDigitalBook(ctx context.Context, actor *models.User, id int) error {
	if err := roles.AuthorizeUser(actor, roles.AdminOnly, "delete digital book"); err != nil {
		return err
	}

	book := &models.DigitalBook{}
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(book).
			Where("dgb.id = ?", id).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFoundID("Digital book", id)
		}
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.BookDigitalLink)(nil)).
			Where("digital_book_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.DigitalBook)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	if err := svc.vault.Remove(book.Filename); err != nil {
		log.Err(err).Warn("failed to remove digital book file", logger.Data{"filename": book.Filename})
	}
	log.Info("digital book deleted", logger.Data{"digital_book_id": id, "actor_id": actor.ID})
	return nil
}

// FilePath returns where the file of book is stored, or NotFound when the
// file is missing from the vault.
func (svc *Service) FilePath(book *models.DigitalBook) (string, error) {
	if !svc.vault.Exists(book.Filename) {
		return "", errcodes.NotFound("File")
	}
	return svc.vault.Path(book.Filename), nil
}

// RecordView counts one view of a digital book.
func (svc *Service) RecordView(ctx context.Context, id int) error {
	_, err := svc.db.NewUpdate().
		Model((*models.DigitalBook)(nil)).
		Set("view_count = view_count + 1").
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}

// ViewerKey identifies who downloaded a book for de-duplication: the user id
// when signed in, otherwise the client address.
func ViewerKey(viewer *models.User, remoteAddr string) string {
	if viewer != nil {
		return strconv.Itoa(viewer.ID)
	}
	return "anonymous:" + remoteAddr
}

// RecordDownload counts a download unless the same viewer downloaded the same
// book within the dedup window. It reports whether the download was counted.
func (svc *Service) RecordDownload(ctx context.Context, id int, viewerKey string) (bool, error) {
	key := fmt.Sprintf("nexus:download:%d:%s", id, viewerKey)

	first, err := svc.dedup.First(ctx, key, svc.dedupWindow)
	if err != nil {
		// Count it anyway.
		logger.FromContext(ctx).Err(err).Warn("download dedup unavailable", logger.Data{"key": key})
		first = true
	}
	if !first {
		return false, nil
	}

	_, err = svc.db.NewUpdate().
		Model((*models.DigitalBook)(nil)).
		Set("download_count = download_count + 1").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return true, nil
}

type ValueCount struct {
	Value string `bun:"value" json:"value"`
	Count int    `bun:"count" json:"count"`
}

type Stats struct {
	TotalBooks     int           `json:"total_books"`
	TotalSize      int64         `json:"total_size"`
	TotalViews     int           `json:"total_views"`
	TotalDownloads int           `json:"total_downloads"`
	LinkedBooks    int           `json:"linked_books"`
	ByFormat       []*ValueCount `json:"by_format"`
	ByCategory     []*ValueCount `json:"by_category"`
	TopSubjects    []*ValueCount `json:"top_subjects"`
}

const topSubjectsLimit = 10

func (svc *Service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := svc.db.NewSelect().
		Model((*models.DigitalBook)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COALESCE(SUM(file_size), 0)").
		ColumnExpr("COALESCE(SUM(view_count), 0)").
		ColumnExpr("COALESCE(SUM(download_count), 0)").
		Scan(ctx, &stats.TotalBooks, &stats.TotalSize, &stats.TotalViews, &stats.TotalDownloads)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = svc.db.NewSelect().
		Model((*models.BookDigitalLink)(nil)).
		ColumnExpr("COUNT(DISTINCT digital_book_id)").
		Scan(ctx, &stats.LinkedBooks)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if stats.ByFormat, err = svc.countBy(ctx, "file_format", 0); err != nil {
		return nil, err
	}
	if stats.ByCategory, err = svc.countBy(ctx, "category", 0); err != nil {
		return nil, err
	}
	if stats.TopSubjects, err = svc.countBy(ctx, "subject", topSubjectsLimit); err != nil {
		return nil, err
	}
	return stats, nil
}

func (svc *Service) countBy(ctx context.Context, column string, limit int) ([]*ValueCount, error) {
	rows := []*ValueCount{}
	q := svc.db.NewSelect().
		Model((*models.DigitalBook)(nil)).
		ColumnExpr("? AS value", bun.Ident(column)).
		ColumnExpr("COUNT(*) AS count").
		Where("? IS NOT NULL", bun.Ident(column)).
		Where("? != ''", bun.Ident(column)).
		GroupExpr("?", bun.Ident(column)).
		OrderExpr("count DESC, value ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, errors.WithStack(err)
	}
	return rows, nil
}

type Filters struct {
	Subjects   []string `json:"subjects"`
	Categories []string `json:"categories"`
	Languages  []string `json:"languages"`
	Formats    []string `json:"formats"`
}

// ListFilters returns the distinct values present for each list filter.
func (svc *Service) ListFilters(ctx context.Context) (*Filters, error) {
	filters := &Filters{}
	var err error
	if filters.Subjects, err = svc.listDistinct(ctx, "subject"); err != nil {
		return nil, err
	}
	if filters.Categories, err = svc.listDistinct(ctx, "category"); err != nil {
		return nil, err
	}
	if filters.Languages, err = svc.listDistinct(ctx, "language"); err != nil {
		return nil, err
	}
	if filters.Formats, err = svc.listDistinct(ctx, "file_format"); err != nil {
		return nil, err
	}
	return filters, nil
}

func (svc *Service) listDistinct(ctx context.Context, column string) ([]string, error) {
	values := []string{}
	err := svc.db.NewSelect().
		Model((*models.DigitalBook)(nil)).
		Distinct().
		ColumnExpr("?", bun.Ident(column)).
		Where("? IS NOT NULL", bun.Ident(column)).
		Where("? != ''", bun.Ident(column)).
		OrderExpr("? ASC", bun.Ident(column)).
		Scan(ctx, &values)
	return values, errors.WithStack(err)
}

// CreateLink links a physical book to a digital one. A pair can only be
// linked once.
func (svc *Service) CreateLink(ctx context.Context, actor *models.User, opts CreateLinkOptions) (*models.BookDigitalLink, error) {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "link digital book"); err != nil {
		return nil, err
	}

	linkType := opts.LinkType
	if linkType == "" {
		linkType = models.LinkTypeSameEdition
	}
	link := &models.BookDigitalLink{
		CreatedAt:     time.Now().UTC(),
		BookID:        opts.BookID,
		DigitalBookID: opts.DigitalBookID,
		LinkType:      linkType,
		Notes:         opts.Notes,
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Book)(nil)).Where("id = ?", opts.BookID).Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFoundID("Book", opts.BookID)
		}
		exists, err = tx.NewSelect().Model((*models.DigitalBook)(nil)).Where("id = ?", opts.DigitalBookID).Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFoundID("Digital book", opts.DigitalBookID)
		}

		exists, err = tx.NewSelect().
			Model((*models.BookDigitalLink)(nil)).
			Where("book_id = ?", opts.BookID).
			Where("digital_book_id = ?", opts.DigitalBookID).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if exists {
			return duplicateLink(opts)
		}

		_, err = tx.NewInsert().Model(link).Exec(ctx)
		if database.IsUniqueViolation(err) {
			return duplicateLink(opts)
		}
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("digital book linked", logger.Data{
		"link_id":         link.ID,
		"book_id":         link.BookID,
		"digital_book_id": link.DigitalBookID,
		"actor_id":        actor.ID,
	})
	return link, nil
}

func duplicateLink(opts CreateLinkOptions) error {
	return errcodes.Conflict("These books are already linked", errcodes.Details{
		"book_id":         opts.BookID,
		"digital_book_id": opts.DigitalBookID,
	})
}

func (svc *Service) ListLinksForDigitalBook(ctx context.Context, digitalBookID int) ([]*models.BookDigitalLink, error) {
	links := []*models.BookDigitalLink{}
	err := svc.db.NewSelect().
		Model(&links).
		Relation("Book").
		Where("bdl.digital_book_id = ?", digitalBookID).
		Order("bdl.created_at ASC", "bdl.id ASC").
		Scan(ctx)
	return links, errors.WithStack(err)
}

func (svc *Service) ListLinksForBook(ctx context.Context, bookID int) ([]*models.BookDigitalLink, error) {
	links := []*models.BookDigitalLink{}
	err := svc.db.NewSelect().
		Model(&links).
		Relation("DigitalBook").
		Where("bdl.book_id = ?", bookID).
		Order("bdl.created_at ASC", "bdl.id ASC").
		Scan(ctx)
	return links, errors.WithStack(err)
}

func (svc *Service) DeleteLink(ctx context.Context, actor *models.User, id int) error {
	if err := roles.AuthorizeUser(actor, roles.AdminOnly, "unlink digital book"); err != nil {
		return err
	}

	res, err := svc.db.NewDelete().
		Model((*models.BookDigitalLink)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFoundID("Link", id)
	}

	logger.FromContext(ctx).Info("digital book unlinked", logger.Data{"link_id": id, "actor_id": actor.ID})
	return nil
}
