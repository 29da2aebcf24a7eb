package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/database"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

// DefaultLanguage is applied to books created without a language.
const DefaultLanguage = "English"

type RetrieveBookOptions struct {
	ID              *int
	AccessionNumber *string
}

type ListBooksOptions struct {
	Limit    *int
	Offset   *int
	Search   *string
	Subject  *string
	Language *string
	IsIssued *bool

	includeTotal bool
}

type UpdateBookOptions struct {
	Columns []string
}

// Columns that only circulation or creation may write.
var immutableColumns = map[string]struct{}{
	"id":               {},
	"accession_number": {},
	"is_issued":        {},
	"created_at":       {},
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateBook(ctx context.Context, actor *models.User, book *models.Book) error {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "create book"); err != nil {
		return err
	}

	now := time.Now().UTC()
	book.ID = 0
	book.CreatedAt = now
	book.UpdatedAt = now
	book.IsIssued = false
	normalizeBook(book)

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Book)(nil)).
			Where("accession_number = ?", book.AccessionNumber).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if exists {
			return duplicateAccession(book.AccessionNumber)
		}

		_, err = tx.NewInsert().
			Model(book).
			Returning("*").
			Exec(ctx)
		if database.IsUniqueViolation(err) {
			return duplicateAccession(book.AccessionNumber)
		}
		return errors.WithStack(err)
	})
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("book created", logger.Data{
		"book_id":          book.ID,
		"accession_number": book.AccessionNumber,
		"actor_id":         actor.ID,
	})
	return nil
}

func duplicateAccession(accession string) error {
	return errcodes.Conflict("A book with this accession number already exists", errcodes.Details{
		"accession_number": accession,
	})
}

func normalizeBook(book *models.Book) {
	if book.Subject != nil {
		subject := FormatSubject(*book.Subject)
		if subject == "" {
			book.Subject = nil
		} else {
			book.Subject = &subject
		}
	}
	if book.Language == nil || *book.Language == "" {
		lang := DefaultLanguage
		book.Language = &lang
	}
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book)

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.AccessionNumber != nil {
		q = q.Where("b.accession_number = ?", *opts.AccessionNumber)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if opts.ID != nil {
				return nil, errcodes.NotFoundID("Book", *opts.ID)
			}
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	if err := svc.attachDigitalBookIDs(ctx, []*models.Book{book}); err != nil {
		return nil, err
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&books).
		Order("b.id ASC")

	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + *opts.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("b.title LIKE ?", pattern).
				WhereOr("b.author LIKE ?", pattern).
				WhereOr("b.accession_number LIKE ?", pattern).
				WhereOr("b.isbn LIKE ?", pattern)
		})
	}
	if opts.Subject != nil {
		q = q.Where("b.subject = ?", *opts.Subject)
	}
	if opts.Language != nil {
		q = q.Where("b.language = ?", *opts.Language)
	}
	if opts.IsIssued != nil {
		q = q.Where("b.is_issued = ?", *opts.IsIssued)
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

	if err := svc.attachDigitalBookIDs(ctx, books); err != nil {
		return nil, 0, err
	}

	return books, total, nil
}

// attachDigitalBookIDs fills in the first linked digital book of each book.
func (svc *Service) attachDigitalBookIDs(ctx context.Context, books []*models.Book) error {
	if len(books) == 0 {
		return nil
	}

	ids := make([]int, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}

	links := []*models.BookDigitalLink{}
	err := svc.db.NewSelect().
		Model(&links).
		Where("bdl.book_id IN (?)", bun.In(ids)).
		Order("bdl.id ASC").
		Scan(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	first := make(map[int]int, len(links))
	for _, l := range links {
		if _, ok := first[l.BookID]; !ok {
			first[l.BookID] = l.DigitalBookID
		}
	}
	for _, b := range books {
		if id, ok := first[b.ID]; ok {
			b.DigitalBookID = &id
		}
	}
	return nil
}

func (svc *Service) UpdateBook(ctx context.Context, actor *models.User, book *models.Book, opts UpdateBookOptions) error {
	if err := roles.AuthorizeUser(actor, roles.AdminOnly, "update book"); err != nil {
		return err
	}
	if len(opts.Columns) == 0 {
		return nil
	}
	for _, col := range opts.Columns {
		if _, ok := immutableColumns[col]; ok {
			return errcodes.ValidationError(`"` + col + `" can't be changed`)
		}
		if col == "subject" && book.Subject != nil {
			subject := FormatSubject(*book.Subject)
			book.Subject = &subject
		}
	}

	book.UpdatedAt = time.Now().UTC()
	columns := append(opts.Columns, "updated_at")

	res, err := svc.db.
		NewUpdate().
		Model(book).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFoundID("Book", book.ID)
	}

	return nil
}

// DeleteBook removes a book that isn't out on loan. Its returned circulation
// history and digital links go with it.
func (svc *Service) DeleteBook(ctx context.Context, actor *models.User, id int) error {
	if err := roles.AuthorizeUser(actor, roles.AdminOnly, "delete book"); err != nil {
		return err
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Book)(nil)).
			Where("b.id = ?", id).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFoundID("Book", id)
		}

		open := &models.Transaction{}
		err = tx.NewSelect().
			Model(open).
			Where("t.book_id = ?", id).
			Where("t.status = ?", models.TransactionStatusIssued).
			Limit(1).
			Scan(ctx)
		if err == nil {
			return errcodes.Conflict("Book is currently issued", errcodes.Details{
				"book_id":        id,
				"transaction_id": open.ID,
			})
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return errors.WithStack(err)
		}

		res, err := tx.NewDelete().
			Model((*models.Book)(nil)).
			Where("id = ?", id).
			Where("is_issued = ?", false).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errcodes.Conflict("Book is currently issued", errcodes.Details{"book_id": id})
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("book deleted", logger.Data{"book_id": id, "actor_id": actor.ID})
	return nil
}

// ListSubjects returns the distinct, non-empty subjects in the catalog.
func (svc *Service) ListSubjects(ctx context.Context) ([]string, error) {
	return svc.listDistinct(ctx, "subject")
}

// ListLanguages returns the distinct, non-empty languages in the catalog.
func (svc *Service) ListLanguages(ctx context.Context) ([]string, error) {
	return svc.listDistinct(ctx, "language")
}

func (svc *Service) listDistinct(ctx context.Context, column string) ([]string, error) {
	values := []string{}
	err := svc.db.NewSelect().
		Model((*models.Book)(nil)).
		Distinct().
		ColumnExpr("?", bun.Ident(column)).
		Where("? IS NOT NULL", bun.Ident(column)).
		Where("? != ''", bun.Ident(column)).
		OrderExpr("? ASC", bun.Ident(column)).
		Scan(ctx, &values)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return values, nil
}
