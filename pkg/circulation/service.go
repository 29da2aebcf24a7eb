package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/database"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

type IssueOptions struct {
	BookID int
	UserID int
	// DueDate takes precedence over Days. When both are nil the default loan
	// period applies.
	DueDate *time.Time
	Days    *int
	Notes   *string
}

type ListTransactionsOptions struct {
	Limit  *int
	Offset *int
	// Status filters on the effective status, so Issued excludes overdue
	// transactions.
	Status   *string
	UserID   *int
	BookID   *int
	Search   *string
	OpenOnly bool

	includeTotal bool
}

type Service struct {
	db  *bun.DB
	now func() time.Time
}

func NewService(db *bun.DB) *Service {
	return NewServiceWithClock(db, time.Now)
}

// NewServiceWithClock creates a service that reads the current time from
// now instead of the wall clock.
func NewServiceWithClock(db *bun.DB, now func() time.Time) *Service {
	return &Service{db: db, now: now}
}

// clock is truncated to what SQLite keeps, so a returned transaction matches
// a later read of it.
func (svc *Service) clock() time.Time {
	return svc.now().UTC().Truncate(time.Microsecond)
}

// Issue lends a book to a user. The book's availability flag is flipped with
// a conditional update in the same database transaction as the insert, so
// of two concurrent issues of one book exactly one succeeds.
func (svc *Service) Issue(ctx context.Context, actor *models.User, opts IssueOptions) (*models.Transaction, error) {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "issue book"); err != nil {
		return nil, err
	}

	now := svc.clock()
	dueDate, err := resolveDueDate(now, opts)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{}
	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		book, err := retrieveBook(ctx, tx, opts.BookID)
		if err != nil {
			return err
		}

		user := &models.User{}
		err = tx.NewSelect().
			Model(user).
			Where("u.id = ?", opts.UserID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFoundID("User", opts.UserID)
		}
		if err != nil {
			return errors.WithStack(err)
		}
		if !user.IsActive {
			return errcodes.InvalidState("User account is inactive", errcodes.Details{"user_id": user.ID})
		}

		res, err := tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("is_issued = ?", true).
			Set("updated_at = ?", now).
			Where("id = ?", book.ID).
			Where("is_issued = ?", false).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return alreadyIssued(book)
		}
		book.IsIssued = true

		*txn = models.Transaction{
			CreatedAt: now,
			BookID:    book.ID,
			UserID:    user.ID,
			IssueDate: now,
			DueDate:   dueDate,
			Status:    models.TransactionStatusIssued,
			Notes:     nonEmpty(opts.Notes),
		}
		_, err = tx.NewInsert().Model(txn).Exec(ctx)
		if database.IsUniqueViolation(err) {
			return alreadyIssued(book)
		}
		if err != nil {
			return errors.WithStack(err)
		}

		txn.Book = book
		txn.User = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("book issued", logger.Data{
		"transaction_id": txn.ID,
		"book_id":        txn.BookID,
		"user_id":        txn.UserID,
		"due_date":       txn.DueDate,
		"actor_id":       actor.ID,
	})
	return txn, nil
}

func resolveDueDate(now time.Time, opts IssueOptions) (time.Time, error) {
	maxLoan := time.Duration(models.MaxLoanDays) * 24 * time.Hour

	switch {
	case opts.DueDate != nil:
		due := opts.DueDate.UTC().Truncate(time.Microsecond)
		if !due.After(now) {
			return time.Time{}, errcodes.ValidationError(`"due_date" must be in the future`)
		}
		if due.Sub(now) > maxLoan {
			return time.Time{}, errcodes.ValidationError(fmt.Sprintf(`"due_date" must be within %d days`, models.MaxLoanDays))
		}
		return due, nil
	case opts.Days != nil:
		if *opts.Days < 1 || *opts.Days > models.MaxLoanDays {
			return time.Time{}, errcodes.ValidationError(fmt.Sprintf(`"days" must be between 1 and %d`, models.MaxLoanDays))
		}
		return now.Add(time.Duration(*opts.Days) * 24 * time.Hour), nil
	default:
		return now.Add(models.DefaultLoanPeriod), nil
	}
}

func alreadyIssued(book *models.Book) error {
	return errcodes.Conflict(
		fmt.Sprintf("Book %q (accession %s) is already issued", book.Title, book.AccessionNumber),
		errcodes.Details{"book_id": book.ID, "accession_number": book.AccessionNumber},
	)
}

func retrieveBook(ctx context.Context, db bun.IDB, id int) (*models.Book, error) {
	book := &models.Book{}
	err := db.NewSelect().
		Model(book).
		Where("b.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFoundID("Book", id)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return book, nil
}

func retrieveTransaction(ctx context.Context, db bun.IDB, id int) (*models.Transaction, error) {
	txn := &models.Transaction{}
	err := db.NewSelect().
		Model(txn).
		Relation("Book").
		Relation("User").
		Where("t.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errcodes.NotFoundID("Transaction", id)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return txn, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// Return closes an open transaction and makes its book available again. A
// second return of the same transaction fails rather than silently
// succeeding.
func (svc *Service) Return(ctx context.Context, actor *models.User, id int, notes *string) (*models.Transaction, error) {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "return book"); err != nil {
		return nil, err
	}

	now := svc.clock()
	var txn *models.Transaction
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		txn, err = retrieveTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if !txn.IsOpen() {
			return alreadyReturned(txn)
		}

		if n := nonEmpty(notes); n != nil {
			if txn.Notes != nil && *txn.Notes != "" {
				appended := *txn.Notes + "\n" + *n
				txn.Notes = &appended
			} else {
				txn.Notes = n
			}
		}

		res, err := tx.NewUpdate().
			Model((*models.Transaction)(nil)).
			Set("status = ?", models.TransactionStatusReturned).
			Set("return_date = ?", now).
			Set("notes = ?", txn.Notes).
			Where("id = ?", txn.ID).
			Where("status = ?", models.TransactionStatusIssued).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return alreadyReturned(txn)
		}

		_, err = tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("is_issued = ?", false).
			Set("updated_at = ?", now).
			Where("id = ?", txn.BookID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		txn.Status = models.TransactionStatusReturned
		txn.ReturnDate = &now
		if txn.Book != nil {
			txn.Book.IsIssued = false
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("book returned", logger.Data{
		"transaction_id": txn.ID,
		"book_id":        txn.BookID,
		"user_id":        txn.UserID,
		"actor_id":       actor.ID,
	})
	return txn, nil
}

func alreadyReturned(txn *models.Transaction) error {
	details := errcodes.Details{"transaction_id": txn.ID}
	if txn.ReturnDate != nil {
		details["return_date"] = txn.ReturnDate
	}
	return errcodes.InvalidState("This book has already been returned", details)
}

// Extend pushes the due date of an open transaction out by the extension
// period, at most MaxExtensions times.
func (svc *Service) Extend(ctx context.Context, actor *models.User, id int) (*models.Transaction, error) {
	if err := roles.AuthorizeUser(actor, roles.LibrarianOrAdmin, "extend loan"); err != nil {
		return nil, err
	}

	var txn *models.Transaction
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		txn, err = retrieveTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if !txn.IsOpen() {
			return errcodes.InvalidState("A returned book can't be extended", errcodes.Details{"transaction_id": txn.ID})
		}
		if txn.ExtensionCount >= models.MaxExtensions {
			return errcodes.LimitExceeded(
				fmt.Sprintf("Maximum extension limit (%d) reached for this book", models.MaxExtensions),
				errcodes.Details{
					"transaction_id":  txn.ID,
					"extension_count": txn.ExtensionCount,
					"max_extensions":  models.MaxExtensions,
					"due_date":        txn.DueDate,
				},
			)
		}

		newDue := txn.DueDate.Add(models.ExtensionPeriod)
		res, err := tx.NewUpdate().
			Model((*models.Transaction)(nil)).
			Set("due_date = ?", newDue).
			Set("extension_count = extension_count + 1").
			Where("id = ?", txn.ID).
			Where("status = ?", models.TransactionStatusIssued).
			Where("extension_count = ?", txn.ExtensionCount).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errcodes.Conflict("Transaction was modified concurrently", errcodes.Details{"transaction_id": txn.ID})
		}

		txn.DueDate = newDue
		txn.ExtensionCount++
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("loan extended", logger.Data{
		"transaction_id":  txn.ID,
		"extension_count": txn.ExtensionCount,
		"due_date":        txn.DueDate,
		"actor_id":        actor.ID,
	})
	return txn, nil
}

func (svc *Service) RetrieveTransaction(ctx context.Context, id int) (*models.Transaction, error) {
	return retrieveTransaction(ctx, svc.db, id)
}

func (svc *Service) ListTransactions(ctx context.Context, opts ListTransactionsOptions) ([]*models.Transaction, error) {
	t, _, err := svc.listTransactionsWithTotal(ctx, opts)
	return t, errors.WithStack(err)
}

func (svc *Service) ListTransactionsWithTotal(ctx context.Context, opts ListTransactionsOptions) ([]*models.Transaction, int, error) {
	opts.includeTotal = true
	return svc.listTransactionsWithTotal(ctx, opts)
}

func (svc *Service) listTransactionsWithTotal(ctx context.Context, opts ListTransactionsOptions) ([]*models.Transaction, int, error) {
	txns := []*models.Transaction{}
	var total int
	var err error
	now := svc.clock()

	q := svc.db.
		NewSelect().
		Model(&txns).
		Relation("Book").
		Relation("User")

	if opts.OpenOnly {
		q = q.Where("t.status = ?", models.TransactionStatusIssued).
			Order("t.due_date ASC", "t.id ASC")
	} else {
		q = q.Order("t.created_at DESC", "t.id DESC")
	}

	if opts.Status != nil {
		switch *opts.Status {
		case models.TransactionStatusOverdue:
			q = q.Where("t.status = ?", models.TransactionStatusIssued).
				Where("t.due_date < ?", now)
		case models.TransactionStatusIssued:
			q = q.Where("t.status = ?", models.TransactionStatusIssued).
				Where("t.due_date >= ?", now)
		default:
			q = q.Where("t.status = ?", *opts.Status)
		}
	}
	if opts.UserID != nil {
		q = q.Where("t.user_id = ?", *opts.UserID)
	}
	if opts.BookID != nil {
		q = q.Where("t.book_id = ?", *opts.BookID)
	}
	if opts.Search != nil && *opts.Search != "" {
		pattern := "%" + *opts.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where(`"book"."accession_number" LIKE ?`, pattern).
				WhereOr(`"book"."title" LIKE ?`, pattern).
				WhereOr(`"user"."username" LIKE ?`, pattern).
				WhereOr(`"user"."full_name" LIKE ?`, pattern)
		})
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

	return txns, total, nil
}

// Now is the service's current time, used to derive overdue state.
func (svc *Service) Now() time.Time {
	return svc.clock()
}
